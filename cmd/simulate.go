package cmd

import (
	"context"

	"github.com/ethpandaops/userop-simulator/pkg/simulation"
	"github.com/spf13/cobra"
)

var lastOnly bool

var simulateValidationCmd = &cobra.Command{
	Use:   "simulate-validation",
	Short: "Simulates validation of the scenario's validate requests.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), func(ctx context.Context) error {
			s, err := newSession()
			if err != nil {
				return err
			}

			names := s.scenario.Requests.Validate

			ops, err := s.scenario.Ops(names)
			if err != nil {
				return err
			}

			if err := ctx.Err(); err != nil {
				return err
			}

			return report(s.simulator.SimulateValidationBulk(ops), func(i int, r simulation.BulkResult[simulation.ValidationResult]) validationView {
				return newValidationView(names[i], r)
			})
		})
	},
}

var simulateHandleOpCmd = &cobra.Command{
	Use:   "simulate-handle-op",
	Short: "Simulates validation and execution of the scenario's handleOps requests.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), func(ctx context.Context) error {
			s, err := newSession()
			if err != nil {
				return err
			}

			names := s.scenario.Requests.HandleOps

			simArgs, err := s.scenario.Args(names)
			if err != nil {
				return err
			}

			if err := ctx.Err(); err != nil {
				return err
			}

			return report(s.simulator.SimulateHandleOpBulk(simArgs), func(i int, r simulation.BulkResult[simulation.ExecutionResult]) executionView {
				return newExecutionView(names[i], r)
			})
		})
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Runs the scenario's gas estimation requests.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), func(ctx context.Context) error {
			s, err := newSession()
			if err != nil {
				return err
			}

			reqs, err := s.scenario.SearchRequests()
			if err != nil {
				return err
			}

			if err := ctx.Err(); err != nil {
				return err
			}

			return report(s.simulator.EstimateBulk(reqs), func(i int, r simulation.BulkResult[simulation.TargetCallResult]) estimateView {
				return newEstimateView(reqs[i].Kind.String(), s.scenario.Requests.Estimates[i].Target, r)
			})
		})
	},
}

// report prints a view of every result, or with --last only the final one.
// With --last a failure of the final item fails the command.
func report[T, V any](results []simulation.BulkResult[T], view func(i int, r simulation.BulkResult[T]) V) error {
	if !lastOnly {
		views := make([]V, 0, len(results))
		for i, r := range results {
			views = append(views, view(i, r))
		}

		return writeJSON(views)
	}

	res, err := simulation.Last(results)
	if len(results) == 0 {
		return err
	}

	if werr := writeJSON(view(len(results)-1, simulation.BulkResult[T]{Result: res, Err: err})); werr != nil {
		return werr
	}

	return err
}

func init() {
	for _, c := range []*cobra.Command{simulateValidationCmd, simulateHandleOpCmd, estimateCmd} {
		c.Flags().BoolVar(&lastOnly, "last", false, "only report the final request")
		rootCmd.AddCommand(c)
	}
}
