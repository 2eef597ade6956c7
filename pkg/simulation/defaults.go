package simulation

// Default configuration values for the simulator.
const (
	// DefaultGasLimit is the budget of the estimator's own meter per call.
	DefaultGasLimit = 30_000_000

	// DefaultProbeReserve is held back from the first probe so the search can
	// continue after it.
	DefaultProbeReserve = 55_000

	// DefaultSafetyMargin is the headroom above minGas the estimator must still
	// have before each bisection trial.
	DefaultSafetyMargin = 5_000

	// DefaultTrialOverhead is charged to the estimator for every dry-run trial
	// on top of the gas the trial used.
	DefaultTrialOverhead = 700

	// DefaultToleranceDelta stops the search once fewer candidates remain.
	DefaultToleranceDelta = 1_000

	// DefaultGasAllowance is the width of the search window above the seed.
	DefaultGasAllowance = 1_000_000

	// DefaultSideEffectGasLimit caps the target call applied after a
	// validation.
	DefaultSideEffectGasLimit = 10_000_000
)
