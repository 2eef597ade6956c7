// Package scenario loads simulation scenarios from YAML: the accounts of a
// world, named operations and the requests to run against them.
package scenario

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/common/hexutil"
	"github.com/creasty/defaults"
	"github.com/ethpandaops/userop-simulator/pkg/contracts"
	"github.com/ethpandaops/userop-simulator/pkg/entrypoint"
	"github.com/ethpandaops/userop-simulator/pkg/simulation"
	"github.com/ethpandaops/userop-simulator/pkg/state"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/ethpandaops/userop-simulator/pkg/vm"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownOperation is returned when a request names an operation the
	// scenario does not define.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrInvalidAmount is returned for amounts that are not unsigned 256 bit
	// integers.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Account is a genesis account.
type Account struct {
	Address common.Address `yaml:"address"`
	// Balance, Deposit and Stake are decimal or 0x-prefixed hex wei amounts.
	Balance         string            `yaml:"balance"`
	Code            contracts.Kind    `yaml:"code"`
	Storage         map[string]string `yaml:"storage"`
	Deposit         string            `yaml:"deposit"`
	Stake           string            `yaml:"stake"`
	UnstakeDelaySec uint64            `yaml:"unstakeDelaySec"`
}

// Validate validates the account.
func (a *Account) Validate() error {
	if a.Address == (common.Address{}) {
		return errors.New("address is required")
	}

	if a.Code != "" && !a.Code.Valid() {
		return fmt.Errorf("unknown contract kind %q", a.Code)
	}

	for _, amount := range []string{a.Balance, a.Deposit, a.Stake} {
		if _, err := ParseAmount(amount); err != nil {
			return err
		}
	}

	return nil
}

// Execute describes account call data forwarding Data to To.
type Execute struct {
	To   common.Address `yaml:"to"`
	Data hexutil.Bytes  `yaml:"data"`
}

// Operation is a named user operation. Unset gas limits are filled with
// defaults.
type Operation struct {
	Name   string         `yaml:"name"`
	Sender common.Address `yaml:"sender"`
	Nonce  string         `yaml:"nonce"`

	Factory     *common.Address `yaml:"factory"`
	FactoryData hexutil.Bytes   `yaml:"factoryData"`

	// CallData is used verbatim unless Execute is set.
	CallData hexutil.Bytes `yaml:"callData"`
	Execute  *Execute      `yaml:"execute"`

	VerificationGasLimit uint64 `yaml:"verificationGasLimit" default:"300000"`
	CallGasLimit         uint64 `yaml:"callGasLimit" default:"500000"`
	PreVerificationGas   uint64 `yaml:"preVerificationGas" default:"21000"`
	MaxFeePerGas         string `yaml:"maxFeePerGas" default:"2000000000"`
	MaxPriorityFeePerGas string `yaml:"maxPriorityFeePerGas" default:"1000000000"`

	Paymaster                     *common.Address `yaml:"paymaster"`
	PaymasterVerificationGasLimit uint64          `yaml:"paymasterVerificationGasLimit" default:"200000"`
	PaymasterPostOpGasLimit       uint64          `yaml:"paymasterPostOpGasLimit" default:"100000"`
	PaymasterData                 hexutil.Bytes   `yaml:"paymasterData"`

	Signature hexutil.Bytes `yaml:"signature"`

	// Target and TargetCallData describe the side effect run after the
	// operation when it is replayed or handled.
	Target         *common.Address `yaml:"target"`
	TargetCallData hexutil.Bytes   `yaml:"targetCallData"`
}

// Validate validates the operation.
func (o *Operation) Validate() error {
	if o.Name == "" {
		return errors.New("name is required")
	}

	if o.Sender == (common.Address{}) {
		return fmt.Errorf("operation %s: sender is required", o.Name)
	}

	if _, err := parseNonce(o.Nonce); err != nil {
		return fmt.Errorf("operation %s: %w", o.Name, err)
	}

	for _, amount := range []string{o.MaxFeePerGas, o.MaxPriorityFeePerGas} {
		if _, err := ParseAmount(amount); err != nil {
			return fmt.Errorf("operation %s: %w", o.Name, err)
		}
	}

	return nil
}

// Args builds the simulation arguments of the operation.
func (o *Operation) Args() (userop.SimulationArgs, error) {
	nonce, err := parseNonce(o.Nonce)
	if err != nil {
		return userop.SimulationArgs{}, err
	}

	maxFee, err := ParseAmount(o.MaxFeePerGas)
	if err != nil {
		return userop.SimulationArgs{}, err
	}

	maxPriorityFee, err := ParseAmount(o.MaxPriorityFeePerGas)
	if err != nil {
		return userop.SimulationArgs{}, err
	}

	op := &userop.Operation{
		Sender:             o.Sender,
		Nonce:              nonce,
		CallData:           o.CallData,
		AccountGasLimits:   userop.PackGasLimits(o.VerificationGasLimit, o.CallGasLimit),
		PreVerificationGas: o.PreVerificationGas,
		GasFees:            userop.PackGasFees(maxPriorityFee, maxFee),
		Signature:          o.Signature,
	}

	if o.Execute != nil {
		op.CallData = contracts.ExecuteCallData(o.Execute.To, o.Execute.Data)
	}

	if o.Factory != nil {
		op.InitCode = userop.PackInitCode(*o.Factory, o.FactoryData)
	}

	if o.Paymaster != nil {
		op.PaymasterAndData = userop.PackPaymasterAndData(*o.Paymaster, o.PaymasterVerificationGasLimit, o.PaymasterPostOpGasLimit, o.PaymasterData)
	}

	return userop.SimulationArgs{
		Op:             op,
		Target:         o.Target,
		TargetCallData: o.TargetCallData,
	}, nil
}

// Estimate is a gas search request.
type Estimate struct {
	Kind           string   `yaml:"kind" default:"call_gas"`
	Queued         []string `yaml:"queued"`
	Target         string   `yaml:"target"`
	InitialMinGas  uint64   `yaml:"initialMinGas"`
	ToleranceDelta uint64   `yaml:"toleranceDelta"`
	GasAllowance   uint64   `yaml:"gasAllowance"`
}

// Requests lists the operations each command runs, by name.
type Requests struct {
	Validate  []string   `yaml:"validate"`
	HandleOps []string   `yaml:"handleOps"`
	Estimates []Estimate `yaml:"estimates"`
}

// Scenario is a parsed scenario file.
type Scenario struct {
	Accounts   []Account   `yaml:"accounts"`
	Operations []Operation `yaml:"operations"`
	Requests   Requests    `yaml:"requests"`

	byName map[string]*Operation
}

// Load reads and parses a scenario file.
func Load(file string) (*Scenario, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse parses and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	s := &Scenario{}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}

	for i := range s.Operations {
		if err := defaults.Set(&s.Operations[i]); err != nil {
			return nil, err
		}
	}

	for i := range s.Requests.Estimates {
		if err := defaults.Set(&s.Requests.Estimates[i]); err != nil {
			return nil, err
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate validates the scenario and indexes its operations.
func (s *Scenario) Validate() error {
	for i := range s.Accounts {
		if err := s.Accounts[i].Validate(); err != nil {
			return fmt.Errorf("invalid account at index %d: %w", i, err)
		}
	}

	s.byName = make(map[string]*Operation, len(s.Operations))

	for i := range s.Operations {
		op := &s.Operations[i]

		if err := op.Validate(); err != nil {
			return fmt.Errorf("invalid operation at index %d: %w", i, err)
		}

		if _, ok := s.byName[op.Name]; ok {
			return fmt.Errorf("duplicate operation %s", op.Name)
		}

		s.byName[op.Name] = op
	}

	for i, e := range s.Requests.Estimates {
		if _, err := simulation.ParseSearchKind(e.Kind); err != nil {
			return fmt.Errorf("invalid estimate at index %d: %w", i, err)
		}
	}

	return nil
}

// Args returns the simulation arguments of the named operations in order.
func (s *Scenario) Args(names []string) ([]userop.SimulationArgs, error) {
	out := make([]userop.SimulationArgs, 0, len(names))

	for _, name := range names {
		op, ok := s.byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
		}

		args, err := op.Args()
		if err != nil {
			return nil, fmt.Errorf("operation %s: %w", name, err)
		}

		out = append(out, args)
	}

	return out, nil
}

// Ops returns the named operations in order.
func (s *Scenario) Ops(names []string) ([]*userop.Operation, error) {
	args, err := s.Args(names)
	if err != nil {
		return nil, err
	}

	ops := make([]*userop.Operation, len(args))
	for i := range args {
		ops[i] = args[i].Op
	}

	return ops, nil
}

// SearchRequests returns the estimate requests of the scenario.
func (s *Scenario) SearchRequests() ([]simulation.SearchRequest, error) {
	out := make([]simulation.SearchRequest, 0, len(s.Requests.Estimates))

	for _, e := range s.Requests.Estimates {
		kind, err := simulation.ParseSearchKind(e.Kind)
		if err != nil {
			return nil, err
		}

		queued, err := s.Args(e.Queued)
		if err != nil {
			return nil, err
		}

		target, err := s.Args([]string{e.Target})
		if err != nil {
			return nil, err
		}

		out = append(out, simulation.SearchRequest{
			Kind:           kind,
			Queued:         queued,
			Target:         target[0],
			InitialMinGas:  e.InitialMinGas,
			ToleranceDelta: e.ToleranceDelta,
			GasAllowance:   e.GasAllowance,
		})
	}

	return out, nil
}

// World is the state a scenario runs against.
type World struct {
	State      *state.StateDB
	VM         *vm.VM
	EntryPoint *entrypoint.EntryPoint
}

// Build creates the world described by the scenario's accounts.
func (s *Scenario) Build(log logrus.FieldLogger, cfg entrypoint.Config) (*World, error) {
	st := state.New()
	v := vm.New(st, contracts.Registry())
	ep := entrypoint.New(log, v, cfg)

	for _, a := range s.Accounts {
		st.CreateAccount(a.Address)

		if a.Code != "" {
			st.SetCode(a.Address, contracts.Code(a.Code))
		}

		for key, value := range a.Storage {
			st.SetState(a.Address, common.HexToHash(key), common.HexToHash(value))
		}

		balance, err := ParseAmount(a.Balance)
		if err != nil {
			return nil, err
		}

		st.AddBalance(a.Address, balance)

		deposit, err := ParseAmount(a.Deposit)
		if err != nil {
			return nil, err
		}

		if !deposit.IsZero() {
			ep.DepositTo(a.Address, deposit)
		}

		stake, err := ParseAmount(a.Stake)
		if err != nil {
			return nil, err
		}

		if !stake.IsZero() {
			ep.AddStake(a.Address, stake, a.UnstakeDelaySec)
		}
	}

	log.WithFields(logrus.Fields{
		"accounts":   len(s.Accounts),
		"operations": len(s.Operations),
	}).Debug("Built scenario world")

	return &World{State: st, VM: v, EntryPoint: ep}, nil
}

// ParseAmount parses a decimal or 0x-prefixed hex amount. An empty string is
// zero.
func ParseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}

	b, ok := new(big.Int).SetString(s, 0)
	if !ok || b.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("%w: %q overflows 256 bits", ErrInvalidAmount, s)
	}

	return v, nil
}

func parseNonce(s string) (*big.Int, error) {
	v, err := ParseAmount(s)
	if err != nil {
		return nil, err
	}

	return v.ToBig(), nil
}
