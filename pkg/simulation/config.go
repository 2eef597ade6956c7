package simulation

import "fmt"

// Config holds the estimator budget and search tuning.
type Config struct {
	// GasLimit is the estimator's own budget per call.
	GasLimit uint64 `yaml:"gasLimit" default:"30000000"`
	// ProbeReserve is subtracted from the remaining budget for the first probe.
	ProbeReserve uint64 `yaml:"probeReserve" default:"55000"`
	// SafetyMargin is required above minGas before every bisection trial.
	SafetyMargin uint64 `yaml:"safetyMargin" default:"5000"`
	// TrialOverhead is charged per dry-run trial.
	TrialOverhead uint64 `yaml:"trialOverhead" default:"700"`
	// ToleranceDelta is used when a request does not set one.
	ToleranceDelta uint64 `yaml:"toleranceDelta" default:"1000"`
	// GasAllowance is used when a request does not set one.
	GasAllowance uint64 `yaml:"gasAllowance" default:"1000000"`
	// SideEffectGasLimit caps every kept target call. A call that halts burns
	// at most this much of the estimator's budget.
	SideEffectGasLimit uint64 `yaml:"sideEffectGasLimit" default:"10000000"`
}

// Validate fills unset values with defaults and checks the budget layout.
func (c *Config) Validate() error {
	if c.GasLimit == 0 {
		c.GasLimit = DefaultGasLimit
	}

	if c.ProbeReserve == 0 {
		c.ProbeReserve = DefaultProbeReserve
	}

	if c.SafetyMargin == 0 {
		c.SafetyMargin = DefaultSafetyMargin
	}

	if c.TrialOverhead == 0 {
		c.TrialOverhead = DefaultTrialOverhead
	}

	if c.ToleranceDelta == 0 {
		c.ToleranceDelta = DefaultToleranceDelta
	}

	if c.GasAllowance == 0 {
		c.GasAllowance = DefaultGasAllowance
	}

	if c.SideEffectGasLimit == 0 {
		c.SideEffectGasLimit = DefaultSideEffectGasLimit
	}

	if c.ProbeReserve >= c.GasLimit {
		return fmt.Errorf("probeReserve (%d) must be below gasLimit (%d)", c.ProbeReserve, c.GasLimit)
	}

	if c.SafetyMargin >= c.GasLimit {
		return fmt.Errorf("safetyMargin (%d) must be below gasLimit (%d)", c.SafetyMargin, c.GasLimit)
	}

	return nil
}
