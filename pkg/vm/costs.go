package vm

import "github.com/0xsequence/ethkit/go-ethereum/common"

// Gas costs for state access (EIP-2929 / EIP-2200).
const (
	WarmAccessCost    = 100
	ColdSloadCost     = 2100
	ColdAccountCost   = 2600
	SstoreSetGas      = 20000
	SstoreResetGas    = 2900
	CallValueTransfer = 9000
	CreateGas         = 32000
	CodeDepositGas    = 200

	// MaxCallDepth bounds nested frames.
	MaxCallDepth = 64
)

func accountAccessCost(cold bool) uint64 {
	if cold {
		return ColdAccountCost
	}

	return WarmAccessCost
}

func sloadCost(cold bool) uint64 {
	if cold {
		return ColdSloadCost
	}

	return WarmAccessCost
}

// sstoreCost prices a write against the slot's current value. The cold
// surcharge is added on top of the warm price.
func sstoreCost(cold bool, current, value common.Hash) uint64 {
	var cost uint64

	switch {
	case current == value:
		cost = WarmAccessCost
	case current == (common.Hash{}):
		cost = SstoreSetGas
	default:
		cost = SstoreResetGas
	}

	if cold {
		cost += ColdSloadCost
	}

	return cost
}
