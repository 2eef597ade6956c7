// Package entrypoint is an in-process entry point engine. It validates and
// executes user operations against the vm and keeps deposits, stakes and
// nonces in its own storage.
package entrypoint

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/crypto"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/ethpandaops/userop-simulator/pkg/vm"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// Gas penalty applied to unused execution gas.
const (
	UnusedGasPenaltyPercent = 10
	PenaltyGasThreshold     = 40_000
)

var (
	// ErrSenderCreatorMismatch is returned when a deployment is attempted
	// through a caller other than the engine's sender creator.
	ErrSenderCreatorMismatch = errors.New("sender creator mismatch")
	// ErrUnknownPhase is returned by RunPhase for an unsupported phase.
	ErrUnknownPhase = errors.New("unknown phase")
)

// Account is implemented by smart account contracts.
type Account interface {
	ValidateUserOp(f *vm.Frame, op *userop.Operation, opHash common.Hash, missingFunds *uint256.Int) (*uint256.Int, error)
}

// Paymaster is implemented by paymaster contracts.
type Paymaster interface {
	ValidatePaymasterUserOp(f *vm.Frame, op *userop.Operation, opHash common.Hash, maxCost *uint256.Int) ([]byte, *uint256.Int, error)
	PostOp(f *vm.Frame, success bool, context []byte, actualGasCost *uint256.Int) error
}

// Factory is implemented by account factories.
type Factory interface {
	CreateAccount(f *vm.Frame, data []byte) (common.Address, error)
}

// Config holds the engine's chain parameters.
type Config struct {
	Address common.Address
	ChainID *big.Int
	BaseFee *uint256.Int
}

// EntryPoint is the reference engine.
type EntryPoint struct {
	log     logrus.FieldLogger
	vm      *vm.VM
	address common.Address
	chainID *big.Int
	baseFee *uint256.Int
}

// New creates an engine living at cfg.Address.
func New(log logrus.FieldLogger, v *vm.VM, cfg Config) *EntryPoint {
	chainID := cfg.ChainID
	if chainID == nil {
		chainID = big.NewInt(1)
	}

	baseFee := cfg.BaseFee
	if baseFee == nil {
		baseFee = new(uint256.Int)
	}

	return &EntryPoint{
		log:     log.WithField("component", "entrypoint"),
		vm:      v,
		address: cfg.Address,
		chainID: chainID,
		baseFee: baseFee,
	}
}

// Address returns where the engine lives.
func (ep *EntryPoint) Address() common.Address {
	return ep.address
}

// ChainID returns the chain id operations are hashed with.
func (ep *EntryPoint) ChainID() *big.Int {
	return new(big.Int).Set(ep.chainID)
}

// SenderCreator is the helper address that deploys accounts: the first
// contract the engine itself creates.
func (ep *EntryPoint) SenderCreator() common.Address {
	return crypto.CreateAddress(ep.address, 1)
}

func addressWord(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

func mappingSlot(index uint64, keys ...[]byte) common.Hash {
	data := make([]byte, 0, 32*(len(keys)+1))
	for _, k := range keys {
		data = append(data, k...)
	}

	data = append(data, common.LeftPadBytes(new(big.Int).SetUint64(index).Bytes(), 32)...)

	return crypto.Keccak256Hash(data)
}

func depositSlot(addr common.Address) common.Hash {
	return mappingSlot(0, addressWord(addr))
}

func stakeSlot(addr common.Address) common.Hash {
	return mappingSlot(1, addressWord(addr))
}

func unstakeDelaySlot(addr common.Address) common.Hash {
	return mappingSlot(2, addressWord(addr))
}

func nonceSlot(sender common.Address, key *big.Int) common.Hash {
	return mappingSlot(3, addressWord(sender), common.LeftPadBytes(key.Bytes(), 32))
}

func (ep *EntryPoint) read(key common.Hash) *uint256.Int {
	v := ep.vm.State().GetState(ep.address, key)

	return new(uint256.Int).SetBytes(v.Bytes())
}

func (ep *EntryPoint) write(key common.Hash, value *uint256.Int) {
	ep.vm.State().SetState(ep.address, key, common.Hash(value.Bytes32()))
}

// DepositTo credits amount to addr's deposit outside of any call.
func (ep *EntryPoint) DepositTo(addr common.Address, amount *uint256.Int) {
	key := depositSlot(addr)
	ep.write(key, new(uint256.Int).Add(ep.read(key), amount))
	ep.vm.State().AddBalance(ep.address, amount)
}

// AddStake locks amount as addr's stake outside of any call.
func (ep *EntryPoint) AddStake(addr common.Address, amount *uint256.Int, unstakeDelaySec uint64) {
	key := stakeSlot(addr)
	ep.write(key, new(uint256.Int).Add(ep.read(key), amount))
	ep.write(unstakeDelaySlot(addr), uint256.NewInt(unstakeDelaySec))
	ep.vm.State().AddBalance(ep.address, amount)
}

// BalanceOf returns addr's deposit.
func (ep *EntryPoint) BalanceOf(addr common.Address) *uint256.Int {
	return ep.read(depositSlot(addr))
}

// StakeInfo returns addr's stake.
func (ep *EntryPoint) StakeInfo(addr common.Address) userop.StakeInfo {
	return userop.StakeInfo{
		Stake:           ep.read(stakeSlot(addr)),
		UnstakeDelaySec: ep.read(unstakeDelaySlot(addr)).Uint64(),
	}
}

// NonceOf returns the next valid nonce for sender under key.
func (ep *EntryPoint) NonceOf(sender common.Address, key *big.Int) *big.Int {
	seq := ep.read(nonceSlot(sender, key)).ToBig()

	return new(big.Int).Or(new(big.Int).Lsh(key, 64), seq)
}

// gasPrice is min(maxFee, maxPriority + baseFee).
func (ep *EntryPoint) gasPrice(op *userop.Operation) *uint256.Int {
	maxFee := op.MaxFeePerGas()
	maxPriority := op.MaxPriorityFeePerGas()

	if maxFee.Eq(maxPriority) {
		return maxFee
	}

	price := new(uint256.Int).Add(maxPriority, ep.baseFee)
	if price.Gt(maxFee) {
		return maxFee
	}

	return price
}

func (ep *EntryPoint) bookkeepingError(err error) error {
	return fmt.Errorf("entry point bookkeeping: %w", err)
}
