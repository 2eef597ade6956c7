// Package userop defines the packed user operation and the shapes exchanged
// between the simulator and the entry point engine.
package userop

import (
	"math"
	"math/big"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Byte offsets inside PaymasterAndData.
const (
	PaymasterValidationGasOffset = 20
	PaymasterPostOpGasOffset     = 36
	PaymasterDataOffset          = 52
)

// maxUint120 is the largest value any packed gas field may hold.
var maxUint120 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 120), uint256.NewInt(1))

// Operation is a packed user operation.
type Operation struct {
	Sender             common.Address
	Nonce              *big.Int
	InitCode           []byte
	CallData           []byte
	AccountGasLimits   [32]byte
	PreVerificationGas uint64
	GasFees            [32]byte
	PaymasterAndData   []byte
	Signature          []byte
}

// PackUints packs two 128 bit values into one word, high first.
func PackUints(high, low *uint256.Int) [32]byte {
	var out [32]byte

	h := high.Bytes32()
	l := low.Bytes32()

	copy(out[:16], h[16:])
	copy(out[16:], l[16:])

	return out
}

// PackGasLimits builds AccountGasLimits.
func PackGasLimits(verificationGasLimit, callGasLimit uint64) [32]byte {
	return PackUints(uint256.NewInt(verificationGasLimit), uint256.NewInt(callGasLimit))
}

// PackGasFees builds GasFees.
func PackGasFees(maxPriorityFeePerGas, maxFeePerGas *uint256.Int) [32]byte {
	return PackUints(maxPriorityFeePerGas, maxFeePerGas)
}

// PackInitCode joins a factory address and its call data.
func PackInitCode(factory common.Address, data []byte) []byte {
	return append(append([]byte{}, factory.Bytes()...), data...)
}

// PackPaymasterAndData joins a paymaster address, its gas limits and data.
func PackPaymasterAndData(paymaster common.Address, verificationGasLimit, postOpGasLimit uint64, data []byte) []byte {
	limits := PackGasLimits(verificationGasLimit, postOpGasLimit)

	out := make([]byte, 0, PaymasterDataOffset+len(data))
	out = append(out, paymaster.Bytes()...)
	out = append(out, limits[:]...)

	return append(out, data...)
}

func word128(b []byte) *uint256.Int {
	return new(uint256.Int).SetBytes(b)
}

// saturate narrows a packed gas value to uint64.
func saturate(v *uint256.Int) uint64 {
	if !v.IsUint64() {
		return math.MaxUint64
	}

	return v.Uint64()
}

// VerificationGasLimit is the gas available to account deployment and validation.
func (op *Operation) VerificationGasLimit() uint64 {
	return saturate(word128(op.AccountGasLimits[:16]))
}

// CallGasLimit is the gas available to the execution call.
func (op *Operation) CallGasLimit() uint64 {
	return saturate(word128(op.AccountGasLimits[16:]))
}

// MaxPriorityFeePerGas returns the priority fee cap.
func (op *Operation) MaxPriorityFeePerGas() *uint256.Int {
	return word128(op.GasFees[:16])
}

// MaxFeePerGas returns the fee cap.
func (op *Operation) MaxFeePerGas() *uint256.Int {
	return word128(op.GasFees[16:])
}

// Factory returns the factory named by InitCode, or the zero address.
func (op *Operation) Factory() common.Address {
	if len(op.InitCode) < common.AddressLength {
		return common.Address{}
	}

	return common.BytesToAddress(op.InitCode[:common.AddressLength])
}

// FactoryData returns the call data handed to the factory.
func (op *Operation) FactoryData() []byte {
	if len(op.InitCode) < common.AddressLength {
		return nil
	}

	return op.InitCode[common.AddressLength:]
}

// HasPaymaster reports whether PaymasterAndData names a paymaster.
func (op *Operation) HasPaymaster() bool {
	return len(op.PaymasterAndData) >= common.AddressLength
}

// Paymaster returns the paymaster address, or the zero address.
func (op *Operation) Paymaster() common.Address {
	if !op.HasPaymaster() {
		return common.Address{}
	}

	return common.BytesToAddress(op.PaymasterAndData[:common.AddressLength])
}

func (op *Operation) paymasterField(from, to int) *uint256.Int {
	if len(op.PaymasterAndData) < to {
		return new(uint256.Int)
	}

	return word128(op.PaymasterAndData[from:to])
}

// PaymasterVerificationGasLimit is the gas available to paymaster validation.
func (op *Operation) PaymasterVerificationGasLimit() uint64 {
	return saturate(op.paymasterField(PaymasterValidationGasOffset, PaymasterPostOpGasOffset))
}

// PaymasterPostOpGasLimit is the gas available to the paymaster post-op.
func (op *Operation) PaymasterPostOpGasLimit() uint64 {
	return saturate(op.paymasterField(PaymasterPostOpGasOffset, PaymasterDataOffset))
}

// PaymasterData returns the bytes after the paymaster gas limits.
func (op *Operation) PaymasterData() []byte {
	if len(op.PaymasterAndData) <= PaymasterDataOffset {
		return nil
	}

	return op.PaymasterAndData[PaymasterDataOffset:]
}

// GasValuesOverflow reports whether any gas or fee value exceeds 120 bits.
func (op *Operation) GasValuesOverflow() bool {
	values := []*uint256.Int{
		uint256.NewInt(op.PreVerificationGas),
		word128(op.AccountGasLimits[:16]),
		word128(op.AccountGasLimits[16:]),
		op.MaxPriorityFeePerGas(),
		op.MaxFeePerGas(),
		op.paymasterField(PaymasterValidationGasOffset, PaymasterPostOpGasOffset),
		op.paymasterField(PaymasterPostOpGasOffset, PaymasterDataOffset),
	}

	for _, v := range values {
		if v.Gt(maxUint120) {
			return true
		}
	}

	return false
}

// NonceKey returns the upper 192 bits of the nonce.
func (op *Operation) NonceKey() *big.Int {
	if op.Nonce == nil {
		return new(big.Int)
	}

	return new(big.Int).Rsh(op.Nonce, 64)
}

// NonceSequence returns the lower 64 bits of the nonce.
func (op *Operation) NonceSequence() uint64 {
	if op.Nonce == nil {
		return 0
	}

	return new(big.Int).And(op.Nonce, new(big.Int).SetUint64(math.MaxUint64)).Uint64()
}

// RequiredPrefund is the most the operation can be charged.
func (op *Operation) RequiredPrefund() *uint256.Int {
	total := new(uint256.Int).SetUint64(op.VerificationGasLimit())
	for _, g := range []uint64{
		op.CallGasLimit(),
		op.PaymasterVerificationGasLimit(),
		op.PaymasterPostOpGasLimit(),
		op.PreVerificationGas,
	} {
		total.Add(total, uint256.NewInt(g))
	}

	return total.Mul(total, op.MaxFeePerGas())
}

func hashWord(b []byte) []byte {
	return crypto.Keccak256(b)
}

func uintWord(v *big.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}

	return common.LeftPadBytes(v.Bytes(), 32)
}

// packed is the ABI encoding of the operation with dynamic fields hashed.
func (op *Operation) packed() []byte {
	out := make([]byte, 0, 8*32)
	out = append(out, common.LeftPadBytes(op.Sender.Bytes(), 32)...)
	out = append(out, uintWord(op.Nonce)...)
	out = append(out, hashWord(op.InitCode)...)
	out = append(out, hashWord(op.CallData)...)
	out = append(out, op.AccountGasLimits[:]...)
	out = append(out, uintWord(new(big.Int).SetUint64(op.PreVerificationGas))...)
	out = append(out, op.GasFees[:]...)
	out = append(out, hashWord(op.PaymasterAndData)...)

	return out
}

// Hash is the operation hash signed by the account. It binds the operation to
// an entry point and chain.
func (op *Operation) Hash(entryPoint common.Address, chainID *big.Int) common.Hash {
	inner := crypto.Keccak256(op.packed())

	buf := make([]byte, 0, 3*32)
	buf = append(buf, inner...)
	buf = append(buf, common.LeftPadBytes(entryPoint.Bytes(), 32)...)
	buf = append(buf, uintWord(chainID)...)

	return crypto.Keccak256Hash(buf)
}

// SimulationArgs pairs an operation with an optional side effect applied
// after its validation succeeds.
type SimulationArgs struct {
	Op             *Operation
	Target         *common.Address
	TargetCallData []byte
}
