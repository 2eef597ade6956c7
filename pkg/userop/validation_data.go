package userop

import (
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Aggregator values with special meaning in packed validation data.
var (
	SigValidationSuccess = common.Address{}
	SigValidationFailed  = common.HexToAddress("0x0000000000000000000000000000000000000001")
)

// maxUint48 is the validUntil value meaning "no expiry".
const maxUint48 = uint64(1)<<48 - 1

// ValidationData is the unpacked form of the word returned by account and
// paymaster validation.
type ValidationData struct {
	Aggregator common.Address
	ValidAfter uint64
	ValidUntil uint64
}

// ParseValidationData unpacks aggregator (low 160 bits), validUntil (next 48)
// and validAfter (top 48). A zero validUntil is read as no expiry.
func ParseValidationData(v *uint256.Int) ValidationData {
	if v == nil {
		v = new(uint256.Int)
	}

	word := v.Bytes32()

	validUntil := new(uint256.Int).SetBytes(word[6:12]).Uint64()
	if validUntil == 0 {
		validUntil = maxUint48
	}

	return ValidationData{
		Aggregator: common.BytesToAddress(word[12:]),
		ValidAfter: new(uint256.Int).SetBytes(word[:6]).Uint64(),
		ValidUntil: validUntil,
	}
}

// Pack encodes the validation data into a single word.
func (d ValidationData) Pack() *uint256.Int {
	out := new(uint256.Int).SetBytes(d.Aggregator.Bytes())
	out.Or(out, new(uint256.Int).Lsh(uint256.NewInt(d.ValidUntil&maxUint48), 160))
	out.Or(out, new(uint256.Int).Lsh(uint256.NewInt(d.ValidAfter&maxUint48), 208))

	return out
}

// SignatureFailed reports whether the aggregator slot carries the failure marker.
func (d ValidationData) SignatureFailed() bool {
	return d.Aggregator == SigValidationFailed
}

// Aggregated reports whether the data names a real signature aggregator.
func (d ValidationData) Aggregated() bool {
	return d.Aggregator != SigValidationSuccess && d.Aggregator != SigValidationFailed
}
