package userop

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/0xsequence/ethkit/go-ethereum/accounts/abi"
	"github.com/0xsequence/ethkit/go-ethereum/common/hexutil"
	"github.com/0xsequence/ethkit/go-ethereum/crypto"
)

var (
	// ErrFailedOp matches every *FailedOp through errors.Is.
	ErrFailedOp = errors.New("failed op")
	// ErrNoPaymaster is returned for paymaster work on an operation without one.
	ErrNoPaymaster = errors.New("operation has no paymaster")
)

var (
	failedOpSelector           = crypto.Keccak256([]byte("FailedOp(uint256,string)"))[:4]
	failedOpWithRevertSelector = crypto.Keccak256([]byte("FailedOpWithRevert(uint256,string,bytes)"))[:4]

	failedOpArgs           = mustArguments("uint256", "string")
	failedOpWithRevertArgs = mustArguments("uint256", "string", "bytes")
)

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))

	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}

		args = append(args, abi.Argument{Type: typ})
	}

	return args
}

// FailedOp is a diagnostic validation failure of the operation at OpIndex.
// Inner carries the revert payload of the failing account or paymaster call.
type FailedOp struct {
	OpIndex int
	Reason  string
	Inner   []byte
}

// NewFailedOp creates a FailedOp without an inner payload.
func NewFailedOp(opIndex int, reason string) *FailedOp {
	return &FailedOp{OpIndex: opIndex, Reason: reason}
}

func (e *FailedOp) Error() string {
	if len(e.Inner) > 0 {
		return fmt.Sprintf("FailedOpWithRevert(%d, %q, %s)", e.OpIndex, e.Reason, hexutil.Encode(e.Inner))
	}

	return fmt.Sprintf("FailedOp(%d, %q)", e.OpIndex, e.Reason)
}

// Is lets errors.Is match ErrFailedOp.
func (e *FailedOp) Is(target error) bool {
	return target == ErrFailedOp
}

// Data returns the ABI encoded revert payload of the failure.
func (e *FailedOp) Data() []byte {
	index := big.NewInt(int64(e.OpIndex))

	if len(e.Inner) > 0 {
		packed, err := failedOpWithRevertArgs.Pack(index, e.Reason, e.Inner)
		if err != nil {
			panic(err)
		}

		return append(append([]byte{}, failedOpWithRevertSelector...), packed...)
	}

	packed, err := failedOpArgs.Pack(index, e.Reason)
	if err != nil {
		panic(err)
	}

	return append(append([]byte{}, failedOpSelector...), packed...)
}

// DecodeFailedOp parses a FailedOp or FailedOpWithRevert payload.
func DecodeFailedOp(data []byte) (*FailedOp, bool) {
	if len(data) < 4 {
		return nil, false
	}

	var (
		args     abi.Arguments
		selector = data[:4]
	)

	switch {
	case string(selector) == string(failedOpSelector):
		args = failedOpArgs
	case string(selector) == string(failedOpWithRevertSelector):
		args = failedOpWithRevertArgs
	default:
		return nil, false
	}

	values, err := args.Unpack(data[4:])
	if err != nil || len(values) < 2 {
		return nil, false
	}

	index, ok := values[0].(*big.Int)
	if !ok {
		return nil, false
	}

	reason, ok := values[1].(string)
	if !ok {
		return nil, false
	}

	out := &FailedOp{OpIndex: int(index.Int64()), Reason: reason}

	if len(values) == 3 {
		if inner, ok := values[2].([]byte); ok {
			out.Inner = inner
		}
	}

	return out, true
}
