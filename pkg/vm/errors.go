package vm

import (
	"errors"
	"fmt"

	"github.com/0xsequence/ethkit/go-ethereum/accounts/abi"
	"github.com/0xsequence/ethkit/go-ethereum/common/hexutil"
	"github.com/0xsequence/ethkit/go-ethereum/crypto"
)

var (
	// ErrExecutionReverted is wrapped by every RevertError.
	ErrExecutionReverted = errors.New("execution reverted")
	// ErrDepth is returned when the call stack grows past MaxCallDepth.
	ErrDepth = errors.New("max call depth exceeded")
	// ErrInvalidCode is returned when an address holds code no contract is registered for.
	ErrInvalidCode = errors.New("invalid code")
	// ErrCodeCollision is returned when deploying over existing code.
	ErrCodeCollision = errors.New("contract address collision")
)

var (
	errorSelector = crypto.Keccak256([]byte("Error(string)"))[:4]
	stringArgs    = mustStringArguments()
)

func mustStringArguments() abi.Arguments {
	typ, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}

	return abi.Arguments{{Type: typ}}
}

// RevertError is a call that stopped with a revert payload. Unlike other
// failures it hands the unused gas back to the caller.
type RevertError struct {
	Data []byte
}

func (e *RevertError) Error() string {
	if len(e.Data) == 0 {
		return ErrExecutionReverted.Error()
	}

	if reason, err := abi.UnpackRevert(e.Data); err == nil {
		return fmt.Sprintf("%s: %s", ErrExecutionReverted, reason)
	}

	return fmt.Sprintf("%s: %s", ErrExecutionReverted, hexutil.Encode(e.Data))
}

func (e *RevertError) Unwrap() error {
	return ErrExecutionReverted
}

// Revert builds a revert carrying an Error(string) payload.
func Revert(reason string) *RevertError {
	return &RevertError{Data: EncodeRevertReason(reason)}
}

// EncodeRevertReason ABI encodes reason as Error(string).
func EncodeRevertReason(reason string) []byte {
	packed, err := stringArgs.Pack(reason)
	if err != nil {
		panic(err)
	}

	return append(append([]byte{}, errorSelector...), packed...)
}

// RevertReason decodes an Error(string) payload.
func RevertReason(data []byte) (string, bool) {
	reason, err := abi.UnpackRevert(data)
	if err != nil {
		return "", false
	}

	return reason, true
}

// RevertData returns the payload carried by err, or nil when err is not a revert.
func RevertData(err error) []byte {
	var revert *RevertError
	if errors.As(err, &revert) {
		return revert.Data
	}

	return nil
}
