package contracts

import (
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/crypto"
	"github.com/ethpandaops/userop-simulator/pkg/vm"
)

// AccountFactory deploys SimpleAccount instances at deterministic addresses.
//
// Factory data is a 32 byte salt optionally followed by the owner address.
type AccountFactory struct{}

// AccountAddress returns where factory deploys the account for salt.
func AccountAddress(factory common.Address, salt [32]byte) common.Address {
	return crypto.CreateAddress2(factory, salt, crypto.Keccak256(Code(KindAccount)))
}

// FactoryData encodes the factory call data for salt and owner.
func FactoryData(salt [32]byte, owner common.Address) []byte {
	return append(append([]byte{}, salt[:]...), owner.Bytes()...)
}

func parseFactoryData(self common.Address, data []byte) ([32]byte, common.Address) {
	var salt [32]byte

	n := len(data)
	if n > 32 {
		n = 32
	}

	copy(salt[32-n:], data[:n])

	owner := self
	if len(data) >= 32+common.AddressLength {
		owner = common.BytesToAddress(data[32 : 32+common.AddressLength])
	}

	return salt, owner
}

// CreateAccount deploys the account described by data, or returns the
// existing one.
func (fa *AccountFactory) CreateAccount(f *vm.Frame, data []byte) (common.Address, error) {
	salt, owner := parseFactoryData(f.Self, data)
	addr := AccountAddress(f.Self, salt)

	size, err := f.CodeSize(addr)
	if err != nil {
		return common.Address{}, err
	}

	if size > 0 {
		return addr, nil
	}

	storage := map[common.Hash]common.Hash{
		AccountOwnerSlot: common.BytesToHash(owner.Bytes()),
	}

	if err := f.Deploy(addr, Code(KindAccount), storage); err != nil {
		return common.Address{}, err
	}

	return addr, nil
}

// Run deploys through a plain call and returns the account address as a word.
func (fa *AccountFactory) Run(f *vm.Frame, input []byte) ([]byte, error) {
	addr, err := fa.CreateAccount(f, input)
	if err != nil {
		return nil, err
	}

	return common.LeftPadBytes(addr.Bytes(), 32), nil
}
