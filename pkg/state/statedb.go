// Package state holds the in-memory world the simulator runs against.
//
// Every mutation is journaled so callers can take a snapshot, run arbitrary
// calls and roll the world back, including the EIP-2929 access list.
package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ErrInsufficientBalance is returned when a debit exceeds an account balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

type stateObject struct {
	nonce   uint64
	balance *uint256.Int
	code    []byte
	storage map[common.Hash]common.Hash
}

func newObject() *stateObject {
	return &stateObject{
		balance: new(uint256.Int),
		storage: make(map[common.Hash]common.Hash),
	}
}

type revision struct {
	id           int
	journalIndex int
}

// StateDB is a journaled in-memory account store.
type StateDB struct {
	accounts   map[common.Address]*stateObject
	accessList *accessList
	journal    *journal

	validRevisions []revision
	nextRevisionID int
}

// New creates an empty world.
func New() *StateDB {
	return &StateDB{
		accounts:   make(map[common.Address]*stateObject),
		accessList: newAccessList(),
		journal:    &journal{},
	}
}

func (s *StateDB) getOrCreate(addr common.Address) *stateObject {
	if obj, ok := s.accounts[addr]; ok {
		return obj
	}

	obj := newObject()
	s.accounts[addr] = obj
	s.journal.append(createAccountChange{addr: addr})

	return obj
}

// Exist reports whether the account is present in the world.
func (s *StateDB) Exist(addr common.Address) bool {
	_, ok := s.accounts[addr]

	return ok
}

// CreateAccount makes sure the account exists.
func (s *StateDB) CreateAccount(addr common.Address) {
	s.getOrCreate(addr)
}

// GetBalance returns a copy of the account balance.
func (s *StateDB) GetBalance(addr common.Address) *uint256.Int {
	if obj, ok := s.accounts[addr]; ok {
		return new(uint256.Int).Set(obj.balance)
	}

	return new(uint256.Int)
}

// AddBalance credits amount to the account.
func (s *StateDB) AddBalance(addr common.Address, amount *uint256.Int) {
	obj := s.getOrCreate(addr)
	s.journal.append(balanceChange{addr: addr, prev: new(uint256.Int).Set(obj.balance)})
	obj.balance = new(uint256.Int).Add(obj.balance, amount)
}

// SubBalance debits amount from the account.
func (s *StateDB) SubBalance(addr common.Address, amount *uint256.Int) error {
	obj := s.getOrCreate(addr)
	if obj.balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, need %s", ErrInsufficientBalance, addr.Hex(), obj.balance.Dec(), amount.Dec())
	}

	s.journal.append(balanceChange{addr: addr, prev: new(uint256.Int).Set(obj.balance)})
	obj.balance = new(uint256.Int).Sub(obj.balance, amount)

	return nil
}

// GetNonce returns the account nonce.
func (s *StateDB) GetNonce(addr common.Address) uint64 {
	if obj, ok := s.accounts[addr]; ok {
		return obj.nonce
	}

	return 0
}

// SetNonce sets the account nonce.
func (s *StateDB) SetNonce(addr common.Address, nonce uint64) {
	obj := s.getOrCreate(addr)
	s.journal.append(nonceChange{addr: addr, prev: obj.nonce})
	obj.nonce = nonce
}

// GetCode returns the code stored at addr.
func (s *StateDB) GetCode(addr common.Address) []byte {
	if obj, ok := s.accounts[addr]; ok {
		return obj.code
	}

	return nil
}

// GetCodeSize returns the size of the code stored at addr.
func (s *StateDB) GetCodeSize(addr common.Address) int {
	return len(s.GetCode(addr))
}

// SetCode installs code at addr.
func (s *StateDB) SetCode(addr common.Address, code []byte) {
	obj := s.getOrCreate(addr)
	s.journal.append(codeChange{addr: addr, prev: obj.code})
	obj.code = common.CopyBytes(code)
}

// GetState reads a storage slot.
func (s *StateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if obj, ok := s.accounts[addr]; ok {
		return obj.storage[key]
	}

	return common.Hash{}
}

// SetState writes a storage slot. Writing the zero value clears the slot.
func (s *StateDB) SetState(addr common.Address, key, value common.Hash) {
	obj := s.getOrCreate(addr)
	s.journal.append(storageChange{addr: addr, key: key, prev: obj.storage[key]})

	if value == (common.Hash{}) {
		delete(obj.storage, key)

		return
	}

	obj.storage[key] = value
}

// AddressInAccessList reports whether addr is warm.
func (s *StateDB) AddressInAccessList(addr common.Address) bool {
	return s.accessList.containsAddress(addr)
}

// SlotInAccessList reports whether the slot is warm.
func (s *StateDB) SlotInAccessList(addr common.Address, slot common.Hash) bool {
	return s.accessList.containsSlot(addr, slot)
}

// AddAddressToAccessList warms addr and returns whether it was cold.
func (s *StateDB) AddAddressToAccessList(addr common.Address) bool {
	if !s.accessList.addAddress(addr) {
		return false
	}

	s.journal.append(accessListAddAccountChange{addr: addr})

	return true
}

// AddSlotToAccessList warms the slot and returns whether it was cold.
func (s *StateDB) AddSlotToAccessList(addr common.Address, slot common.Hash) bool {
	addrAdded, slotAdded := s.accessList.addSlot(addr, slot)
	if addrAdded {
		s.journal.append(accessListAddAccountChange{addr: addr})
	}

	if slotAdded {
		s.journal.append(accessListAddSlotChange{addr: addr, slot: slot})
	}

	return slotAdded
}

// Snapshot returns an identifier for the current revision of the world.
func (s *StateDB) Snapshot() int {
	id := s.nextRevisionID
	s.nextRevisionID++
	s.validRevisions = append(s.validRevisions, revision{id: id, journalIndex: s.journal.length()})

	return id
}

// RevertToSnapshot reverts all changes made since the given revision.
// Reverting invalidates every snapshot taken after revid.
func (s *StateDB) RevertToSnapshot(revid int) {
	idx := sort.Search(len(s.validRevisions), func(i int) bool {
		return s.validRevisions[i].id >= revid
	})
	if idx == len(s.validRevisions) || s.validRevisions[idx].id != revid {
		panic(fmt.Errorf("revision id %v cannot be reverted", revid))
	}

	snapshot := s.validRevisions[idx].journalIndex

	s.journal.revert(s, snapshot)
	s.validRevisions = s.validRevisions[:idx]
}

// Digest hashes the full world including the access list. Two worlds with the
// same digest are observably identical.
func (s *StateDB) Digest() common.Hash {
	addrs := make([]common.Address, 0, len(s.accounts))
	for addr := range s.accounts {
		addrs = append(addrs, addr)
	}

	sortAddresses(addrs)

	var buf bytes.Buffer

	for _, addr := range addrs {
		obj := s.accounts[addr]

		buf.Write(addr.Bytes())
		buf.Write(uint256.NewInt(obj.nonce).PaddedBytes(32))
		buf.Write(obj.balance.PaddedBytes(32))
		buf.Write(crypto.Keccak256(obj.code))

		keys := make([]common.Hash, 0, len(obj.storage))
		for k := range obj.storage {
			keys = append(keys, k)
		}

		sortHashes(keys)

		for _, k := range keys {
			v := obj.storage[k]
			buf.Write(k.Bytes())
			buf.Write(v.Bytes())
		}
	}

	warm := make([]common.Address, 0, len(s.accessList.addresses))
	for addr := range s.accessList.addresses {
		warm = append(warm, addr)
	}

	sortAddresses(warm)

	for _, addr := range warm {
		buf.WriteByte(0xff)
		buf.Write(addr.Bytes())

		slots := make([]common.Hash, 0, len(s.accessList.addresses[addr]))
		for slot := range s.accessList.addresses[addr] {
			slots = append(slots, slot)
		}

		sortHashes(slots)

		for _, slot := range slots {
			buf.Write(slot.Bytes())
		}
	}

	return crypto.Keccak256Hash(buf.Bytes())
}

func sortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i].Bytes(), addrs[j].Bytes()) < 0
	})
}

func sortHashes(hashes []common.Hash) {
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i].Bytes(), hashes[j].Bytes()) < 0
	})
}
