package state

import (
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/holiman/uint256"
)

// journalEntry is a revertible state change.
type journalEntry interface {
	revert(s *StateDB)
}

// journal records every mutation since the world was created so that any
// snapshot can be rolled back.
type journal struct {
	entries []journalEntry
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

func (j *journal) length() int {
	return len(j.entries)
}

// revert undoes every entry from idx onwards, newest first.
func (j *journal) revert(s *StateDB, idx int) {
	for i := len(j.entries) - 1; i >= idx; i-- {
		j.entries[i].revert(s)
	}

	j.entries = j.entries[:idx]
}

type createAccountChange struct {
	addr common.Address
}

func (ch createAccountChange) revert(s *StateDB) {
	delete(s.accounts, ch.addr)
}

type balanceChange struct {
	addr common.Address
	prev *uint256.Int
}

func (ch balanceChange) revert(s *StateDB) {
	s.accounts[ch.addr].balance = ch.prev
}

type nonceChange struct {
	addr common.Address
	prev uint64
}

func (ch nonceChange) revert(s *StateDB) {
	s.accounts[ch.addr].nonce = ch.prev
}

type codeChange struct {
	addr common.Address
	prev []byte
}

func (ch codeChange) revert(s *StateDB) {
	s.accounts[ch.addr].code = ch.prev
}

type storageChange struct {
	addr common.Address
	key  common.Hash
	prev common.Hash
}

func (ch storageChange) revert(s *StateDB) {
	obj := s.accounts[ch.addr]
	if ch.prev == (common.Hash{}) {
		delete(obj.storage, ch.key)

		return
	}

	obj.storage[ch.key] = ch.prev
}

type accessListAddAccountChange struct {
	addr common.Address
}

func (ch accessListAddAccountChange) revert(s *StateDB) {
	s.accessList.deleteAddress(ch.addr)
}

type accessListAddSlotChange struct {
	addr common.Address
	slot common.Hash
}

func (ch accessListAddSlotChange) revert(s *StateDB) {
	s.accessList.deleteSlot(ch.addr, ch.slot)
}
