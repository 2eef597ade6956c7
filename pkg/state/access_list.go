package state

import "github.com/0xsequence/ethkit/go-ethereum/common"

// accessList tracks warm addresses and storage slots (EIP-2929).
type accessList struct {
	addresses map[common.Address]map[common.Hash]struct{}
}

func newAccessList() *accessList {
	return &accessList{addresses: make(map[common.Address]map[common.Hash]struct{})}
}

func (al *accessList) containsAddress(addr common.Address) bool {
	_, ok := al.addresses[addr]

	return ok
}

func (al *accessList) containsSlot(addr common.Address, slot common.Hash) bool {
	slots, ok := al.addresses[addr]
	if !ok {
		return false
	}

	_, ok = slots[slot]

	return ok
}

// addAddress returns true if the address was newly added.
func (al *accessList) addAddress(addr common.Address) bool {
	if al.containsAddress(addr) {
		return false
	}

	al.addresses[addr] = make(map[common.Hash]struct{})

	return true
}

// addSlot reports whether the address and the slot were newly added.
func (al *accessList) addSlot(addr common.Address, slot common.Hash) (addrAdded, slotAdded bool) {
	addrAdded = al.addAddress(addr)

	slots := al.addresses[addr]
	if _, ok := slots[slot]; ok {
		return addrAdded, false
	}

	slots[slot] = struct{}{}

	return addrAdded, true
}

func (al *accessList) deleteAddress(addr common.Address) {
	delete(al.addresses, addr)
}

func (al *accessList) deleteSlot(addr common.Address, slot common.Hash) {
	if slots, ok := al.addresses[addr]; ok {
		delete(slots, slot)
	}
}
