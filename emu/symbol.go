package emu

import "sort"

// Symbol is a (name, address, size) triple built from the ELF symbol
// tables at load time. The table is read-only for the lifetime of the
// Machine.
type Symbol struct {
	Name    string
	Address uint64
	Size    uint64
}

// SymbolTable is a read-only, address-ordered index of Symbols supporting
// both name lookup and containing-address lookup.
type SymbolTable struct {
	byName    map[string]uint64
	byAddress []Symbol // sorted by Address
}

// NewSymbolTable builds a lookup index from an unordered symbol slice.
func NewSymbolTable(symbols []Symbol) SymbolTable {
	byName := make(map[string]uint64, len(symbols))
	byAddress := make([]Symbol, len(symbols))
	copy(byAddress, symbols)
	sort.Slice(byAddress, func(i, j int) bool { return byAddress[i].Address < byAddress[j].Address })
	for _, s := range symbols {
		if s.Name != "" {
			byName[s.Name] = s.Address
		}
	}
	return SymbolTable{byName: byName, byAddress: byAddress}
}

// AddressOf resolves a symbol name to its address, or 0 if not found.
func (t *SymbolTable) AddressOf(name string) uint64 {
	return t.byName[name]
}

// Lookup finds the symbol whose [Address, Address+Size) range contains addr.
func (t *SymbolTable) Lookup(addr uint64) (*Symbol, bool) {
	i := sort.Search(len(t.byAddress), func(i int) bool { return t.byAddress[i].Address > addr })
	if i == 0 {
		return nil, false
	}
	s := &t.byAddress[i-1]
	if s.Size == 0 {
		if s.Address == addr {
			return s, true
		}
		return nil, false
	}
	if addr >= s.Address && addr < s.Address+s.Size {
		return s, true
	}
	return nil, false
}
