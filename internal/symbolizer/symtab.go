package symbolizer

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var ErrMalformedSymbolLine = errors.New("malformed symbol line")

// SymbolTable maps function entry addresses to names. It is immutable once
// built and safe to share between readers.
type SymbolTable struct {
	names   map[uint64]string
	addrs   []uint64 // ascending, distinct
	maxAddr uint64
}

// BuildSymbolTable parses nm-style lines ("<hex addr> <type> <name> ...").
// Every line must be well formed; a repeated address keeps the last name.
func BuildSymbolTable(lines []string) (*SymbolTable, error) {
	entries := make([]SymbolEntry, 0, len(lines))
	for i, line := range lines {
		// Format: "80001000 T main" (addr type name [extra...])
		parts := strings.Fields(line)
		if len(parts) < 3 {
			return nil, fmt.Errorf("%w: line %d: %q: expected at least 3 fields, got %d", ErrMalformedSymbolLine, i+1, line, len(parts))
		}
		addr, err := strconv.ParseUint(parts[0], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %q: bad address: %v", ErrMalformedSymbolLine, i+1, line, err)
		}
		entries = append(entries, SymbolEntry{Addr: addr, Name: parts[2]})
	}
	return NewSymbolTable(entries), nil
}

// NewSymbolTable builds a table from parsed entries, later entries
// overwriting earlier ones at the same address.
func NewSymbolTable(entries []SymbolEntry) *SymbolTable {
	t := &SymbolTable{names: make(map[uint64]string, len(entries))}
	for _, e := range entries {
		t.names[e.Addr] = e.Name
		if e.Addr > t.maxAddr {
			t.maxAddr = e.Addr
		}
	}
	t.addrs = make([]uint64, 0, len(t.names))
	for addr := range t.names {
		t.addrs = append(t.addrs, addr)
	}
	sort.Slice(t.addrs, func(i, j int) bool { return t.addrs[i] < t.addrs[j] })
	return t
}

func (t *SymbolTable) Len() int { return len(t.addrs) }

func (t *SymbolTable) MaxAddr() uint64 { return t.maxAddr }

func (t *SymbolTable) Lookup(addr uint64) (string, bool) {
	name, ok := t.names[addr]
	return name, ok
}

// Addrs returns the ascending entry addresses. The slice must not be modified.
func (t *SymbolTable) Addrs() []uint64 { return t.addrs }
