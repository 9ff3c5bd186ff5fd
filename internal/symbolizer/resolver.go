package symbolizer

import (
	"errors"
	"sort"
)

// ErrOutOfRange reports a pc outside the code covered by the symbol table:
// above the highest symbol (unmapped boot region) or below the lowest one.
var ErrOutOfRange = errors.New("pc outside known symbol range")

type Resolver struct {
	table *SymbolTable
}

func NewResolver(table *SymbolTable) *Resolver {
	return &Resolver{table: table}
}

func (r *Resolver) Table() *SymbolTable { return r.table }

// Resolve finds the function containing pc, i.e. the symbol with the
// greatest address <= pc.
func (r *Resolver) Resolve(pc uint64) (Symbol, error) {
	t := r.table
	if len(t.addrs) == 0 || pc > t.maxAddr {
		return Symbol{}, ErrOutOfRange
	}
	if name, ok := t.names[pc]; ok {
		return Symbol{Name: name, Addr: pc}, nil
	}
	i := sort.Search(len(t.addrs), func(i int) bool { return t.addrs[i] > pc })
	if i == 0 {
		return Symbol{}, ErrOutOfRange
	}
	addr := t.addrs[i-1]
	return Symbol{Name: t.names[addr], Addr: addr, Offset: pc - addr}, nil
}
