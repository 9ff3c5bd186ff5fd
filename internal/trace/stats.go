package trace

import (
	"sort"

	"github.com/VladMinzatu/simtrace/internal/symbolizer"
)

type FunctionStats struct {
	Name         string
	Addr         uint64
	Instructions uint64
	Entries      uint64
}

// Stats counts executed instructions per function. Memory is bounded by the
// number of distinct functions hit, not by the trace length.
type Stats struct {
	funcs map[uint64]*FunctionStats
	total uint64
}

func NewStats() *Stats {
	return &Stats{funcs: make(map[uint64]*FunctionStats)}
}

func (s *Stats) Instruction(sym symbolizer.Symbol) {
	s.function(sym).Instructions++
	s.total++
}

func (s *Stats) Entered(sym symbolizer.Symbol) {
	s.function(sym).Entries++
}

func (s *Stats) function(sym symbolizer.Symbol) *FunctionStats {
	f, ok := s.funcs[sym.Addr]
	if !ok {
		f = &FunctionStats{Name: sym.Name, Addr: sym.Addr}
		s.funcs[sym.Addr] = f
	}
	return f
}

// Total is the number of instructions attributed to a known function.
func (s *Stats) Total() uint64 { return s.total }

// Functions returns the hit functions, busiest first.
func (s *Stats) Functions() []FunctionStats {
	out := make([]FunctionStats, 0, len(s.funcs))
	for _, f := range s.funcs {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Instructions == out[j].Instructions {
			if out[i].Name == out[j].Name {
				return out[i].Addr < out[j].Addr
			}
			return out[i].Name < out[j].Name
		}
		return out[i].Instructions > out[j].Instructions
	})
	return out
}
