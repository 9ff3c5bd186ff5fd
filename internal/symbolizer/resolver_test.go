package symbolizer

import (
	"errors"
	"fmt"
	"testing"
)

func TestResolver_Resolve(t *testing.T) {
	table := NewSymbolTable([]SymbolEntry{
		{Addr: 0x2000, Name: "helper"},
		{Addr: 0x1000, Name: "main"},
		{Addr: 0x3000, Name: "last_func"},
	})
	r := NewResolver(table)

	tests := []struct {
		pc         uint64
		wantName   string
		wantAddr   uint64
		wantOffset uint64
		outOfRange bool
	}{
		{pc: 0x1000, wantName: "main", wantAddr: 0x1000, wantOffset: 0},
		{pc: 0x1004, wantName: "main", wantAddr: 0x1000, wantOffset: 4},
		{pc: 0x1fff, wantName: "main", wantAddr: 0x1000, wantOffset: 0xfff},
		{pc: 0x2000, wantName: "helper", wantAddr: 0x2000, wantOffset: 0},
		{pc: 0x2008, wantName: "helper", wantAddr: 0x2000, wantOffset: 8},
		{pc: 0x3000, wantName: "last_func", wantAddr: 0x3000, wantOffset: 0},
		{pc: 0x3001, outOfRange: true},
		{pc: 0xbfc00000, outOfRange: true},
		{pc: 0xfff, outOfRange: true},
		{pc: 0, outOfRange: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("pc=0x%x", tt.pc), func(t *testing.T) {
			sym, err := r.Resolve(tt.pc)
			if tt.outOfRange {
				if !errors.Is(err, ErrOutOfRange) {
					t.Fatalf("expected ErrOutOfRange for pc=0x%x, got %+v, %v", tt.pc, sym, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			if sym.Name != tt.wantName {
				t.Fatalf("unexpected symbol name: want %q got %q", tt.wantName, sym.Name)
			}
			if sym.Addr != tt.wantAddr {
				t.Fatalf("unexpected entry address: want 0x%x got 0x%x", tt.wantAddr, sym.Addr)
			}
			if sym.Offset != tt.wantOffset {
				t.Fatalf("unexpected offset: want 0x%x got 0x%x", tt.wantOffset, sym.Offset)
			}
		})
	}
}

func TestResolver_EveryKeyResolvesToItselfAndGapsToPredecessor(t *testing.T) {
	var entries []SymbolEntry
	for i := uint64(0); i < 64; i++ {
		entries = append(entries, SymbolEntry{Addr: 0x80000000 + i*0x100, Name: fmt.Sprintf("fn%d", i)})
	}
	r := NewResolver(NewSymbolTable(entries))
	addrs := r.Table().Addrs()
	for i, addr := range addrs {
		sym, err := r.Resolve(addr)
		if err != nil || sym.Offset != 0 || sym.Name != entries[i].Name {
			t.Fatalf("key 0x%x: got %+v, %v", addr, sym, err)
		}
		if i+1 == len(addrs) {
			continue
		}
		for pc := addr + 1; pc < addrs[i+1]; pc += 0x1f {
			sym, err := r.Resolve(pc)
			if err != nil || sym.Name != entries[i].Name || sym.Offset != pc-addr {
				t.Fatalf("pc 0x%x: got %+v, %v", pc, sym, err)
			}
		}
	}
}

func TestResolver_EmptyTable(t *testing.T) {
	r := NewResolver(NewSymbolTable(nil))
	for _, pc := range []uint64{0, 0x1000} {
		if _, err := r.Resolve(pc); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("expected ErrOutOfRange for pc=0x%x on empty table, got %v", pc, err)
		}
	}
}
