package symbolizer

import (
	"debug/elf"
	"errors"
	"fmt"
	"log/slog"
)

// ElfSymbols reads the defined symbols of an ELF executable from .symtab and
// .dynsym, the same set `nm --defined-only` prints minus section and file
// symbols.
func ElfSymbols(path string) ([]SymbolEntry, error) {
	slog.Info("Loading ELF symbols", "path", path)
	ef, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open executable: %w", err)
	}
	defer ef.Close()

	var syms []elf.Symbol
	if section := ef.Section(".symtab"); section != nil {
		st, err := ef.Symbols()
		if err != nil {
			return nil, fmt.Errorf("read .symtab of %s: %w", path, err)
		}
		syms = append(syms, st...)
	}
	if section := ef.Section(".dynsym"); section != nil {
		st, err := ef.DynamicSymbols()
		if err != nil {
			slog.Warn("Skipping unreadable .dynsym", "path", path, "error", err)
		} else {
			syms = append(syms, st...)
		}
	}
	if len(syms) == 0 {
		return nil, fmt.Errorf("%s: %w", path, errNoSymbols)
	}
	return elfEntries(syms), nil
}

var errNoSymbols = errors.New("no symbol tables available in ELF")

func elfEntries(syms []elf.Symbol) []SymbolEntry {
	entries := make([]SymbolEntry, 0, len(syms))
	for _, s := range syms {
		if s.Name == "" || s.Value == 0 || s.Section == elf.SHN_UNDEF {
			continue
		}
		switch elf.ST_TYPE(s.Info) {
		case elf.STT_FUNC, elf.STT_NOTYPE, elf.STT_OBJECT:
		default:
			continue
		}
		entries = append(entries, SymbolEntry{Addr: s.Value, Name: s.Name})
	}
	return entries
}
