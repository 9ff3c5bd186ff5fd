package symbolizer

import (
	"fmt"
	"log/slog"
)

type Source string

const (
	SourceNm   Source = "nm"
	SourceElf  Source = "elf"
	SourceFile Source = "file"
)

type LoadOptions struct {
	// NmTool overrides the nm binary for SourceNm.
	NmTool string
	// SymbolFile is the pre-made dump read by SourceFile.
	SymbolFile string
}

// LoadSymbolTable builds the symbol table of the executable at path from the
// requested source.
func LoadSymbolTable(source Source, path string, opts LoadOptions) (*SymbolTable, error) {
	var (
		table *SymbolTable
		err   error
	)
	switch source {
	case SourceNm, "":
		table, err = loadFrom(NewNmLoader(opts.NmTool, path))
	case SourceFile:
		if opts.SymbolFile == "" {
			return nil, fmt.Errorf("symbol source %q requires a symbol file", source)
		}
		table, err = loadFrom(NewDataLoader(opts.SymbolFile))
	case SourceElf:
		var entries []SymbolEntry
		entries, err = ElfSymbols(path)
		if err == nil {
			table = NewSymbolTable(entries)
		}
	default:
		return nil, fmt.Errorf("unknown symbol source %q", source)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded symbol table", "source", string(source), "path", path, "symbols", table.Len(), "max_addr", fmt.Sprintf("%#x", table.MaxAddr()))
	return table, nil
}

func loadFrom(loader LineLoader) (*SymbolTable, error) {
	lines, err := loader.ReadLines()
	if err != nil {
		return nil, err
	}
	return BuildSymbolTable(lines)
}
