package symbolizer

// Symbol is a resolved program counter: the owning function, its entry
// address and the byte offset of the pc from that entry.
type Symbol struct {
	Name   string
	Addr   uint64
	Offset uint64
}

type SymbolEntry struct {
	Addr uint64
	Name string
}

// LineLoader produces the raw lines of a symbol dump.
type LineLoader interface {
	ReadLines() ([]string, error)
}
