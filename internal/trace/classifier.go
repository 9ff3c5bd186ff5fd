package trace

import (
	"fmt"

	"github.com/VladMinzatu/simtrace/internal/symbolizer"
)

// Offsets past this are too far from the preceding symbol to trust the
// attribution.
const maxTrustedOffset = 0x10000

// Classifier collapses consecutive instructions of the same function into a
// single line.
type Classifier struct {
	lastPrinted string
}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify returns the line to print for pc, if any. err is the resolver's
// result; an unresolved pc is skipped without touching the state.
func (c *Classifier) Classify(pc uint64, sym symbolizer.Symbol, err error) (string, bool) {
	if err != nil {
		return "", false
	}
	if sym.Name == c.lastPrinted {
		return "", false
	}
	c.lastPrinted = sym.Name
	return FormatLine(pc, sym), true
}

// Reset forgets the last printed function so the next resolved pc prints.
func (c *Classifier) Reset() {
	c.lastPrinted = ""
}

func FormatLine(pc uint64, sym symbolizer.Symbol) string {
	switch {
	case sym.Offset == 0:
		return fmt.Sprintf("%08x : %s", pc, sym.Name)
	case sym.Offset > maxTrustedOffset:
		return fmt.Sprintf("%08x : ???", pc)
	default:
		return fmt.Sprintf("%08x : %s + %d", pc, sym.Name, sym.Offset)
	}
}
