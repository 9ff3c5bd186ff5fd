package trace

import (
	"strconv"
	"strings"
)

const (
	minFields  = 7
	separator  = ":"
	addrDigits = 8
	fieldVA    = 2
	fieldPA    = 3
	fieldCCA   = 4
)

// Record is an executed-instruction line of a simulator trace, e.g.
//
//	cpu0 : 80001000 00001000 3: 27bdffe8 addiu sp,sp,-24
type Record struct {
	VA  uint64
	PA  uint64
	CCA string
}

// ParseRecord validates one trace line. Lines that do not describe an
// executed instruction report false; they are expected in a trace and are not
// an error.
func ParseRecord(line string) (Record, bool) {
	fields := strings.Fields(line)
	if len(fields) < minFields || fields[1] != separator {
		return Record{}, false
	}
	if !isHexAddr(fields[fieldVA]) || !isHexAddr(fields[fieldPA]) {
		return Record{}, false
	}
	va, err := strconv.ParseUint(fields[fieldVA], 16, 64)
	if err != nil {
		return Record{}, false
	}
	pa, err := strconv.ParseUint(fields[fieldPA], 16, 64)
	if err != nil {
		return Record{}, false
	}
	return Record{VA: va, PA: pa, CCA: fields[fieldCCA]}, true
}

// ValidCCA reports whether the cache-coherency attribute is one of the
// cached encodings the trace is expected to carry.
func (r Record) ValidCCA() bool {
	return r.CCA == "2:" || r.CCA == "3:"
}

func isHexAddr(s string) bool {
	if len(s) != addrDigits {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
