package trace

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"

	"github.com/VladMinzatu/simtrace/internal/symbolizer"
)

const (
	ccaWarning    = "Warning: unexpected CCA value!"
	maxLineLength = 1 << 20
)

type Resolver interface {
	Resolve(pc uint64) (symbolizer.Symbol, error)
}

// Observer is told about every dispatched instruction that resolved to a
// function, and about every function entry that produced a line.
type Observer interface {
	Instruction(sym symbolizer.Symbol)
	Entered(sym symbolizer.Symbol)
}

// Style decorates the non-trace lines of the output, e.g. with terminal colors.
type Style struct {
	Warning func(a ...interface{}) string
	Banner  func(a ...interface{}) string
}

type Summary struct {
	Lines       uint64
	Records     uint64
	Discarded   uint64
	OutOfRange  uint64
	CCAWarnings uint64
	LastPC      uint64
}

// Driver annotates a trace stream. It is single-use and not safe for
// concurrent use.
type Driver struct {
	resolver   Resolver
	classifier *Classifier
	observer   Observer
	style      Style

	out     *bufio.Writer
	outErr  error
	summary Summary
}

type Option func(*Driver)

func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observer = o }
}

func WithStyle(s Style) Option {
	return func(d *Driver) {
		if s.Warning != nil {
			d.style.Warning = s.Warning
		}
		if s.Banner != nil {
			d.style.Banner = s.Banner
		}
	}
}

func NewDriver(resolver Resolver, out io.Writer, opts ...Option) *Driver {
	d := &Driver{
		resolver:   resolver,
		classifier: NewClassifier(),
		style:      Style{Warning: fmt.Sprint, Banner: fmt.Sprint},
		out:        bufio.NewWriter(out),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run reads trace lines from r until EOF and writes the annotated trace.
// After the input is exhausted the last executed address is printed under a
// "Stopped at" banner. Lines annotated before a read or write failure are
// still flushed to the output.
func (d *Driver) Run(r io.Reader) (_ Summary, err error) {
	defer func() {
		if ferr := d.out.Flush(); ferr != nil && d.outErr == nil {
			d.outErr = ferr
		}
		if err == nil && d.outErr != nil {
			err = fmt.Errorf("write annotated trace: %w", d.outErr)
		}
	}()

	lr := newLineReader(r)
	for {
		line, truncated, rerr := lr.next()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return d.summary, fmt.Errorf("read trace: %w", rerr)
		}
		d.summary.Lines++
		if truncated {
			slog.Debug("Trace line truncated", "line", d.summary.Lines, "kept_bytes", len(line))
		}
		rec, ok := ParseRecord(string(line))
		if !ok {
			d.summary.Discarded++
			continue
		}
		d.summary.Records++
		d.summary.LastPC = rec.VA

		if !rec.ValidCCA() {
			d.summary.CCAWarnings++
			slog.Debug("Unexpected CCA value", "line", d.summary.Lines, "cca", rec.CCA, "pc", fmt.Sprintf("%#x", rec.VA))
			d.writeLine(d.style.Warning(ccaWarning))
		}
		d.process(rec.VA)
		if d.outErr != nil {
			return d.summary, nil
		}
	}

	d.finish()
	return d.summary, nil
}

func (d *Driver) process(pc uint64) {
	sym, err := d.resolver.Resolve(pc)
	if err != nil {
		d.summary.OutOfRange++
	} else if d.observer != nil {
		d.observer.Instruction(sym)
	}
	if line, ok := d.classifier.Classify(pc, sym, err); ok {
		if d.observer != nil {
			d.observer.Entered(sym)
		}
		d.writeLine(line)
	}
}

func (d *Driver) finish() {
	pc := d.summary.LastPC
	if pc == 0 {
		return
	}
	d.classifier.Reset()
	d.writeLine(d.style.Banner(fmt.Sprintf("=== Stopped at %#x: ===", pc)))
	sym, err := d.resolver.Resolve(pc)
	if line, ok := d.classifier.Classify(pc, sym, err); ok {
		d.writeLine(line)
	}
}

func (d *Driver) writeLine(line string) {
	if d.outErr != nil {
		return
	}
	if _, err := d.out.WriteString(line); err != nil {
		d.outErr = err
		return
	}
	d.outErr = d.out.WriteByte('\n')
}

// lineReader splits a trace into lines of any length, keeping at most
// maxLineLength bytes of each.
type lineReader struct {
	r   *bufio.Reader
	buf []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// next returns the next line without its terminator. It reports io.EOF only
// once no data is left; a final line without a newline is returned first.
func (lr *lineReader) next() ([]byte, bool, error) {
	lr.buf = lr.buf[:0]
	truncated := false
	read := false
	for {
		chunk, err := lr.r.ReadSlice('\n')
		read = read || len(chunk) > 0
		if err == nil {
			chunk = chunk[:len(chunk)-1]
		}
		if room := maxLineLength - len(lr.buf); len(chunk) > room {
			chunk = chunk[:room]
			truncated = true
		}
		lr.buf = append(lr.buf, chunk...)

		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF && read:
		case err != nil:
			return nil, false, err
		}
		if n := len(lr.buf); n > 0 && lr.buf[n-1] == '\r' {
			lr.buf = lr.buf[:n-1]
		}
		return lr.buf, truncated, nil
	}
}
