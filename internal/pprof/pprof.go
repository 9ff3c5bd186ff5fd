package pprof

import (
	"io"
	"time"

	"github.com/google/pprof/profile"
	"github.com/klauspost/compress/gzip"

	"github.com/VladMinzatu/simtrace/internal/trace"
)

// BuildPprofProfile turns per-function instruction counts into a flat pprof
// profile: one sample per function, located at the function entry. The
// second sample value is the number of times the function was entered.
func BuildPprofProfile(funcs []trace.FunctionStats, sampleTypeName, sampleTypeUnit string, start time.Time) (*profile.Profile, error) {
	if len(funcs) == 0 {
		p := &profile.Profile{}
		return p, nil
	}

	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: sampleTypeName, Unit: sampleTypeUnit},
			{Type: "entries", Unit: "count"},
		},
		PeriodType: &profile.ValueType{Type: sampleTypeName, Unit: sampleTypeUnit},
		Period:     1,
		TimeNanos:  start.UnixNano(),
	}

	fnByName := map[string]*profile.Function{}
	nextFuncID := uint64(1)
	addFunction := func(name string) *profile.Function {
		if f, ok := fnByName[name]; ok {
			return f
		}
		fn := &profile.Function{
			ID:         nextFuncID,
			Name:       name,
			SystemName: name,
		}
		nextFuncID++
		fnByName[name] = fn
		p.Function = append(p.Function, fn)
		return fn
	}

	// funcs are keyed by entry address, so every location is distinct
	for i, f := range funcs {
		loc := &profile.Location{
			ID:      uint64(i + 1),
			Address: f.Addr,
			Line:    []profile.Line{{Function: addFunction(f.Name)}},
		}
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Value:    []int64{int64(f.Instructions), int64(f.Entries)},
			Location: []*profile.Location{loc},
		})
	}

	if err := p.CheckValid(); err != nil {
		return nil, err
	}
	return p, nil
}

func WriteProfileGzip(p *profile.Profile, w io.Writer) error {
	gw := gzip.NewWriter(w)
	if err := p.WriteUncompressed(gw); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}
