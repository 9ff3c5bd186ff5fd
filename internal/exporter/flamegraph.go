package exporter

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/VladMinzatu/simtrace/internal/trace"
)

// BuildFoldedStacks aggregates instruction counts by function name in the
// folded-stacks format flamegraph tools read. A non-empty root becomes the
// bottom frame of every stack.
func BuildFoldedStacks(funcs []trace.FunctionStats, root string) map[string]uint64 {
	agg := make(map[string]uint64)
	for _, f := range funcs {
		if f.Instructions == 0 {
			continue
		}
		key := escapeFoldedName(f.Name)
		if root != "" {
			key = escapeFoldedName(root) + ";" + key
		}
		agg[key] += f.Instructions
	}
	return agg
}

func escapeFoldedName(name string) string {
	// semicolons separate frames and newlines separate lines. Replace them with safe characters.
	name = strings.ReplaceAll(name, ";", "_")
	name = strings.ReplaceAll(name, "\n", " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return "<unknown>"
	}
	return name
}

func WriteFoldedStacksToFile(agg map[string]uint64, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	type kv struct {
		k string
		v uint64
	}
	items := make([]kv, 0, len(agg))
	for k, v := range agg {
		items = append(items, kv{k, v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].v == items[j].v {
			return items[i].k < items[j].k
		}
		return items[i].v > items[j].v
	})

	for _, it := range items {
		if _, err := fmt.Fprintf(f, "%s %d\n", it.k, it.v); err != nil {
			return err
		}
	}
	return f.Close()
}
