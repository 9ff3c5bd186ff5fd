package symbolizer

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// DataLoader reads a symbol dump that was produced ahead of time.
type DataLoader struct {
	Path string
}

func NewDataLoader(path string) *DataLoader {
	return &DataLoader{Path: path}
}

func (d *DataLoader) ReadLines() ([]string, error) {
	slog.Debug("Loading symbol dump", "path", d.Path)
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("open symbol dump: %w", err)
	}
	defer f.Close()

	var lines []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("read symbol dump %s: %w", d.Path, err)
	}
	return lines, nil
}

const defaultNmTool = "nm"

// NmLoader lists the defined symbols of an executable with an external
// nm-compatible tool.
type NmLoader struct {
	Tool string
	Path string
}

func NewNmLoader(tool, path string) *NmLoader {
	if tool == "" {
		tool = defaultNmTool
	}
	return &NmLoader{Tool: tool, Path: path}
}

func (n *NmLoader) ReadLines() ([]string, error) {
	if _, err := os.Stat(n.Path); err != nil {
		return nil, fmt.Errorf("executable: %w", err)
	}
	slog.Debug("Running symbol dump tool", "tool", n.Tool, "path", n.Path)

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(n.Tool, "--defined-only", n.Path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s %s: %w: %s", n.Tool, n.Path, err, msg)
		}
		return nil, fmt.Errorf("%s %s: %w", n.Tool, n.Path, err)
	}

	var lines []string
	s := bufio.NewScanner(&stdout)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("read %s output: %w", n.Tool, err)
	}
	return lines, nil
}
