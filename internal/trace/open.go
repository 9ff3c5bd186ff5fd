package trace

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// Open opens a trace file for sequential reading, transparently decompressing
// gzip and zstd traces.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	if err := adviseSequential(f); err != nil {
		slog.Debug("Sequential read hint not applied", "path", path, "error", err)
	}

	rc, kind, err := decompress(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("trace %s: %w", path, err)
	}
	slog.Debug("Opened trace", "path", path, "compression", string(kind))
	return &traceFile{Reader: rc, decoder: rc, file: f}, nil
}

type traceFile struct {
	io.Reader
	decoder io.Closer
	file    *os.File
}

func (t *traceFile) Close() error {
	derr := t.decoder.Close()
	if err := t.file.Close(); err != nil {
		return err
	}
	return derr
}

// decompress peeks at the magic bytes of r and wraps it in the matching
// streaming decoder.
func decompress(r io.Reader) (io.ReadCloser, Compression, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(4)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, "", fmt.Errorf("peek header: %w", err)
	}

	switch {
	case len(header) >= 2 && header[0] == 0x1f && header[1] == 0x8b:
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, "", fmt.Errorf("create gzip reader: %w", err)
		}
		return gr, CompressionGzip, nil
	case len(header) >= 4 && header[0] == 0x28 && header[1] == 0xb5 && header[2] == 0x2f && header[3] == 0xfd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, "", fmt.Errorf("create zstd reader: %w", err)
		}
		return zr.IOReadCloser(), CompressionZstd, nil
	}
	return io.NopCloser(br), CompressionNone, nil
}
