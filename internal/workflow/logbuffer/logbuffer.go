// Package logbuffer implements the per-task Log Buffer (spec.md §4.11, C11):
// a bounded ring with a backing file for full history.
package logbuffer

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const defaultCapacity = 100

// Buffer is a bounded ring of log lines with a file tee. Safe for concurrent
// use; one Buffer belongs to exactly one task (spec.md §5: "per-task; no
// cross-task sharing").
type Buffer struct {
	mu       sync.Mutex
	capacity int
	lines    []string
	total    int
	path     string
	file     *os.File
	writer   *bufio.Writer
	closed   bool
}

// New builds a Buffer backed by path, creating parent directories lazily on
// first write. capacity<=0 uses the spec default of 100.
func New(path string, capacity int) *Buffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Buffer{capacity: capacity, path: path}
}

func (b *Buffer) ensureFileLocked() error {
	if b.file != nil || b.closed {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	b.file = f
	b.writer = bufio.NewWriter(f)
	return nil
}

// Write appends line with a "[YYYY-MM-DD HH:MM:SS.mmm]" timestamp prefix.
func (b *Buffer) Write(line string) error {
	return b.write(timestampPrefix()+line, line)
}

// WriteRaw appends line without a timestamp prefix.
func (b *Buffer) WriteRaw(line string) error {
	return b.write(line, line)
}

func (b *Buffer) write(fileLine, bufLine string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	if err := b.ensureFileLocked(); err != nil {
		return err
	}
	if _, err := b.writer.WriteString(fileLine + "\n"); err != nil {
		return err
	}
	if err := b.writer.Flush(); err != nil {
		return err
	}

	b.lines = append(b.lines, bufLine)
	if len(b.lines) > b.capacity {
		b.lines = b.lines[len(b.lines)-b.capacity:]
	}
	b.total++
	return nil
}

func timestampPrefix() string {
	return "[" + time.Now().Format("2006-01-02 15:04:05.000") + "] "
}

// GetTail returns the last n buffered lines, or all of them if fewer than n
// exist. n<=0 defaults to 15.
func (b *Buffer) GetTail(n int) []string {
	if n <= 0 {
		n = 15
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if n >= len(b.lines) {
		out := make([]string, len(b.lines))
		copy(out, b.lines)
		return out
	}
	out := make([]string, n)
	copy(out, b.lines[len(b.lines)-n:])
	return out
}

// LineCount reports total writes, not the buffered (possibly-truncated)
// count.
func (b *Buffer) LineCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Close closes the backing file handle. Idempotent; safe to call even if no
// write ever happened.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.file == nil {
		return nil
	}
	if err := b.writer.Flush(); err != nil {
		b.file.Close()
		return err
	}
	return b.file.Close()
}
