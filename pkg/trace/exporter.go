//go:build tracing

package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileExporter appends trace records to a JSON Lines file, rotating the
// active file into numbered archives once it passes a size limit. Archive
// suffixes count upward (traces.jsonl.1 is the oldest), and archives beyond
// the retention count are pruned on rotation.
type FileExporter struct {
	mu      sync.Mutex
	path    string
	limit   int64
	keep    int
	seq     int
	written int64
	file    *os.File
	closed  bool
}

// WithMaxSize sets the active-file size at which rotation happens
// (default: 10MB).
func WithMaxSize(bytes int64) FileExporterOption {
	return func(iface interface{}) {
		if fe, ok := iface.(*FileExporter); ok {
			fe.limit = bytes
		}
	}
}

// WithMaxRotatedFiles sets how many archived files to keep (default: 5).
func WithMaxRotatedFiles(count int) FileExporterOption {
	return func(iface interface{}) {
		if fe, ok := iface.(*FileExporter); ok {
			fe.keep = count
		}
	}
}

// NewFileExporter creates a file-based trace exporter. An empty path means
// tracing is configured off, which yields the no-op exporter. The active
// file is opened immediately, appending to whatever a previous run left.
func NewFileExporter(filePath string, opts ...FileExporterOption) (Exporter, error) {
	if filePath == "" {
		return &NoopExporter{}, nil
	}

	fe := &FileExporter{
		path:  filePath,
		limit: 10 * 1024 * 1024,
		keep:  5,
	}
	for _, opt := range opts {
		opt(fe)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	fe.seq = highestArchiveSeq(filePath)
	if err := fe.openActive(); err != nil {
		return nil, err
	}
	return fe, nil
}

// Export writes one record as a JSON line and rotates the file when it has
// grown past the size limit.
func (fe *FileExporter) Export(ctx context.Context, record *TraceRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode trace record: %w", err)
	}
	line = append(line, '\n')

	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.closed {
		return fmt.Errorf("trace exporter is closed")
	}

	n, err := fe.file.Write(line)
	fe.written += int64(n)
	if err != nil {
		return fmt.Errorf("write trace record: %w", err)
	}
	if fe.written >= fe.limit {
		if err := fe.rotate(); err != nil {
			return fmt.Errorf("rotate trace file: %w", err)
		}
	}
	return nil
}

// Close syncs and closes the active file. Further Export calls fail;
// repeated Close is a no-op.
func (fe *FileExporter) Close() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.closed {
		return nil
	}
	fe.closed = true

	if err := fe.file.Sync(); err != nil {
		fe.file.Close()
		return fmt.Errorf("sync trace file: %w", err)
	}
	return fe.file.Close()
}

// openActive opens the live file for appending and seeds the byte counter
// from whatever it already holds. Caller holds the lock (or is the
// constructor).
func (fe *FileExporter) openActive() error {
	f, err := os.OpenFile(fe.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat trace file: %w", err)
	}
	fe.file = f
	fe.written = info.Size()
	return nil
}

// rotate archives the active file under the next sequence number, prunes
// archives beyond the retention count, and reopens a fresh active file.
// Caller holds the lock.
func (fe *FileExporter) rotate() error {
	if err := fe.file.Close(); err != nil {
		return fmt.Errorf("close active trace file: %w", err)
	}
	fe.seq++
	if err := os.Rename(fe.path, fmt.Sprintf("%s.%d", fe.path, fe.seq)); err != nil {
		return fmt.Errorf("archive trace file: %w", err)
	}

	// Walk down from the newest expired suffix; the first miss means the
	// rest are already gone.
	for n := fe.seq - fe.keep; n > 0; n-- {
		if os.Remove(fmt.Sprintf("%s.%d", fe.path, n)) != nil {
			break
		}
	}
	return fe.openActive()
}

// highestArchiveSeq finds the largest numeric archive suffix already on
// disk, so a restarted exporter keeps counting instead of overwriting.
func highestArchiveSeq(path string) int {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	highest := 0
	for _, entry := range entries {
		var n int
		if _, err := fmt.Sscanf(entry.Name(), base+".%d", &n); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}
