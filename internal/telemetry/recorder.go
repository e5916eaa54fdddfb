package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Recorder writes the record stream of one run to a zstd-compressed JSONL
// file. The header goes out immediately so a partial file is still
// replayable up to its last complete line.
type Recorder struct {
	mu     sync.Mutex
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	closed bool
}

// NewRecorder creates <dir>/<runID>.jsonl.zst and writes the header.
func NewRecorder(dir string, hdr *Header) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("telemetry: create output dir: %w", err)
	}
	path := filepath.Join(dir, hdr.RunID+".jsonl.zst")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create record file: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("telemetry: zstd writer: %w", err)
	}
	r := &Recorder{
		f:   f,
		enc: enc,
		w:   bufio.NewWriterSize(enc, 128*1024),
	}
	h := *hdr
	h.Type = TypeHeader
	if err := r.write(&h); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Recorder) OnTick(rec *TickRecord) error {
	rec.Type = TypeTick
	return r.write(rec)
}

func (r *Recorder) OnRoundEnd(rec *RoundRecord) error {
	rec.Type = TypeRound
	return r.write(rec)
}

func (r *Recorder) OnRunEnd(rec *RunRecord) error {
	rec.Type = TypeRun
	return r.write(rec)
}

func (r *Recorder) write(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("telemetry: write after close")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := r.w.Write(b); err != nil {
		return err
	}
	return r.w.WriteByte('\n')
}

// Close flushes and closes the file. Safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var first error
	if err := r.w.Flush(); err != nil {
		first = err
	}
	if err := r.enc.Close(); err != nil && first == nil {
		first = err
	}
	if err := r.f.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
