package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Log is a fully parsed record file.
type Log struct {
	Header *Header
	Ticks  []TickRecord
	Rounds []RoundRecord
	Run    *RunRecord
}

// LoadFile parses a recorded .jsonl.zst stream. Unknown record types are
// skipped so newer files stay loadable; a missing header is an error.
func LoadFile(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open record file: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("telemetry: zstd reader: %w", err)
	}
	defer zr.Close()

	var log Log
	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		var kind struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &kind); err != nil {
			return nil, fmt.Errorf("telemetry: line %d: %w", line, err)
		}
		switch kind.Type {
		case TypeHeader:
			var h Header
			if err := json.Unmarshal(raw, &h); err != nil {
				return nil, fmt.Errorf("telemetry: line %d: header: %w", line, err)
			}
			log.Header = &h
		case TypeTick:
			var t TickRecord
			if err := json.Unmarshal(raw, &t); err != nil {
				return nil, fmt.Errorf("telemetry: line %d: tick: %w", line, err)
			}
			log.Ticks = append(log.Ticks, t)
		case TypeRound:
			var r RoundRecord
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, fmt.Errorf("telemetry: line %d: round: %w", line, err)
			}
			log.Rounds = append(log.Rounds, r)
		case TypeRun:
			var r RunRecord
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, fmt.Errorf("telemetry: line %d: run: %w", line, err)
			}
			log.Run = &r
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("telemetry: scan record file: %w", err)
	}
	if log.Header == nil {
		return nil, fmt.Errorf("telemetry: %s has no header record", path)
	}
	return &log, nil
}
