package telemetry

import "sync"

// Sink consumes the record stream of a simulation run. Implementations are
// called from the simulation loop goroutine only; Close may race with nothing.
type Sink interface {
	OnTick(rec *TickRecord) error
	OnRoundEnd(rec *RoundRecord) error
	OnRunEnd(rec *RunRecord) error
	Close() error
}

// MultiSink fans records out to several sinks, keeping the first error per
// call but always delivering to every sink.
type MultiSink []Sink

func (m MultiSink) OnTick(rec *TickRecord) error {
	var first error
	for _, s := range m {
		if err := s.OnTick(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) OnRoundEnd(rec *RoundRecord) error {
	var first error
	for _, s := range m {
		if err := s.OnRoundEnd(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) OnRunEnd(rec *RunRecord) error {
	var first error
	for _, s := range m {
		if err := s.OnRunEnd(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// MemorySink buffers every record in memory. Used by replay verification and
// tests.
type MemorySink struct {
	mu     sync.Mutex
	Ticks  []TickRecord
	Rounds []RoundRecord
	Run    *RunRecord
}

func (m *MemorySink) OnTick(rec *TickRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ticks = append(m.Ticks, *rec)
	return nil
}

func (m *MemorySink) OnRoundEnd(rec *RoundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rounds = append(m.Rounds, *rec)
	return nil
}

func (m *MemorySink) OnRunEnd(rec *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := *rec
	m.Run = &run
	return nil
}

func (m *MemorySink) Close() error { return nil }
