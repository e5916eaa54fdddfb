package telemetry

import (
	"errors"
	"testing"
)

type failSink struct{ err error }

func (f failSink) OnTick(*TickRecord) error      { return f.err }
func (f failSink) OnRoundEnd(*RoundRecord) error { return f.err }
func (f failSink) OnRunEnd(*RunRecord) error     { return f.err }
func (f failSink) Close() error                  { return f.err }

func TestMultiSinkDeliversToAll(t *testing.T) {
	a := &MemorySink{}
	b := &MemorySink{}
	m := MultiSink{a, b}

	if err := m.OnTick(&TickRecord{Tick: 1}); err != nil {
		t.Fatalf("OnTick: %v", err)
	}
	if err := m.OnRoundEnd(&RoundRecord{Round: 0, Outcome: "succeeded"}); err != nil {
		t.Fatalf("OnRoundEnd: %v", err)
	}
	if err := m.OnRunEnd(&RunRecord{Rounds: 1}); err != nil {
		t.Fatalf("OnRunEnd: %v", err)
	}

	for i, s := range []*MemorySink{a, b} {
		if len(s.Ticks) != 1 || len(s.Rounds) != 1 || s.Run == nil {
			t.Errorf("sink %d missed records: %d ticks, %d rounds, run=%v",
				i, len(s.Ticks), len(s.Rounds), s.Run)
		}
	}
}

func TestMultiSinkKeepsDeliveringPastErrors(t *testing.T) {
	boom := errors.New("boom")
	mem := &MemorySink{}
	m := MultiSink{failSink{err: boom}, mem}

	err := m.OnTick(&TickRecord{Tick: 5})
	if !errors.Is(err, boom) {
		t.Errorf("expected the sink error to surface, got %v", err)
	}
	if len(mem.Ticks) != 1 {
		t.Errorf("later sinks should still receive the record, got %d", len(mem.Ticks))
	}
}
