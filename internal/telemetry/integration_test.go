//go:build integration

package telemetry_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/efreeman/crossway/internal/telemetry"
	"github.com/efreeman/crossway/internal/testutil"
)

func TestPublisherDeliversOverRedis(t *testing.T) {
	rdb := testutil.SetupRedis(t)

	sub := rdb.Subscribe(t.Context(), "crossway:telemetry:it-run")
	t.Cleanup(func() { sub.Close() })
	if _, err := sub.Receive(t.Context()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	pub, err := telemetry.NewPublisher(testutil.RedisURL(), "it-run")
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	t.Cleanup(func() { pub.Close() })

	if err := pub.OnTick(&telemetry.TickRecord{Round: 0, Tick: 12}); err != nil {
		t.Fatalf("OnTick: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var rec telemetry.TickRecord
		if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if rec.Type != telemetry.TypeTick || rec.Tick != 12 {
			t.Errorf("got %+v", rec)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message received on the telemetry channel")
	}
}
