package queue

import (
	"encoding/json"
	"testing"
	"time"
)

type syncPayload struct {
	Universe string `json:"universe"`
	AsOf     string `json:"as_of"`
}

func (p syncPayload) JobKey() string { return p.Universe + "/" + p.AsOf }

func TestNextAttemptRetriesUntilLimit(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := Message{ID: "1"}

	msg, out, at := nextAttempt(msg, 2, time.Minute, now)
	if out != OutcomeRetry || msg.Attempts != 1 || !at.Equal(now.Add(time.Minute)) {
		t.Fatalf("first failure: outcome=%v attempts=%d at=%v", out, msg.Attempts, at)
	}
	msg, out, _ = nextAttempt(msg, 2, time.Minute, now)
	if out != OutcomeRetry || msg.Attempts != 2 {
		t.Fatalf("second failure: outcome=%v attempts=%d", out, msg.Attempts)
	}
	if _, out, _ = nextAttempt(msg, 2, time.Minute, now); out != OutcomeDead {
		t.Fatalf("third failure should dead-letter")
	}
}

func TestNextAttemptWithoutRetries(t *testing.T) {
	if _, out, _ := nextAttempt(Message{}, 0, time.Minute, time.Now()); out != OutcomeDead {
		t.Fatalf("retry limit 0 should dead-letter immediately")
	}
}

func TestJobKey(t *testing.T) {
	if got := jobKey("sync_universe", syncPayload{Universe: "CAC40", AsOf: "2024-05-01"}); got != "sync_universe:CAC40/2024-05-01" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := jobKey("sync_universe", map[string]string{"universe": "CAC40"}); got != "" {
		t.Fatalf("unkeyed payload should have no key, got %q", got)
	}
}

func TestKeysUsePrefix(t *testing.T) {
	k := newKeys("screener:queue")
	if k.messages != "screener:queue:messages" || k.retry != "screener:queue:retry" ||
		k.dead != "screener:queue:dlq" || k.pending != "screener:queue:pending:" {
		t.Fatalf("unexpected keys %+v", k)
	}
}

func TestParsePayloadShapes(t *testing.T) {
	want := syncPayload{Universe: "SP500", AsOf: "2024-05-01"}

	raw, _ := json.Marshal(want)
	var decoded Message
	if err := json.Unmarshal([]byte(`{"payload":`+string(raw)+`}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	inputs := map[string]interface{}{
		"value":   want,
		"pointer": &want,
		"raw":     json.RawMessage(raw),
		"map":     decoded.Payload,
	}
	for name, in := range inputs {
		got, err := ParsePayload[syncPayload](in)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if *got != want {
			t.Fatalf("%s: got %+v", name, *got)
		}
	}

	if _, err := ParsePayload[syncPayload](42); err == nil {
		t.Fatalf("expected error for unsupported payload")
	}
}
