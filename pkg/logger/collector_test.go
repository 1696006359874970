package logger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	digests []LogDigest
	done    chan struct{}
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.digests = append(p.digests, payload.(LogDigest))
	close(p.done)
	return nil
}

func TestCollectorAggregatesRepeatedEntries(t *testing.T) {
	pub := &capturePublisher{done: make(chan struct{})}
	c := NewLogCollector(&CollectionConfig{
		Service:        "screener",
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "screener.logs",
		Publisher:      pub,
	})
	defer c.Close()

	fields := map[string]interface{}{"ticker": "AAA"}
	c.AddLog("warn", "fetch failed", fields, "sync.go:10")
	c.AddLog("warn", "fetch failed", fields, "sync.go:10")
	if got := c.Pending(); got != 1 {
		t.Fatalf("expected 1 pending entry, got %d", got)
	}

	// second distinct entry reaches the threshold and flushes
	c.AddLog("error", "store write failed", nil, "merge.go:20")

	select {
	case <-pub.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("digest was not published")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.topic != "screener.logs" {
		t.Fatalf("unexpected topic %q", pub.topic)
	}
	d := pub.digests[0]
	if d.Service != "screener" || len(d.Entries) != 2 {
		t.Fatalf("unexpected digest %+v", d)
	}
	if d.Entries[0].Count != 2 || d.Entries[0].Message != "fetch failed" {
		t.Fatalf("entries should be ordered by count, got %+v", d.Entries)
	}
}

func TestCollectorWithoutPublisherDrops(t *testing.T) {
	c := NewLogCollector(&CollectionConfig{CountThreshold: 1})
	c.AddLog("error", "boom", nil, "x.go:1")
	if got := c.Pending(); got != 0 {
		t.Fatalf("expected flush to clear entries, got %d", got)
	}
	c.Close()
}
