package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"sync"
	"time"

	applogger "Screener/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type delivery struct {
	topic string
	km    kafka.Message
}

// Consumer reads registered topics and hands each message to a lane. A
// (topic, partition) always maps to the same lane, so its messages are
// handled in offset order.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *applogger.Logger
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	lanes    []chan delivery
	dlq      *kafka.Writer
	hook     ConsumerHook

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.Nop()
	}

	initConsumerMetricsOnce()
	c := &Consumer{
		cfg:      cfg,
		log:      cfg.Logger.With(applogger.String("component", "kafka-consumer")),
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		hook:     NoopHook{},
		stop:     make(chan struct{}),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.Hash{}}
	}
	return c, nil
}

// RegisterHandler registers a message handler for its topic. The first
// handler registered for a topic wins.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start opens one reader per registered topic and starts the lanes.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}

	c.lanes = make([]chan delivery, c.cfg.WorkerCount)
	for i := range c.lanes {
		c.lanes[i] = make(chan delivery, c.cfg.BufferSize)
		c.wg.Add(1)
		go c.drain(c.lanes[i])
	}

	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		c.readers[topic] = r
		c.wg.Add(1)
		go c.fetch(topic, r)
	}

	c.log.Info("kafka consumer started",
		applogger.String("group", c.cfg.GroupID),
		applogger.Int("topics", len(c.readers)),
		applogger.Int("lanes", len(c.lanes)),
	)
	return nil
}

// Stop signals readers and lanes, waits for them bounded by ctx, then closes
// the readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stop)

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("kafka reader close failed", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.log.Warn("kafka dlq writer close failed", applogger.Error(cerr))
			}
		}
		c.log.Info("kafka consumer stopped")
	})
	return err
}

// laneFor is stable for a (topic, partition) pair.
func laneFor(topic string, partition, lanes int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	_, _ = h.Write([]byte(strconv.Itoa(partition)))
	return int(h.Sum32() % uint32(lanes))
}

func (c *Consumer) fetch(topic string, r *kafka.Reader) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		km, err := r.FetchMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				c.log.Warn("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			}
			continue
		}

		lane := c.lanes[laneFor(topic, km.Partition, len(c.lanes))]
		select {
		case lane <- delivery{topic: topic, km: km}:
			consumerLaneDepth.WithLabelValues(topic).Set(float64(len(lane)))
		case <-c.stop:
			return
		}
	}
}

func (c *Consumer) drain(lane <-chan delivery) {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case d := <-lane:
			c.process(d)
		}
	}
}

func (c *Consumer) process(d delivery) {
	handler, ok := c.handlers[d.topic]
	if !ok {
		return
	}
	start := time.Now()
	defer func() {
		consumerHandleLatency.WithLabelValues(d.topic).Observe(time.Since(start).Seconds())
	}()

	attempts, err := c.handleWithRetry(handler, d)
	if errors.Is(err, errStopped) {
		return
	}
	if err != nil {
		consumerFailures.WithLabelValues(d.topic).Inc()
		c.log.Error("kafka message failed",
			applogger.String("topic", d.topic),
			applogger.Int("partition", d.km.Partition),
			applogger.Int64("offset", d.km.Offset),
			applogger.Int("attempts", attempts),
			applogger.Error(err),
		)
		if !c.deadLetter(d) {
			// left uncommitted so the group redelivers it
			return
		}
	}
	c.commit(d)
}

var errStopped = errors.New("consumer stopped")

func (c *Consumer) handleWithRetry(handler MessageHandler, d delivery) (int, error) {
	var err error
	for attempt := 1; ; attempt++ {
		err = c.handleOnce(handler, d)
		if err == nil || attempt > c.cfg.RetryMax {
			return attempt, err
		}
		c.safeHook(func() { c.hook.OnError(context.Background(), d.topic, d.km, d.km.Value, err) })
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.stop:
			return attempt, errStopped
		}
	}
}

func (c *Consumer) handleOnce(handler MessageHandler, d delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	ctx, km, data, err := c.hook.BeforeHandle(context.Background(), d.topic, d.km, d.km.Value)
	if err != nil {
		return err
	}
	err = handler.Handle(ctx, data)
	c.safeHook(func() { c.hook.AfterHandle(ctx, d.topic, km, data, err) })
	return err
}

func (c *Consumer) safeHook(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("kafka hook panic", applogger.Any("panic", r))
		}
	}()
	fn()
}

// deadLetter copies d to the DLQ topic and reports whether it may be committed.
func (c *Consumer) deadLetter(d delivery) bool {
	if c.dlq == nil {
		return false
	}
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   d.km.Key,
		Value: d.km.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(d.topic)},
			{Key: "source_offset", Value: []byte(strconv.FormatInt(d.km.Offset, 10))},
		},
	})
	if err != nil {
		c.log.Error("kafka dlq write failed", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(err))
		return false
	}
	return true
}

func (c *Consumer) commit(d delivery) {
	r := c.readers[d.topic]
	if r == nil {
		return
	}
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, d.km)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("kafka commit failed", applogger.String("topic", d.topic), applogger.Error(err))
}

// backoffWithJitter doubles min per attempt up to max and removes up to 50% jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min << uint(attempt-1)
	if exp > max || exp <= 0 {
		exp = max
	}
	return exp - time.Duration(rand.Int63n(int64(exp)/2+1))
}

var (
	consumerLaneDepth     *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerFailures      *prometheus.CounterVec
	consumerOnce          sync.Once
)

func initConsumerMetricsOnce() {
	consumerOnce.Do(func() {
		consumerLaneDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "screener_kafka_consumer_lane_depth", Help: "Messages waiting in the lane last written to"},
			[]string{"topic"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screener_kafka_consumer_handle_seconds",
				Help:    "Handling time per message, retries included",
				Buckets: []float64{0.01, 0.1, 1, 10, 60, 300, 1800},
			},
			[]string{"topic"},
		)
		consumerFailures = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "screener_kafka_consumer_failures_total", Help: "Messages that exhausted retries"},
			[]string{"topic"},
		)
	})
}
