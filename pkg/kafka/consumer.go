package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler consumes raw payloads from one topic. The consumer derives
// its topic subscriptions from the handlers registered on it.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds the knobs the ingest path actually tunes: the worker
// pool that fans readings out, retry/backoff for transient storage errors,
// and an optional dead-letter topic for poison payloads.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	Workers    int
	BufferSize int
	RetryMax   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	DLQTopic   string
	MinBytes   int
	MaxBytes   int
}

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) { c.GroupID = groupID }
}

func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) { c.Workers = count }
}

func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// Consumer reads gauge feeds from Kafka and fans them out to a worker pool.
// Ordering is preserved per (topic, partition); a partition never has more
// than one message in flight.
type Consumer struct {
	cfg       *ConsumerConfig
	readers   map[string]*kafka.Reader
	handlers  map[string]MessageHandler
	stopCh    chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	queue     chan *inbound
	dlq       *kafka.Writer
	partLocks map[string]map[int]*sync.Mutex
	hook      ConsumerHook
}

// inbound is one fetched message waiting for a worker.
type inbound struct {
	topic string
	data  []byte
	km    kafka.Message
}

// NewConsumer builds a consumer. Topics are attached later via
// RegisterHandler; Start opens one reader per registered topic.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:    "default",
		Workers:    1,
		BufferSize: 10,
		RetryMax:   3,
		BackoffMin: 50 * time.Millisecond,
		BackoffMax: 2 * time.Second,
		MinBytes:   10e3,
		MaxBytes:   10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:       cfg,
		readers:   make(map[string]*kafka.Reader),
		handlers:  make(map[string]MessageHandler),
		stopCh:    make(chan struct{}),
		queue:     make(chan *inbound, cfg.BufferSize),
		partLocks: make(map[string]map[int]*sync.Mutex),
		hook:      NoopHook{},
	}

	registerConsumerMetrics()

	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

// RegisterHandler subscribes the consumer to the handler's topic. A second
// registration for the same topic is ignored.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		log.Printf("warn: handler already registered for topic %s", topic)
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook installs a lifecycle hook. Must be called before Start.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start opens readers and launches the worker pool.
func (c *Consumer) Start() error {
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		log.Printf("kafka consumer: subscribed topic=%s", topic)
	}

	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	for topic, reader := range c.readers {
		c.wg.Add(1)
		go c.readLoop(topic, reader)
	}
	log.Printf("kafka consumer: running topics=%d workers=%d", len(c.readers), c.cfg.Workers)
	return nil
}

// Stop drains the consumer. It is safe to call more than once.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		log.Println("kafka consumer: stopping")
		close(c.stopCh)
		close(c.queue)
		stopErr = c.awaitDrain(ctx)

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				log.Printf("kafka consumer: close reader topic=%s: %v", topic, err)
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				log.Printf("kafka consumer: close dlq writer: %v", err)
			}
		}
		if stopErr == nil {
			log.Println("kafka consumer: stopped")
		}
	})
	return stopErr
}

func (c *Consumer) awaitDrain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("consumer drain: %w", ctx.Err())
	case <-done:
		return nil
	}
}

// readLoop fetches from one topic and enqueues for the workers. When the
// queue runs hot it backs off instead of dropping readings.
func (c *Consumer) readLoop(topic string, reader *kafka.Reader) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msg, err := reader.ReadMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				log.Printf("kafka consumer: read topic=%s: %v", topic, err)
			}
			continue
		}

		c.enqueue(&inbound{topic: topic, data: msg.Value, km: msg})
	}
}

func (c *Consumer) enqueue(m *inbound) {
	for {
		select {
		case c.queue <- m:
			ingestQueueDepth.WithLabelValues(m.topic).Set(float64(len(c.queue)))
			ingestQueueFullness.WithLabelValues(m.topic).Set(float64(len(c.queue)) / float64(cap(c.queue)))
			return
		case <-c.stopCh:
			return
		default:
			full := float64(len(c.queue)) / float64(cap(c.queue))
			ingestQueueFullness.WithLabelValues(m.topic).Set(full)
			if full > 0.8 {
				time.Sleep(10 * time.Millisecond)
			} else {
				runtime.Gosched()
			}
		}
	}
}

// worker dispatches queued messages to their topic handler with retries,
// hook callbacks, and a DLQ fallback for payloads that never succeed.
func (c *Consumer) worker() {
	defer c.wg.Done()

	for m := range c.queue {
		handler, ok := c.handlers[m.topic]
		if !ok {
			continue
		}
		c.dispatch(handler, m)
	}
}

func (c *Consumer) dispatch(handler MessageHandler, m *inbound) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("kafka consumer: panic in handler topic=%s: %v", m.topic, r)
		}
	}()

	// one in-flight message per (topic, partition)
	pl := c.partitionLock(m.topic, m.km.Partition)
	pl.Lock()
	defer pl.Unlock()

	var err error
	attempts := 0
	for {
		attempts++
		hctx, hmsg, hdata, berr := c.hook.BeforeHandle(context.Background(), m.topic, m.km, m.data)
		if berr != nil {
			err = berr
			break
		}
		err = handler.Handle(hctx, hdata)
		c.hook.AfterHandle(hctx, m.topic, hmsg, hdata, err)
		if err == nil || attempts > c.cfg.RetryMax {
			break
		}
		c.hook.OnError(hctx, m.topic, hmsg, hdata, err)
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.stopCh:
			return
		}
	}

	if err != nil {
		c.hook.OnError(context.Background(), m.topic, m.km, m.data, err)
		log.Printf("kafka consumer: giving up topic=%s attempts=%d: %v", m.topic, attempts-1, err)
		if c.dlq != nil && c.cfg.DLQTopic != "" {
			dlqErr := c.dlq.WriteMessages(context.Background(), kafka.Message{
				Topic:   c.cfg.DLQTopic,
				Value:   m.data,
				Time:    time.Now(),
				Headers: []kafka.Header{{Key: "source_topic", Value: []byte(m.topic)}},
			})
			if dlqErr != nil {
				log.Printf("kafka consumer: dlq write topic=%s: %v", c.cfg.DLQTopic, dlqErr)
			}
		}
	}

	// Commit on success, or after DLQ so a poison payload cannot loop.
	if err == nil || (c.dlq != nil && c.cfg.DLQTopic != "") {
		if reader := c.readers[m.topic]; reader != nil {
			_ = c.commitWithRetry(reader, m.km, 3)
		}
	}
	ingestHandleSeconds.WithLabelValues(m.topic).Observe(time.Since(start).Seconds())
}

func (c *Consumer) commitWithRetry(reader *kafka.Reader, km kafka.Message, max int) error {
	if max <= 0 {
		max = 1
	}
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	log.Printf("kafka consumer: commit failed after %d attempts: %v", max, err)
	return err
}

// partitionLock is only reached from workers already serialized through the
// queue, so lazy map fills here do not race.
func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	if m, ok := c.partLocks[topic]; ok {
		if l, ok := m[partition]; ok {
			return l
		}
	}
	if _, ok := c.partLocks[topic]; !ok {
		c.partLocks[topic] = make(map[int]*sync.Mutex)
	}
	if _, ok := c.partLocks[topic][partition]; !ok {
		c.partLocks[topic][partition] = &sync.Mutex{}
	}
	return c.partLocks[topic][partition]
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max {
		exp = max
	}
	jitter := time.Duration(rand.Int63n(int64(exp) / 2))
	return exp - jitter
}

var (
	ingestQueueDepth    *prometheus.GaugeVec
	ingestQueueFullness *prometheus.GaugeVec
	ingestHandleSeconds *prometheus.HistogramVec
	consumerMetricsOnce sync.Once
)

func registerConsumerMetrics() {
	consumerMetricsOnce.Do(func() {
		ingestQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "floodcast_kafka_consumer_queue_depth", Help: "Readings waiting in the consumer queue"},
			[]string{"topic"},
		)
		ingestQueueFullness = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "floodcast_kafka_consumer_queue_fullness", Help: "Consumer queue utilization (len/cap)"},
			[]string{"topic"},
		)
		ingestHandleSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "floodcast_kafka_consumer_handle_seconds", Help: "Handling time per reading"},
			[]string{"topic"},
		)
	})
}
