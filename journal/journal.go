//go:generate mockgen -source=journal.go -destination=mock/journal.go -package=mock

// Package journal publishes message lifecycle events to kafka for downstream consumers.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	kafka "github.com/segmentio/kafka-go"

	pb "github.com/mqy/pairchat/proto"
)

const (
	EventCreated = "message.created"
	EventStatus  = "message.status"

	writeTimeout = 3 * time.Second

	BackoffMinInterval = 1 * time.Second
	BackoffMaxInterval = 60 * time.Second
	BackoffMultiplier  = 1.5

	// give up on an event after this many failed writes
	maxAttempts = 5
)

var journalErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "pairchat_journal_errors_total",
	Help: "Journal events dropped or failed to write.",
}, []string{"reason"})

func init() {
	prometheus.MustRegister(journalErrors)
}

type IKafkaWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Event is the kafka message value. The payload is never journaled.
type Event struct {
	Type       string    `json:"type"`
	Id         string    `json:"id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Status     pb.Status `json:"status"`
	CreateTime int64     `json:"create_time"`
	Time       int64     `json:"time"` // unix milliseconds
}

func NewEvent(typ string, m *pb.Message) *Event {
	return &Event{
		Type:       typ,
		Id:         m.Id,
		From:       m.From,
		To:         m.To,
		Status:     m.Status,
		CreateTime: m.CreateTime,
		Time:       time.Now().UnixNano() / 1e6,
	}
}

// pairKey keeps one conversation on one partition, so consumers see its events in order.
func (e *Event) pairKey() []byte {
	a, b := e.From, e.To
	if b < a {
		a, b = b, a
	}
	return []byte(a + ":" + b)
}

// Journal accepts events without blocking the caller.
type Journal interface {
	Publish(e *Event)
}

type nop struct{}

func (nop) Publish(*Event) {}

// Nop discards every event.
var Nop Journal = nop{}

// Kafka queues events and writes them from a single loop.
type Kafka struct {
	writer   IKafkaWriter
	maxBytes int
	queue    chan *Event
	sleep    func(ctx context.Context, d time.Duration) bool
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Dialer: &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
		},
	})
}

func NewKafka(writer IKafkaWriter, queueSize, maxBytes int) *Kafka {
	return &Kafka{
		writer:   writer,
		maxBytes: maxBytes,
		queue:    make(chan *Event, queueSize),
		sleep:    sleepCtx,
	}
}

func (k *Kafka) Publish(e *Event) {
	select {
	case k.queue <- e:
	default:
		journalErrors.WithLabelValues("queue_full").Inc()
		glog.Errorf("journal: queue full, dropping %s %s", e.Type, e.Id)
	}
}

// Run writes queued events until ctx is done, then closes the writer.
func (k *Kafka) Run(ctx context.Context, stopDoneC chan<- struct{}) {
	glog.Info("journal: write loop enter")
	defer func() {
		if err := k.writer.Close(); err != nil {
			glog.Errorf("journal: close writer: %v", err)
		}
		glog.Info("journal: write loop exit")
		stopDoneC <- struct{}{}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-k.queue:
			k.write(ctx, e)
		}
	}
}

func (k *Kafka) encode(e *Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	if len(value) > k.maxBytes {
		return kafka.Message{}, fmt.Errorf("event exceeds max limit: %d bytes", k.maxBytes)
	}
	return kafka.Message{Key: e.pairKey(), Value: value}, nil
}

func (k *Kafka) write(ctx context.Context, e *Event) bool {
	km, err := k.encode(e)
	if err != nil {
		journalErrors.WithLabelValues("encode").Inc()
		glog.Errorf("journal: %v", err)
		return false
	}

	var sleep time.Duration
	for attempt := 1; ; attempt++ {
		ctx2, cancel := context.WithTimeout(ctx, writeTimeout)
		err := k.writer.WriteMessages(ctx2, km)
		cancel()
		if err == nil {
			glog.V(5).Infof("journal: wrote %s %s", e.Type, e.Id)
			return true
		}

		glog.Errorf("journal: write to kafka err: %v", err)
		if ctx.Err() != nil || attempt >= maxAttempts {
			journalErrors.WithLabelValues("write").Inc()
			return false
		}
		backoff(&sleep)
		if !k.sleep(ctx, sleep) {
			return false
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func backoff(d *time.Duration) {
	if *d == 0 {
		*d = BackoffMinInterval
	} else {
		*d = time.Duration(float64(*d) * BackoffMultiplier)
		if *d < BackoffMaxInterval {
			*d = d.Truncate(time.Millisecond)
		} else {
			*d = BackoffMinInterval
		}
	}
}
