package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"juntas/pkg/platform/circuit"
)

// Producer is the subset of *kgo.Client the dispatcher uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaDispatcher publishes notifications as JSON records keyed by case id.
// While the breaker is open records are dropped without contacting Kafka.
type KafkaDispatcher struct {
	producer Producer
	topic    string
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

type KafkaOption func(*KafkaDispatcher)

func WithBreaker(b *circuit.Breaker) KafkaOption {
	return func(d *KafkaDispatcher) {
		d.breaker = b
	}
}

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(d *KafkaDispatcher) {
		d.logger = logger
	}
}

func NewKafkaDispatcher(producer Producer, topic string, opts ...KafkaOption) *KafkaDispatcher {
	d := &KafkaDispatcher{
		producer: producer,
		topic:    topic,
		breaker:  circuit.New("notification-kafka"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, n Notification) bool {
	if !d.breaker.Allow() {
		d.logger.WarnContext(ctx, "notification dropped, circuit open",
			"case_id", n.CaseID,
			"breaker", d.breaker.Name(),
		)
		return false
	}

	value, err := json.Marshal(n)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to encode notification", "case_id", n.CaseID, "error", err)
		return false
	}
	record := &kgo.Record{
		Topic: d.topic,
		Key:   []byte(n.CaseID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte("case.created")},
		},
	}

	if err := d.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		_, change := d.breaker.RecordFailure()
		if change.Opened {
			d.logger.ErrorContext(ctx, "notification circuit opened", "breaker", d.breaker.Name())
		}
		d.logger.WarnContext(ctx, "failed to publish notification",
			"case_id", n.CaseID,
			"topic", d.topic,
			"error", err,
		)
		return false
	}
	d.breaker.RecordSuccess()
	return true
}
