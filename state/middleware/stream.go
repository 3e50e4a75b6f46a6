package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/glog"
	"github.com/johnsiilver/stockboard"
	"github.com/johnsiilver/stockboard/state/actions"
	"github.com/johnsiilver/stockboard/state/data"
	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the part of *kafka.Writer that Stream uses.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a batching, asynchronous *kafka.Writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				glog.Errorf("problem writing %d ticks to kafka topic %s: %s", len(msgs), topic, err)
			}
		},
	}
}

// Stream provides middleware that writes every price update to kafka, keyed
// by symbol so a stock's updates stay in order.
type Stream struct {
	w       KafkaWriter
	timeout time.Duration
}

// NewStream is the constructor for Stream.
func NewStream(w KafkaWriter) *Stream {
	return &Stream{w: w, timeout: 2 * time.Second}
}

// Write implements stockboard.Middleware. Only ticks are streamed. Kafka
// errors are logged, they never stop a commit.
func (s *Stream) Write(args *stockboard.MWArgs) (changedData *data.State, stop bool, err error) {
	if args.Action.Type != actions.ActTick {
		args.WG.Done()
		return nil, false, nil
	}
	old := args.GetState()

	go func() {
		defer args.WG.Done()
		state := <-args.Committed
		if state.IsZero() {
			return
		}

		var msgs []kafka.Message
		for _, r := range changedRecords(old.Data, state.Data) {
			b, err := json.Marshal(r)
			if err != nil {
				glog.Errorf("problem marshalling stock %s for kafka: %s", r.Symbol, err)
				continue
			}
			msgs = append(msgs, kafka.Message{Key: []byte(r.Symbol), Value: b, Time: r.LastTrade})
		}
		if len(msgs) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.w.WriteMessages(ctx, msgs...); err != nil {
			glog.Errorf("problem streaming ticks to kafka: %s", err)
		}
	}()
	return nil, false, nil
}

// Close closes the underlying writer, flushing anything buffered.
func (s *Stream) Close() error {
	return s.w.Close()
}
