package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

type natsQueue struct {
	js      nats.JetStreamContext
	subject string
	sub     *nats.Subscription
}

// NewNATSQueue sets up the durable pull consumer. ackWait must exceed the
// extraction timeout, otherwise the server would redeliver a job while a
// worker is still processing it.
func NewNATSQueue(js nats.JetStreamContext, stream, subject, durable string, maxAckPending int, ackWait time.Duration) (*natsQueue, error) {
	_, err := js.AddConsumer(stream, &nats.ConsumerConfig{
		Durable:       durable,
		AckPolicy:     nats.AckExplicitPolicy,
		AckWait:       ackWait,
		FilterSubject: subject,
		MaxAckPending: maxAckPending,
	})
	if err != nil && !errors.Is(err, nats.ErrConsumerNameAlreadyInUse) {
		return nil, fmt.Errorf("JetStream AddConsumer: %w", err)
	}

	sub, err := js.PullSubscribe(subject, durable)
	if err != nil {
		return nil, fmt.Errorf("JetStream PullSubscribe: %w", err)
	}

	return &natsQueue{js: js, subject: subject, sub: sub}, nil
}

func (q *natsQueue) Enqueue(ctx context.Context, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("empty jobID")
	}

	msg := &nats.Msg{
		Subject: q.subject,
		Data:    []byte(jobID),
		Header:  nats.Header{},
	}

	ack, err := q.js.PublishMsg(msg)
	if err != nil {
		return fmt.Errorf("enqueue job %s: publish failed: %w", jobID, err)
	}

	slog.Debug("job enqueued",
		slog.String("job_id", jobID),
		slog.String("subject", q.subject),
		slog.String("stream", ack.Stream),
		slog.Uint64("seq", ack.Sequence),
	)

	return nil
}

func (q *natsQueue) Dequeue(ctx context.Context) (string, func(), error) {
	for {
		msgs, err := q.sub.Fetch(1, nats.Context(ctx))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return "", nil, err
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			return "", nil, fmt.Errorf("nats fetch: %w", err)
		}
		if len(msgs) == 0 {
			continue
		}

		msg := msgs[0]
		ack := func() {
			if err := msg.Ack(); err != nil {
				slog.Warn("NATS Ack", slog.String("error", err.Error()))
			}
		}
		return string(msg.Data), ack, nil
	}
}

func (q *natsQueue) Close() error {
	if q.sub == nil {
		return nil
	}
	return q.sub.Drain()
}
