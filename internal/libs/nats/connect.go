// Package natsq owns the JetStream plumbing for the download queue: the
// connection itself and the stream that buffers submitted job IDs.
package natsq

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

type Config struct {
	URL           string
	Name          string
	MaxReconnects int

	Stream  string
	Subject string
	MaxAge  time.Duration
}

// Connect dials the server and makes sure the download stream exists. The
// stream is file-backed and keeps messages for MaxAge, so queued job IDs
// survive a restart of both this service and the NATS server.
func Connect(cfg Config) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("JetStream: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.Subject},
		Storage:  nats.FileStorage,
		Replicas: 1,
		MaxAge:   cfg.MaxAge,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		nc.Close()
		return nil, nil, fmt.Errorf("JetStream AddStream: %w", err)
	}

	return nc, js, nil
}
