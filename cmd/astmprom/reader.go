package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"calmh.dev/astmprom/astm"
	"github.com/google/uuid"
)

// received is a decoded message tagged with the connection session it
// arrived on. Message ids restart with every session.
type received struct {
	Session string `json:"session"`
	*astm.Message
}

// reader owns the analyzer connection. It is the only goroutine feeding
// the frame assembler of a session.
type reader struct {
	src      source
	catalog  *astm.Catalog
	metrics  *metrics
	messages *fanout[*received]
	log      *slog.Logger
}

func (r *reader) Serve(ctx context.Context) error {
	conn, err := r.src.Open(ctx)
	if err != nil {
		return fmt.Errorf("connect %v: %w", r.src, err)
	}

	session := uuid.NewString()
	l := r.log.With("session", session)
	l.Log(ctx, levelSuccess, "Connected", "source", r.src.String())
	r.metrics.connects.Inc()
	r.metrics.connected.Set(1)
	defer r.metrics.connected.Set(0)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	framer := astm.NewFramer(conn)
	parser := astm.NewParser(r.catalog)
	for {
		text, err := framer.Read()
		if err != nil {
			if ctx.Err() != nil {
				l.Info("Disconnected")
				return ctx.Err()
			}
			l.Error("Connection lost", "error", err)
			return fmt.Errorf("read %v: %w", r.src, err)
		}
		rec := &received{Session: session, Message: parser.Parse(text)}
		r.metrics.observe(rec.Message)
		logMessage(ctx, r.log, rec)
		r.messages.Publish(rec)
	}
}

func (r *reader) String() string {
	return "reader " + r.src.String()
}

var errNoSource = errors.New("one of --serial or --addr is required")
