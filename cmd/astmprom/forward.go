package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
)

// forwarder streams every received message as one JSON line to each
// connected TCP client.
type forwarder struct {
	addr     string
	messages *fanout[*received]
	log      *slog.Logger
}

func (f *forwarder) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	list, err := lc.Listen(ctx, "tcp", f.addr)
	if err != nil {
		return err
	}
	f.log.Info("Forwarding messages", "listen", list.Addr().String())
	go func() {
		<-ctx.Done()
		list.Close()
	}()

	for {
		conn, err := list.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go f.handleConn(ctx, conn)
	}
}

func (f *forwarder) handleConn(ctx context.Context, conn net.Conn) {
	sub := f.messages.Listen()
	defer sub.Close()
	defer conn.Close()
	l := f.log.With("remote", conn.RemoteAddr().String())
	l.Debug("Forward client connected")

	enc := json.NewEncoder(conn)
	for {
		select {
		case rec := <-sub.Channel():
			if err := enc.Encode(rec); err != nil {
				l.Debug("Forward client gone", "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (f *forwarder) String() string {
	return "forwarder " + f.addr
}
