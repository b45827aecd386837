package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"go.bug.st/serial"
)

// source opens a connection to the analyzer. The returned stream is already
// configured; closing it unblocks pending reads.
type source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

type serialSource struct {
	port string
	mode serial.Mode
}

func newSerialSource(port string, baud, dataBits int, parity, stopBits string) (*serialSource, error) {
	mode := serial.Mode{BaudRate: baud, DataBits: dataBits}
	switch parity {
	case "none":
		mode.Parity = serial.NoParity
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("unknown parity %q", parity)
	}
	switch stopBits {
	case "1":
		mode.StopBits = serial.OneStopBit
	case "1.5":
		mode.StopBits = serial.OnePointFiveStopBits
	case "2":
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unknown stop bits %q", stopBits)
	}
	return &serialSource{port: port, mode: mode}, nil
}

func (s *serialSource) Open(_ context.Context) (io.ReadCloser, error) {
	mode := s.mode
	fd, err := serial.Open(s.port, &mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.port, err)
	}
	// The analyzer expects both lines asserted.
	if err := fd.SetDTR(true); err != nil {
		fd.Close()
		return nil, fmt.Errorf("set DTR on %s: %w", s.port, err)
	}
	if err := fd.SetRTS(true); err != nil {
		fd.Close()
		return nil, fmt.Errorf("set RTS on %s: %w", s.port, err)
	}
	return fd, nil
}

func (s *serialSource) String() string {
	return fmt.Sprintf("serial %s (%d baud)", s.port, s.mode.BaudRate)
}

// tcpSource reads from a serial-to-TCP bridge.
type tcpSource struct {
	addr    string
	timeout time.Duration
}

func (s *tcpSource) Open(ctx context.Context) (io.ReadCloser, error) {
	d := net.Dialer{Timeout: s.timeout}
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *tcpSource) String() string {
	return "tcp " + s.addr
}
