package msgq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Endpoint is the worker side of the process transport: requests arrive on
// one stream (the worker's stdin) and replies leave on another (its stdout).
type Endpoint struct {
	self int

	mu  sync.Mutex
	out io.Writer

	inbox chan delivery
}

// NewEndpoint starts decoding requests from in on behalf of self.
func NewEndpoint(self int, in io.Reader, out io.Writer) *Endpoint {
	e := &Endpoint{
		self:  self,
		out:   out,
		inbox: make(chan delivery, 1),
	}
	go e.read(in)
	return e
}

func (e *Endpoint) read(in io.Reader) {
	defer close(e.inbox)
	for {
		msg, err := ReadFrame(in)
		if errors.Is(err, io.EOF) {
			return
		}
		e.inbox <- delivery{msg: msg, err: err}
		if err != nil {
			return
		}
	}
}

// Send writes a reply frame.
func (e *Endpoint) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("msgq: send to %d: %w", msg.Target, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := WriteFrame(e.out, msg); err != nil {
		return fmt.Errorf("msgq: send to %d: %w", msg.Target, err)
	}
	return nil
}

// Receive blocks until the next request addressed to self arrives. It
// returns ErrClosed once the coordinator closes the request stream.
func (e *Endpoint) Receive(ctx context.Context, self int) (Message, error) {
	select {
	case d, ok := <-e.inbox:
		if !ok {
			return Message{}, ErrClosed
		}
		if d.err != nil {
			return Message{}, fmt.Errorf("msgq: receive for %d: %w", self, d.err)
		}
		if d.msg.Target != self || self != e.self {
			return Message{}, fmt.Errorf("%w: request for %d delivered to %d", ErrMisaddressed, d.msg.Target, self)
		}
		return d.msg, nil
	case <-ctx.Done():
		return Message{}, fmt.Errorf("msgq: receive for %d: %w", self, ctx.Err())
	}
}

var _ Channel = (*Endpoint)(nil)
