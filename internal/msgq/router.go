package msgq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// delivery is one decoded inbound frame or the error that ended a stream.
type delivery struct {
	msg Message
	err error
}

// Router is the coordinator side of the process transport. Each attached
// worker contributes a write pipe for requests and a read pipe for replies;
// all replies are funnelled into one inbox addressed to the coordinator.
type Router struct {
	self int

	mu     sync.Mutex
	routes map[int]io.WriteCloser

	inbox     chan delivery
	done      chan struct{}
	closeOnce sync.Once
}

// NewRouter creates a router for the coordinator identity self.
func NewRouter(self int) *Router {
	return &Router{
		self:   self,
		routes: make(map[int]io.WriteCloser),
		inbox:  make(chan delivery, DefaultMailboxBuffer),
		done:   make(chan struct{}),
	}
}

// Attach registers a worker's pipes. The returned channel is closed once
// every frame from replies has been delivered to the inbox, which is the
// point after which the caller may reap the worker.
func (r *Router) Attach(pid int, requests io.WriteCloser, replies io.Reader) <-chan struct{} {
	r.mu.Lock()
	r.routes[pid] = requests
	r.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			msg, err := ReadFrame(replies)
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			if err != nil {
				err = fmt.Errorf("msgq: read from %d: %w", pid, err)
			}
			select {
			case r.inbox <- delivery{msg: msg, err: err}:
			case <-r.done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return drained
}

// Detach closes the request pipe of pid and forgets the route.
func (r *Router) Detach(pid int) error {
	r.mu.Lock()
	w, ok := r.routes[pid]
	delete(r.routes, pid)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return w.Close()
}

// Send writes msg to the target worker's request pipe.
func (r *Router) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("msgq: send to %d: %w", msg.Target, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return ErrClosed
	default:
	}

	w, ok := r.routes[msg.Target]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTarget, msg.Target)
	}
	if err := WriteFrame(w, msg); err != nil {
		return fmt.Errorf("msgq: send to %d: %w", msg.Target, err)
	}
	return nil
}

// Receive blocks until a reply arrives in the coordinator inbox.
func (r *Router) Receive(ctx context.Context, self int) (Message, error) {
	if self != r.self {
		return Message{}, fmt.Errorf("%w: router for %d asked to receive for %d", ErrMisaddressed, r.self, self)
	}

	// A queued reply wins over a done context.
	select {
	case d := <-r.inbox:
		return accept(d, self)
	default:
	}

	select {
	case d := <-r.inbox:
		return accept(d, self)
	case <-r.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, fmt.Errorf("msgq: receive for %d: %w", self, ctx.Err())
	}
}

func accept(d delivery, self int) (Message, error) {
	if d.err != nil {
		return Message{}, d.err
	}
	if d.msg.Target != self {
		return Message{}, fmt.Errorf("%w: reply from %d addressed to %d", ErrMisaddressed, d.msg.Source, d.msg.Target)
	}
	return d.msg, nil
}

// Close detaches every worker and wakes blocked receivers.
func (r *Router) Close() error {
	var errs []error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		close(r.done)
		for pid, w := range r.routes {
			errs = append(errs, w.Close())
			delete(r.routes, pid)
		}
	})
	return errors.Join(errs...)
}

var _ Channel = (*Router)(nil)
