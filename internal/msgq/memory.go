package msgq

import (
	"context"
	"fmt"
	"sync"
)

// DefaultMailboxBuffer is the per-identity buffer used by NewMemory.
const DefaultMailboxBuffer = 16

// Memory is an in-process Channel: one globally addressable set of
// per-identity mailboxes. Receive only ever returns messages addressed to
// the caller.
type Memory struct {
	mu        sync.Mutex
	mailboxes map[int]chan Message
	buffer    int
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemory creates an in-process channel.
func NewMemory() *Memory {
	return NewMemoryWithBuffer(DefaultMailboxBuffer)
}

// NewMemoryWithBuffer creates an in-process channel with a custom mailbox
// buffer size.
func NewMemoryWithBuffer(size int) *Memory {
	if size <= 0 {
		size = DefaultMailboxBuffer
	}
	return &Memory{
		mailboxes: make(map[int]chan Message),
		buffer:    size,
		done:      make(chan struct{}),
	}
}

func (m *Memory) mailbox(id int) chan Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	box, ok := m.mailboxes[id]
	if !ok {
		box = make(chan Message, m.buffer)
		m.mailboxes[id] = box
	}
	return box
}

// Send enqueues msg in the target's mailbox.
func (m *Memory) Send(ctx context.Context, msg Message) error {
	box := m.mailbox(msg.Target)

	select {
	case <-m.done:
		return ErrClosed
	default:
	}

	select {
	case box <- msg:
		return nil
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("msgq: send to %d: %w", msg.Target, ctx.Err())
	}
}

// Receive blocks until a message addressed to self arrives. A queued
// message is returned even if ctx is already done.
func (m *Memory) Receive(ctx context.Context, self int) (Message, error) {
	box := m.mailbox(self)

	select {
	case msg := <-box:
		return msg, nil
	default:
	}

	select {
	case msg := <-box:
		return msg, nil
	case <-m.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, fmt.Errorf("msgq: receive for %d: %w", self, ctx.Err())
	}
}

// Forget drops the mailbox of an identity that will not receive again.
// Undelivered messages are discarded.
func (m *Memory) Forget(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mailboxes, id)
}

// Pending returns the number of undelivered messages for id.
func (m *Memory) Pending(id int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mailboxes[id])
}

// Close wakes every blocked sender and receiver with ErrClosed.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

var _ Channel = (*Memory)(nil)
