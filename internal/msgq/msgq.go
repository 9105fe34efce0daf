// Package msgq is the blocking request/reply transport between the
// coordinator and its workers.
//
// Messages are addressed by process identity. The coordinator sends a wake
// message to exactly one worker and then blocks on the reply addressed to
// itself, so at most one request is in flight at any time.
package msgq

import (
	"context"
	"errors"
)

// Payload is the body of a protocol message.
type Payload int32

const (
	// Terminate is the worker's reply once its deadline has passed.
	Terminate Payload = 0
	// Continue is the coordinator's wake signal and the worker's reply while
	// its deadline has not passed.
	Continue Payload = 1
)

func (p Payload) String() string {
	switch p {
	case Terminate:
		return "terminate"
	case Continue:
		return "continue"
	default:
		return "unknown"
	}
}

// Message is one protocol exchange unit.
type Message struct {
	Source  int
	Target  int
	Payload Payload
}

// Channel sends and receives addressed messages. Both operations block
// until they complete or ctx is done.
type Channel interface {
	Send(ctx context.Context, msg Message) error
	Receive(ctx context.Context, self int) (Message, error)
}

var (
	// ErrClosed is returned after the channel has been closed.
	ErrClosed = errors.New("msgq: channel closed")
	// ErrUnknownTarget is returned when sending to an identity with no route.
	ErrUnknownTarget = errors.New("msgq: unknown target")
	// ErrMisaddressed is returned when a received message is not addressed
	// to the receiver.
	ErrMisaddressed = errors.New("msgq: misaddressed message")
	// ErrBadPayload is returned when a frame carries an unknown payload.
	ErrBadPayload = errors.New("msgq: bad payload")
)
