package msgq

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame(t *testing.T) {
	var buf bytes.Buffer
	want := Message{Source: 4242, Target: 17, Payload: Terminate}

	require.NoError(t, WriteFrame(&buf, want))
	assert.Equal(t, FrameSize, buf.Len())

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrame_RejectsUnknownPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Message{Source: 1, Target: 2, Payload: 9}))

	_, err := ReadFrame(&buf)
	assert.ErrorIs(t, err, ErrBadPayload)
}

func TestFrame_TruncatedIsNotEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(make([]byte, FrameSize-3)))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

// pipeWorker wires an Endpoint to a Router through in-memory pipes, the
// same topology as a child process's stdin and stdout.
func pipeWorker(t *testing.T, r *Router, pid int) (*Endpoint, <-chan struct{}, io.Closer) {
	t.Helper()
	reqR, reqW := io.Pipe()
	repR, repW := io.Pipe()

	ep := NewEndpoint(pid, reqR, repW)
	drained := r.Attach(pid, reqW, repR)
	return ep, drained, repW
}

func TestRouter_RoundTrip(t *testing.T) {
	const coordinator = 100
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r := NewRouter(coordinator)
	defer r.Close()

	ep, drained, stdout := pipeWorker(t, r, 200)

	go func() {
		msg, err := ep.Receive(ctx, 200)
		if err != nil {
			return
		}
		_ = ep.Send(ctx, Message{Source: 200, Target: msg.Source, Payload: Terminate})
		_ = stdout.Close()
	}()

	require.NoError(t, r.Send(ctx, Message{Source: coordinator, Target: 200, Payload: Continue}))
	reply, err := r.Receive(ctx, coordinator)
	require.NoError(t, err)
	assert.Equal(t, Message{Source: 200, Target: coordinator, Payload: Terminate}, reply)

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("reply stream was not drained after the worker closed it")
	}
	require.NoError(t, r.Detach(200))
}

func TestRouter_UnknownTarget(t *testing.T) {
	r := NewRouter(1)
	defer r.Close()

	err := r.Send(context.Background(), Message{Source: 1, Target: 99, Payload: Continue})
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestRouter_ReceiveForOtherIdentity(t *testing.T) {
	r := NewRouter(1)
	defer r.Close()

	_, err := r.Receive(context.Background(), 2)
	assert.ErrorIs(t, err, ErrMisaddressed)
}

func TestRouter_MalformedReplyIsFatal(t *testing.T) {
	r := NewRouter(1)
	defer r.Close()

	var requests bytes.Buffer
	var replies bytes.Buffer
	require.NoError(t, WriteFrame(&replies, Message{Source: 5, Target: 1, Payload: 7}))
	r.Attach(5, nopCloser{&requests}, &replies)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := r.Receive(ctx, 1)
	assert.ErrorIs(t, err, ErrBadPayload)
}

func TestEndpoint_ClosedRequestStream(t *testing.T) {
	ep := NewEndpoint(3, bytes.NewReader(nil), io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := ep.Receive(ctx, 3)
	assert.ErrorIs(t, err, ErrClosed)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func TestRouter_QueuedReplyBeatsDoneContext(t *testing.T) {
	const coordinator = 100
	r := NewRouter(coordinator)
	defer r.Close()

	ep, drained, stdout := pipeWorker(t, r, 200)
	go func() {
		_ = ep.Send(context.Background(), Message{Source: 200, Target: coordinator, Payload: Continue})
		_ = stdout.Close()
	}()

	// Once drained is closed the reply is queued in the inbox.
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("reply stream was not drained")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reply, err := r.Receive(ctx, coordinator)
	require.NoError(t, err)
	assert.Equal(t, Continue, reply.Payload)

	_, err = r.Receive(ctx, coordinator)
	assert.ErrorIs(t, err, context.Canceled)
}
