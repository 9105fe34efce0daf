package worker

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/oss/internal/msgq"
	"github.com/wesleyorama2/oss/internal/simclock"
)

func TestDrawLifetime(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 1000; i++ {
		lt := DrawLifetime(rng, 5)
		require.GreaterOrEqual(t, lt.Seconds, uint32(1))
		require.LessOrEqual(t, lt.Seconds, uint32(5))
		require.Less(t, lt.Nanos, uint32(simclock.NanosPerSecond))
	}

	assert.Equal(t, uint32(1), DrawLifetime(rng, 0).Seconds, "limit below one draws one second")
}

func TestNew_DeadlineNormalized(t *testing.T) {
	w := New(10, 1, simclock.Time{Seconds: 2, Nanos: 800_000_000}, simclock.Time{Seconds: 1, Nanos: 400_000_000}, nil)
	assert.Equal(t, simclock.Time{Seconds: 4, Nanos: 200_000_000}, w.Deadline())
	assert.Equal(t, StateRunning, w.State())
}

func TestWorker_Decide(t *testing.T) {
	w := New(10, 1, simclock.Time{}, simclock.Time{Seconds: 1, Nanos: 500}, nil)

	tests := []struct {
		name  string
		now   simclock.Time
		want  msgq.Payload
		state State
	}{
		{"before deadline", simclock.Time{Seconds: 0, Nanos: 999}, msgq.Continue, StateRunning},
		{"same second, earlier nanos", simclock.Time{Seconds: 1, Nanos: 499}, msgq.Continue, StateRunning},
		{"exactly at deadline", simclock.Time{Seconds: 1, Nanos: 500}, msgq.Continue, StateRunning},
		{"just past deadline", simclock.Time{Seconds: 1, Nanos: 501}, msgq.Terminate, StateTerminating},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Decide(tt.now))
			assert.Equal(t, tt.state, w.State())
		})
	}
	assert.Equal(t, int64(4), w.Iterations())
}

func TestWorker_TerminatingIsTerminal(t *testing.T) {
	w := New(10, 1, simclock.Time{}, simclock.Time{Seconds: 1}, nil)
	require.Equal(t, msgq.Terminate, w.Decide(simclock.Time{Seconds: 2}))
	assert.Equal(t, msgq.Terminate, w.Decide(simclock.Time{}), "a terminating worker never goes back to running")
}

func TestWorker_Run(t *testing.T) {
	const coordinator = 1
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch := msgq.NewMemory()
	defer ch.Close()
	clock := simclock.New()

	w := New(42, coordinator, clock.Read(), simclock.Time{Seconds: 1}, nil)
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx, ch, clock) }()

	var replies []msgq.Payload
	for {
		clock.Advance(1)
		require.NoError(t, ch.Send(ctx, msgq.Message{Source: coordinator, Target: 42, Payload: msgq.Continue}))
		reply, err := ch.Receive(ctx, coordinator)
		require.NoError(t, err)
		assert.Equal(t, 42, reply.Source)
		replies = append(replies, reply.Payload)

		if reply.Payload == msgq.Terminate {
			break
		}
	}

	// 250ms per tick: 1s is reached on the fourth wake, passed on the fifth.
	assert.Equal(t, []msgq.Payload{
		msgq.Continue, msgq.Continue, msgq.Continue, msgq.Continue, msgq.Terminate,
	}, replies)

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after replying terminate")
	}
}

func TestWorker_RunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := msgq.NewMemory()
	defer ch.Close()

	w := New(7, 1, simclock.Time{}, simclock.Time{Seconds: 1}, nil)
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx, ch, simclock.New()) }()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker ignored cancellation")
	}
}
