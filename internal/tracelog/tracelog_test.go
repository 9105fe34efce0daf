package tracelog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/oss/internal/proctable"
	"github.com/wesleyorama2/oss/internal/simclock"
)

func TestTrace_Events(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, 99)
	now := simclock.Time{Seconds: 1, Nanos: 250}

	tr.Launched(1001, 0, now, simclock.Time{Seconds: 3, Nanos: 7})
	tr.Sent(0, 1001, now)
	tr.Received(0, 1001, now)
	tr.Terminating(0, 1001)
	tr.Reaped(2, 1002, now)
	tr.Summary(3, 17)
	require.NoError(t, tr.Err())

	out := buf.String()
	assert.Contains(t, out, "Launched worker PID 1001 in slot 0 at simulated time 1 s, 250 ns")
	assert.Contains(t, out, "OSS: Sending message to worker at index 0 PID 1001 at time 1:250")
	assert.Contains(t, out, "OSS: Received message from worker at index 0 PID 1001 at time 1:250")
	assert.Contains(t, out, "Worker at index 0 PID 1001 is planning to terminate")
	assert.Contains(t, out, "Child PID 1002 in slot 2 terminated")
	assert.True(t, strings.HasSuffix(out, "Summary: Total processes launched: 3, Total messages sent: 17\n"))
}

func TestTrace_Snapshot(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, 99)

	table := proctable.New(2)
	require.NoError(t, table.Occupy(1, 555, simclock.Time{Seconds: 4, Nanos: 8}))

	tr.Snapshot(simclock.Time{Seconds: 5}, table)
	require.NoError(t, tr.Err())

	out := buf.String()
	assert.Contains(t, out, "OSS PID: 99 | SysClock: 5 s, 0 ns")
	assert.Contains(t, out, "MessagesSent")
	assert.Contains(t, out, "555")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestTrace_StickyError(t *testing.T) {
	tr := New(failingWriter{}, 1)
	tr.Summary(1, 1)
	tr.Summary(2, 2)

	assert.EqualError(t, tr.Err(), "disk full")
	assert.EqualError(t, tr.Close(), "disk full")
}

func TestCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oss.log")
	tr, err := Create(path, 7)
	require.NoError(t, err)

	tr.Summary(0, 0)
	require.NoError(t, tr.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Summary: Total processes launched: 0, Total messages sent: 0\n", string(data))
}

func TestCreate_BadPath(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing", "oss.log"), 7)
	assert.Error(t, err)
}
