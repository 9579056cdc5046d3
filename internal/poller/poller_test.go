package poller

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWaitReportsReadableFD(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	e, err := New(8)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Add(int(r.Fd()), Read))

	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	events, err := e.Wait(1000)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, int(r.Fd()), events[0].FD)
	require.NotZero(t, events[0].Interest&Read)
}

func TestWaitTimesOutWithNoEvents(t *testing.T) {
	e, err := New(8)
	require.NoError(t, err)
	defer e.Close()

	events, err := e.Wait(10)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestModifyChangesInterest(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	e, err := New(8)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Add(int(r.Fd()), 0))
	require.NoError(t, e.Modify(int(r.Fd()), Read))

	_, err = w.Write([]byte("y"))
	require.NoError(t, err)

	events, err := e.Wait(1000)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestRemoveStopsReporting(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	e, err := New(8)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Add(int(r.Fd()), Read))
	require.NoError(t, e.Remove(int(r.Fd())))

	_, err = w.Write([]byte("z"))
	require.NoError(t, err)

	events, err := e.Wait(20)
	require.NoError(t, err)
	require.Empty(t, events)
}
