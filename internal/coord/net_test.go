package coord

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startNetFleet connects a job of size participants over loopback TCP.
func startNetFleet(t *testing.T, size int) []Comm {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	root, err := Listen("127.0.0.1:0", size)
	require.NoError(t, err)
	addr := root.Addr().String()

	comms := make([]Comm, size)
	comms[0] = root

	var wg sync.WaitGroup
	dialErrs := make([]error, size)
	for rank := 1; rank < size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			c, err := Dial(ctx, addr, rank, size)
			dialErrs[rank] = err
			if err == nil {
				comms[rank] = c
			}
		}(rank)
	}

	require.NoError(t, root.Accept(ctx))
	wg.Wait()
	for rank, err := range dialErrs {
		require.NoError(t, err, "rank %d", rank)
	}

	t.Cleanup(func() {
		for _, c := range comms {
			c.(*NetComm).Close()
		}
	})
	return comms
}

func TestNetComm_BroadcastAndBarrier(t *testing.T) {
	comms := startNetFleet(t, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	want := Outcome{OK: false, Message: "boom", BuildID: "build-7"}
	got := make([]Outcome, len(comms))
	errs := make([]error, len(comms))

	var wg sync.WaitGroup
	for i, c := range comms {
		wg.Add(1)
		go func(i int, c Comm) {
			defer wg.Done()
			msg := Outcome{}
			if i == 0 {
				msg = want
			}
			got[i], errs[i] = c.Broadcast(ctx, msg)
			if errs[i] == nil {
				errs[i] = c.Barrier(ctx)
			}
		}(i, c)
	}
	wg.Wait()

	for rank := range comms {
		require.NoError(t, errs[rank], "rank %d", rank)
		assert.Equal(t, want, got[rank], "rank %d", rank)
	}
}

func TestNetComm_CoordinatorRun(t *testing.T) {
	comms := startNetFleet(t, 3)
	cause := errors.New("link failed")

	errs := runFleet(t, comms, func(context.Context, string) error { return cause })

	for rank, err := range errs {
		var be *BuildError
		require.True(t, errors.As(err, &be), "rank %d: %v", rank, err)
		assert.Equal(t, "link failed", be.Message)
		assert.Equal(t, "build-1", be.BuildID)
	}
}

func TestNetComm_FollowerCancelled(t *testing.T) {
	comms := startNetFleet(t, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := comms[1].Broadcast(ctx, Outcome{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDial_InvalidRank(t *testing.T) {
	_, err := Dial(context.Background(), "127.0.0.1:1", 0, 2)
	assert.Error(t, err)

	_, err = Dial(context.Background(), "127.0.0.1:1", 2, 2)
	assert.Error(t, err)
}

func TestDial_GivesUpWithContext(t *testing.T) {
	root, err := Listen("127.0.0.1:0", 2)
	require.NoError(t, err)
	addr := root.Addr().String()
	require.NoError(t, root.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = Dial(ctx, addr, 1, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestListen_InvalidSize(t *testing.T) {
	_, err := Listen("127.0.0.1:0", 0)
	assert.Error(t, err)
}

func TestConnect_Solo(t *testing.T) {
	c, err := Connect(context.Background(), Settings{Rank: 0, Size: 1, Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer c.Close()

	out, err := c.Broadcast(context.Background(), Outcome{OK: true})
	require.NoError(t, err)
	assert.True(t, out.OK)
}
