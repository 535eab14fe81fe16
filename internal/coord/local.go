package coord

import "context"

// localFleet is the shared state of an in-process job. Every follower
// owns a broadcast inbox and a barrier release channel; rank 0 owns the
// arrival channel.
type localFleet struct {
	size    int
	inbox   []chan Outcome
	release []chan struct{}
	arrive  chan struct{}
}

type localComm struct {
	fleet *localFleet
	rank  int
}

// NewLocalFleet returns n participants connected through channels.
// Element i has rank i. n < 1 is treated as 1.
func NewLocalFleet(n int) []Comm {
	if n < 1 {
		n = 1
	}
	f := &localFleet{
		size:    n,
		inbox:   make([]chan Outcome, n),
		release: make([]chan struct{}, n),
		arrive:  make(chan struct{}, n),
	}
	comms := make([]Comm, n)
	for i := range comms {
		f.inbox[i] = make(chan Outcome, 1)
		f.release[i] = make(chan struct{}, 1)
		comms[i] = &localComm{fleet: f, rank: i}
	}
	return comms
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.fleet.size }

func (c *localComm) Broadcast(ctx context.Context, msg Outcome) (Outcome, error) {
	if c.rank != 0 {
		select {
		case out := <-c.fleet.inbox[c.rank]:
			return out, nil
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}

	for i := 1; i < c.fleet.size; i++ {
		select {
		case c.fleet.inbox[i] <- msg:
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}
	return msg, nil
}

func (c *localComm) Barrier(ctx context.Context) error {
	if c.rank != 0 {
		select {
		case c.fleet.arrive <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case <-c.fleet.release[c.rank]:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for i := 1; i < c.fleet.size; i++ {
		select {
		case <-c.fleet.arrive:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for i := 1; i < c.fleet.size; i++ {
		select {
		case c.fleet.release[i] <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
