package coord

import "context"

// Outcome is the result of a build as seen by every participant.
type Outcome struct {
	OK      bool   `cbor:"ok"`
	Message string `cbor:"message,omitempty"`
	BuildID string `cbor:"build_id,omitempty"`
	// Fresh carries the main participant's freshness decision.
	Fresh bool `cbor:"fresh,omitempty"`
}

// Comm is the collective communication surface of a parallel job.
//
// Broadcast must be called by every participant. The value passed by
// rank 0 is returned to all of them; values passed by other ranks are
// ignored. Barrier returns once every participant has entered it.
// Both abort when ctx is done.
type Comm interface {
	Rank() int
	Size() int
	Broadcast(ctx context.Context, msg Outcome) (Outcome, error)
	Barrier(ctx context.Context) error
}

// IsMain reports whether c is the main participant.
func IsMain(c Comm) bool {
	return c.Rank() == 0
}

// Solo is a job of one participant.
type Solo struct{}

func (Solo) Rank() int { return 0 }
func (Solo) Size() int { return 1 }

func (Solo) Broadcast(ctx context.Context, msg Outcome) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	return msg, nil
}

func (Solo) Barrier(ctx context.Context) error {
	return ctx.Err()
}
