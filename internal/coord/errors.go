package coord

import (
	"errors"
	"fmt"
)

// ErrBuild is matched by every *BuildError.
var ErrBuild = errors.New("build failed")

// ErrNotIdle is returned by Run on a coordinator that already ran.
var ErrNotIdle = errors.New("coord: coordinator is not idle")

// BuildError reports a failed guarded build. On the main participant Err
// holds the build's own error; other participants only see Message.
type BuildError struct {
	BuildID string
	Message string
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s failed: %s", e.BuildID, e.Message)
}

func (e *BuildError) Unwrap() error { return e.Err }

func (e *BuildError) Is(target error) bool { return target == ErrBuild }

// IsBuildError reports whether err is a *BuildError.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}
