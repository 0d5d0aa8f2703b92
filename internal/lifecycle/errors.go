package lifecycle

import (
	"errors"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/errors"
)

const (
	StepIndex    = "index"
	StepSnapshot = "snapshot"
)

// PartialWriteError reports a write whose store step committed but whose
// Step did not. Nothing is rolled back; the index converges on the next
// rebuild.
type PartialWriteError struct {
	Op        string
	Step      string
	ArticleID string
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s %s: store committed but %s step failed: %v", e.Op, e.ArticleID, e.Step, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// Is matches ErrIndexDesync for index step failures. Snapshot failures
// already wrap ErrStoreFailure.
func (e *PartialWriteError) Is(target error) bool {
	return target == apperrors.ErrIndexDesync && e.Step == StepIndex
}

// IsPartial reports whether err describes a committed write with a failed
// follow-up step.
func IsPartial(err error) bool {
	var pw *PartialWriteError
	return errors.As(err, &pw)
}
