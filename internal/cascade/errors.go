package cascade

import (
	"errors"
	"fmt"
)

var (
	// ErrRowCountMismatch is returned when a step removed fewer rows than it resolved,
	// meaning another writer changed the graph during the cascade
	ErrRowCountMismatch = errors.New("removed row count does not match resolved rows")

	ErrInvalidPlan = errors.New("invalid cascade plan")
)

// PartialFailureError reports the step at which a cascade stopped.
// When the cascade runs inside a transaction the caller rolls back, so
// nothing before Step stays deleted.
type PartialFailureError struct {
	Plan string
	Step string
	Err  error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("cascade %s failed at step %s: %v", e.Plan, e.Step, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
