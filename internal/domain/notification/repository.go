// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"
)

// Repository persists completed notification cycles so a restart does not
// replay a sequence that already ran.
type Repository interface {
	// MarkFired stores the cycle. Recording the same subscriber and boundary twice is not an error.
	MarkFired(ctx context.Context, cycle *Cycle) error
	// IsFired reports whether a cycle exists for the subscriber and boundary instant.
	IsFired(ctx context.Context, subscriberID int64, boundaryAt time.Time) (bool, error)
	// ListCyclesByDate is used by the admin overview.
	ListCyclesByDate(ctx context.Context, cycleDate time.Time) ([]*Cycle, error)
}
