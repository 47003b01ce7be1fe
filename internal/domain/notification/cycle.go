// internal/domain/notification/cycle.go
package notification

import "time"

// Cycle records that the sunset sequence ran for a subscriber's boundary.
// Corresponds to the 'notification_cycles' table.
type Cycle struct {
	ID           int64
	SubscriberID int64
	CycleDate    time.Time // calendar day of the boundary
	BoundaryAt   time.Time // exact sunset instant the sequence ran for
	FiredAt      time.Time
	CreatedAt    time.Time
}
