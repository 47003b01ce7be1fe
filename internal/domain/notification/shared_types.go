// internal/domain/notification/shared_types.go
package notification

import "time"

// Phase is the visible stage of the sunset notification sequence.
type Phase string

const (
	PhaseDormant      Phase = "DORMANT"
	PhaseWarning      Phase = "WARNING"      // countdown before sunset
	PhaseAnnouncement Phase = "ANNOUNCEMENT" // adhan at sunset
	PhaseReflection   Phase = "REFLECTION"   // iftar supplication
)

const (
	WarningWindow     = 60 * time.Second
	BoundaryTolerance = 5 * time.Second
	AnnounceDuration  = 5 * time.Second
	ReflectDuration   = 15 * time.Second
)
