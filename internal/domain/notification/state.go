// internal/domain/notification/state.go
package notification

import "time"

// State is the notification sequence for one boundary instance.
// Boundary and Fired always travel together: a new boundary means a new State.
type State struct {
	Phase            Phase
	Boundary         time.Time // zero while no validated boundary is known
	Fired            bool      // the sequence completed for Boundary
	SecondsRemaining int       // set in PhaseWarning
	AnnounceDeadline time.Time
	ReflectDeadline  time.Time
}

// Arm returns a fresh dormant state for boundary.
func Arm(boundary time.Time) State {
	return State{Phase: PhaseDormant, Boundary: boundary}
}

// Rearm keeps s when boundary is the one s was armed for, otherwise it
// abandons whatever cycle s was in and arms the new boundary.
func Rearm(s State, boundary time.Time) State {
	if s.Boundary.Equal(boundary) {
		return s
	}
	return Arm(boundary)
}

// Armed reports whether s waits on a validated boundary.
func (s State) Armed() bool {
	return !s.Boundary.IsZero()
}

// Changed reports whether s is in a different phase than prev.
func (s State) Changed(prev State) bool {
	return s.Phase != prev.Phase
}

// Step computes the state at now. It depends only on its arguments, so it
// can be re-evaluated on every tick; after missed ticks the next call lands
// directly in the right phase by comparing now against absolute deadlines.
func Step(s State, now time.Time) State {
	if !s.Armed() || s.Fired {
		return dormant(s)
	}

	switch s.Phase {
	case PhaseAnnouncement:
		if now.Before(s.AnnounceDeadline) {
			return s
		}
		next := s
		next.Phase = PhaseReflection
		next.ReflectDeadline = now.Add(ReflectDuration)
		return next

	case PhaseReflection:
		if now.Before(s.ReflectDeadline) {
			return s
		}
		next := dormant(s)
		next.Fired = true
		return next
	}

	// Dormant or Warning: position relative to the boundary decides.
	remaining := s.Boundary.Sub(now)
	switch {
	case remaining > WarningWindow:
		return dormant(s)
	case remaining > 0:
		next := s
		next.Phase = PhaseWarning
		next.SecondsRemaining = int(remaining / time.Second)
		return next
	case -remaining <= BoundaryTolerance:
		next := s
		next.Phase = PhaseAnnouncement
		next.SecondsRemaining = 0
		next.AnnounceDeadline = now.Add(AnnounceDuration)
		return next
	default:
		// Past the grace window without announcing: the sunset was missed
		// (e.g. the process was suspended) and is not announced late.
		next := dormant(s)
		next.Fired = true
		return next
	}
}

func dormant(s State) State {
	return State{Phase: PhaseDormant, Boundary: s.Boundary, Fired: s.Fired}
}
