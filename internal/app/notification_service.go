// internal/app/notification_service.go
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ramadan_companion_bot/internal/domain/calendar"
	"ramadan_companion_bot/internal/domain/notification"
	"ramadan_companion_bot/internal/domain/prayer"
	"ramadan_companion_bot/internal/domain/subscriber"
)

// NotificationService drives the sunset sequence of every active subscriber.
type NotificationService interface {
	// Tick advances every subscriber's state machine to now and publishes phase changes.
	Tick(ctx context.Context, now time.Time)
	// Refresh syncs trackers with the active subscribers. A changed location or
	// day starts a new fetch; force re-fetches unchanged ones as well.
	Refresh(ctx context.Context, now time.Time, force bool) error
	// Reload re-reads one subscriber after a settings change.
	Reload(ctx context.Context, subscriberID int64, now time.Time) error
	// Status returns what presentation needs to render the subscriber's boundary.
	Status(subscriberID int64) (Status, bool)
}

// Notifier receives phase changes of the sunset sequence.
type Notifier interface {
	NotifyPhase(ctx context.Context, sub *subscriber.Subscriber, state notification.State) error
}

// Status is a read-only snapshot of one tracker.
type Status struct {
	Key     prayer.Key
	State   notification.State
	Timings *prayer.DayTimings // nil until the first successful fetch for Key
	Err     error              // last fetch failure for Key
}

type tracker struct {
	sub        *subscriber.Subscriber
	key        prayer.Key
	generation uint64
	state      notification.State
	timings    *prayer.DayTimings
	lastErr    error
	cancel     context.CancelFunc
}

type phaseEvent struct {
	sub   *subscriber.Subscriber
	state notification.State
	prev  notification.State
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	subscribers subscriber.Repository
	cycles      notification.Repository
	boundaries  *BoundaryService
	notifier    Notifier
	zones       *ZoneBook
	logger      *logrus.Entry
	now         func() time.Time

	baseCtx    context.Context
	stopAll    context.CancelFunc
	wg         sync.WaitGroup // fetches
	publishing sync.WaitGroup // Tick deliveries

	mu       sync.Mutex
	trackers map[int64]*tracker
	stopped  bool
}

func NewNotificationServiceImpl(
	sr subscriber.Repository,
	cr notification.Repository,
	boundaries *BoundaryService,
	notifier Notifier,
	zones *ZoneBook,
	logger *logrus.Entry,
) *NotificationServiceImpl {
	ctx, cancel := context.WithCancel(context.Background())
	return &NotificationServiceImpl{
		subscribers: sr,
		cycles:      cr,
		boundaries:  boundaries,
		notifier:    notifier,
		zones:       zones,
		logger:      logger,
		now:         time.Now,
		baseCtx:     ctx,
		stopAll:     cancel,
		trackers:    make(map[int64]*tracker),
	}
}

func (s *NotificationServiceImpl) Tick(ctx context.Context, now time.Time) {
	var events []phaseEvent

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	for _, t := range s.trackers {
		prev := t.state
		next := notification.Step(prev, now)
		t.state = next
		if next.Changed(prev) || (next.Fired && !prev.Fired) {
			events = append(events, phaseEvent{sub: t.sub, state: next, prev: prev})
		}
	}
	s.publishing.Add(1)
	s.mu.Unlock()
	defer s.publishing.Done()

	for _, ev := range events {
		if s.isStopped() {
			s.logger.WithField("pending", len(events)).Debug("Service stopped, dropping phase notifications")
			return
		}
		s.publish(ctx, ev, now)
	}
}

func (s *NotificationServiceImpl) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *NotificationServiceImpl) publish(ctx context.Context, ev phaseEvent, now time.Time) {
	log := s.logger.WithFields(logrus.Fields{
		"subscriber_id": ev.sub.ID,
		"boundary":      ev.state.Boundary.Format(time.RFC3339),
		"phase":         ev.state.Phase,
	})

	if ev.state.Fired && !ev.prev.Fired {
		if ev.prev.Phase == notification.PhaseReflection {
			cycle := &notification.Cycle{
				SubscriberID: ev.sub.ID,
				CycleDate:    calendar.StartOfDay(ev.state.Boundary.In(s.zones.For(ev.sub.Location()))),
				BoundaryAt:   ev.state.Boundary,
				FiredAt:      now,
			}
			if err := s.cycles.MarkFired(ctx, cycle); err != nil {
				log.WithError(err).Error("Failed to record completed notification cycle")
			} else {
				log.Info("Notification cycle completed")
			}
		} else {
			log.WithField("previous_phase", ev.prev.Phase).Warn("Sunset missed by more than the grace window, sequence skipped")
		}
	}

	log.Debug("Phase changed")
	if err := s.notifier.NotifyPhase(ctx, ev.sub, ev.state); err != nil {
		log.WithError(err).Error("Failed to deliver phase notification")
	}
}

func (s *NotificationServiceImpl) Refresh(ctx context.Context, now time.Time, force bool) error {
	subs, err := s.subscribers.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active subscribers: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}

	active := make(map[int64]struct{}, len(subs))
	for _, sub := range subs {
		active[sub.ID] = struct{}{}
		s.syncLocked(sub, now, force)
	}
	for id, t := range s.trackers {
		if _, ok := active[id]; !ok {
			s.dropLocked(id, t)
		}
	}
	s.logger.WithFields(logrus.Fields{
		"subscribers": len(s.trackers),
		"forced":      force,
	}).Debug("Trackers refreshed")
	return nil
}

func (s *NotificationServiceImpl) Reload(ctx context.Context, subscriberID int64, now time.Time) error {
	sub, err := s.subscribers.GetByID(ctx, subscriberID)
	if err != nil {
		return fmt.Errorf("failed to reload subscriber %d: %w", subscriberID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	if !sub.IsActive {
		if t, ok := s.trackers[sub.ID]; ok {
			s.dropLocked(sub.ID, t)
		}
		return nil
	}
	s.syncLocked(sub, now, false)
	return nil
}

func (s *NotificationServiceImpl) Status(subscriberID int64) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[subscriberID]
	if !ok {
		return Status{}, false
	}
	return Status{Key: t.key, State: t.state, Timings: t.timings, Err: t.lastErr}, true
}

// Stop abandons all fetches and waits for them and for deliveries of a Tick
// in progress. Results arriving afterwards are ignored and Tick becomes a no-op.
func (s *NotificationServiceImpl) Stop() {
	s.mu.Lock()
	s.stopped = true
	for _, t := range s.trackers {
		if t.cancel != nil {
			t.cancel()
		}
	}
	s.mu.Unlock()

	s.stopAll()
	s.wg.Wait()
	s.publishing.Wait()
	s.logger.Info("Notification service stopped")
}

// syncLocked points the subscriber's tracker at today's key, today being
// the calendar day at the subscriber's location. A different key abandons
// the cycle in progress; s.mu must be held.
func (s *NotificationServiceImpl) syncLocked(sub *subscriber.Subscriber, now time.Time, force bool) {
	today := s.zones.Today(sub.Location(), now)
	desired := prayer.KeyFor(sub.Location(), today)

	t, ok := s.trackers[sub.ID]
	if !ok {
		t = &tracker{}
		s.trackers[sub.ID] = t
	}
	t.sub = sub

	if ok && t.key == desired && !force {
		return
	}
	if !ok || t.key != desired {
		if ok && t.state.Phase != notification.PhaseDormant {
			s.logger.WithFields(logrus.Fields{
				"subscriber_id": sub.ID,
				"phase":         t.state.Phase,
				"old_key":       t.key.String(),
				"new_key":       desired.String(),
			}).Info("Location or day changed, abandoning cycle in progress")
		}
		t.key = desired
		t.state = notification.Arm(time.Time{})
		t.timings = nil
		t.lastErr = nil
	}
	s.startFetchLocked(t, sub.Location(), today, force)
}

func (s *NotificationServiceImpl) startFetchLocked(t *tracker, loc prayer.Location, day time.Time, force bool) {
	if t.cancel != nil {
		t.cancel()
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	t.cancel = cancel
	t.generation++

	req := fetchRequest{
		subscriberID: t.sub.ID,
		generation:   t.generation,
		key:          t.key,
		location:     loc,
		day:          day,
		force:        force,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.fetch(ctx, req)
	}()
}

func (s *NotificationServiceImpl) dropLocked(id int64, t *tracker) {
	if t.cancel != nil {
		t.cancel()
	}
	delete(s.trackers, id)
	s.logger.WithField("subscriber_id", id).Info("Subscriber no longer active, tracker removed")
}

type fetchRequest struct {
	subscriberID int64
	generation   uint64
	key          prayer.Key
	location     prayer.Location
	day          time.Time
	force        bool
}

type fetchResult struct {
	timings  *prayer.DayTimings
	boundary prayer.Boundary
	fired    bool
	err      error
}

func (s *NotificationServiceImpl) fetch(ctx context.Context, req fetchRequest) {
	var res fetchResult
	res.timings, res.err = s.boundaries.Timings(ctx, req.location, req.day, req.force)
	if res.err == nil {
		res.boundary, res.err = res.timings.Boundary(s.now())
	}
	if res.err == nil && res.boundary.Active {
		fired, err := s.cycles.IsFired(ctx, req.subscriberID, res.boundary.At)
		if err != nil {
			s.logger.WithError(err).WithField("subscriber_id", req.subscriberID).
				Warn("Could not check for a completed cycle, assuming none")
		}
		res.fired = fired
	}
	s.apply(ctx, req, res)
}

// apply installs a fetch result unless the request has been superseded.
func (s *NotificationServiceImpl) apply(ctx context.Context, req fetchRequest, res fetchResult) {
	log := s.logger.WithFields(logrus.Fields{
		"subscriber_id": req.subscriberID,
		"key":           req.key.String(),
		"generation":    req.generation,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trackers[req.subscriberID]
	if s.stopped || ctx.Err() != nil || !ok || t.generation != req.generation || t.key != req.key {
		log.Debug("Discarding superseded boundary fetch")
		return
	}

	if res.err != nil {
		t.lastErr = res.err
		switch {
		case res.timings != nil:
			// timings arrived but carry no usable sunset
			t.timings = res.timings
			t.state = notification.Arm(time.Time{})
			log.WithError(res.err).Error("Sunset missing from timings, notifications stay dormant")
		case t.state.Armed():
			log.WithError(res.err).Warn("Boundary refresh failed, keeping the validated boundary")
		default:
			log.WithError(res.err).Error("Boundary fetch failed, notifications stay dormant")
		}
		return
	}

	// The first fetch for a location teaches its zone. When the location's
	// calendar day differs from the one assumed, fetch that day instead.
	if now := s.now(); prayer.KeyFor(t.sub.Location(), s.zones.Today(t.sub.Location(), now)) != t.key {
		log.Info("Location day differs from the fetched day, refetching")
		s.syncLocked(t.sub, now, false)
		return
	}

	t.timings = res.timings
	t.lastErr = nil

	switch {
	case t.state.Boundary.Equal(res.boundary.At):
		// same sunset, keep the cycle in progress and its fired flag
	case !res.boundary.Active:
		t.state = notification.Arm(time.Time{})
		log.WithField("maghrib", res.boundary.At.Format(time.RFC3339)).Info("Sunset already passed today, boundary inactive")
	default:
		next := notification.Rearm(t.state, res.boundary.At)
		next.Fired = next.Fired || res.fired
		t.state = next
		log.WithFields(logrus.Fields{
			"maghrib": res.boundary.At.Format(time.RFC3339),
			"fired":   next.Fired,
		}).Info("Boundary armed")
	}
}
