package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaldesk/dental/internal/platform/db"
	"github.com/dentaldesk/dental/internal/platform/events"
)

// Event types published for queue transitions.
const (
	EventEnqueued       = "enqueued"
	EventCalled         = "called"
	EventCompleted      = "completed"
	EventForceCompleted = "force_completed"
	EventCancelled      = "cancelled"
	EventRemoved        = "removed"
)

// publishTimeout bounds how long a committed transition waits on publishers.
const publishTimeout = 2 * time.Second

type Service struct {
	repo           Repository
	publisher      events.Publisher
	activity       *ActivityLog
	avgMinutes     int
	publishTimeout time.Duration
	logger         zerolog.Logger
	now            func() time.Time
}

func NewService(repo Repository, publisher events.Publisher, avgMinutes int, logger zerolog.Logger) *Service {
	return &Service{
		repo:           repo,
		publisher:      publisher,
		activity:       NewActivityLog(),
		avgMinutes:     avgMinutes,
		publishTimeout: publishTimeout,
		logger:         logger.With().Str("component", "queue").Logger(),
		now:            time.Now,
	}
}

type change struct {
	typ   string
	entry Entry
}

// transact runs fn under the branch lock and, once it commits, records and
// publishes every change fn reported.
func (s *Service) transact(ctx context.Context, actor string, fn func(ctx context.Context, branch string, emit func(string, *Entry)) error) error {
	branch := db.BranchFromContext(ctx)
	var changes []change
	err := s.repo.WithBranchLock(ctx, branch, func(ctx context.Context) error {
		changes = changes[:0]
		return fn(ctx, branch, func(typ string, e *Entry) {
			changes = append(changes, change{typ: typ, entry: *e})
		})
	})
	if err != nil {
		return err
	}
	for _, c := range changes {
		s.record(ctx, branch, actor, c)
	}
	return nil
}

func (s *Service) record(ctx context.Context, branch, actor string, c change) {
	at := s.now()
	s.activity.Add(branch, Activity{
		At:          at,
		Type:        c.typ,
		EntryID:     c.entry.ID,
		QueueNumber: c.entry.QueueNumber,
		PatientName: c.entry.PatientName,
		Status:      c.entry.Status,
	})
	evt := events.QueueEvent{
		Type:        c.typ,
		BranchID:    branch,
		EntryID:     c.entry.ID.String(),
		PatientID:   c.entry.PatientID.String(),
		QueueNumber: c.entry.QueueNumber,
		Status:      c.entry.Status,
		ActorID:     actor,
		At:          at,
	}
	// The change is already committed; a client hanging up must not drop it.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, evt); err != nil {
		s.logger.Warn().Err(err).Str("type", c.typ).Str("branch_id", branch).
			Int("queue_number", c.entry.QueueNumber).Msg("publish queue event failed")
	}
}

// Enqueue appends the patient to the branch queue with the next number.
func (s *Service) Enqueue(ctx context.Context, patientID uuid.UUID, actor string) (*Entry, error) {
	var out *Entry
	err := s.transact(ctx, actor, func(ctx context.Context, branch string, emit func(string, *Entry)) error {
		if _, err := s.repo.ActiveForPatient(ctx, branch, patientID); err == nil {
			return ErrAlreadyQueued
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		waiting, err := s.repo.Waiting(ctx, branch)
		if err != nil {
			return err
		}
		n, err := s.repo.NextNumber(ctx, branch)
		if err != nil {
			return err
		}
		wait := len(waiting) * s.avgMinutes
		e := &Entry{
			BranchID:          branch,
			PatientID:         patientID,
			QueueNumber:       n,
			Status:            StatusWaiting,
			EstimatedWaitTime: &wait,
		}
		if err := s.repo.Create(ctx, e); err != nil {
			return err
		}
		emit(EventEnqueued, e)
		out = e
		return nil
	})
	return out, err
}

// CallNext serves the lowest-numbered waiting entry.
func (s *Service) CallNext(ctx context.Context, actor string) (*Entry, error) {
	var out *Entry
	err := s.transact(ctx, actor, func(ctx context.Context, branch string, emit func(string, *Entry)) error {
		waiting, err := s.repo.Waiting(ctx, branch)
		if err != nil {
			return err
		}
		if len(waiting) == 0 {
			return ErrQueueEmpty
		}
		out = waiting[0]
		return s.serve(ctx, branch, out, emit)
	})
	return out, err
}

// CallSpecific serves the given waiting entry out of order.
func (s *Service) CallSpecific(ctx context.Context, id uuid.UUID, actor string) (*Entry, error) {
	var out *Entry
	err := s.transact(ctx, actor, func(ctx context.Context, branch string, emit func(string, *Entry)) error {
		e, err := s.repo.GetByID(ctx, branch, id)
		if err != nil {
			return err
		}
		out = e
		return s.serve(ctx, branch, e, emit)
	})
	return out, err
}

// serve completes whoever is being served, then promotes target.
func (s *Service) serve(ctx context.Context, branch string, target *Entry, emit func(string, *Entry)) error {
	if target.Status != StatusWaiting {
		return ErrInvalidTransition
	}
	now := s.now()
	current, err := s.repo.Serving(ctx, branch)
	switch {
	case err == nil:
		if err := current.moveTo(StatusCompleted, now); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, current); err != nil {
			return err
		}
		emit(EventForceCompleted, current)
	case !errors.Is(err, ErrNotFound):
		return err
	}

	if err := target.moveTo(StatusServing, now); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, target); err != nil {
		return err
	}
	emit(EventCalled, target)
	return nil
}

func (s *Service) finish(ctx context.Context, id uuid.UUID, actor, status, event string, from ...string) (*Entry, error) {
	var out *Entry
	err := s.transact(ctx, actor, func(ctx context.Context, branch string, emit func(string, *Entry)) error {
		e, err := s.repo.GetByID(ctx, branch, id)
		if err != nil {
			return err
		}
		allowed := false
		for _, f := range from {
			allowed = allowed || e.Status == f
		}
		if !allowed {
			return ErrInvalidTransition
		}
		if err := e.moveTo(status, s.now()); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, e); err != nil {
			return err
		}
		emit(event, e)
		out = e
		return nil
	})
	return out, err
}

// Complete finishes the entry being served.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor string) (*Entry, error) {
	return s.finish(ctx, id, actor, StatusCompleted, EventCompleted, StatusServing)
}

// Cancel drops a waiting or serving entry.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor string) (*Entry, error) {
	return s.finish(ctx, id, actor, StatusCancelled, EventCancelled, StatusWaiting, StatusServing)
}

// RemoveFromWaiting cancels an entry that has not been called yet.
func (s *Service) RemoveFromWaiting(ctx context.Context, id uuid.UUID, actor string) (*Entry, error) {
	return s.finish(ctx, id, actor, StatusCancelled, EventRemoved, StatusWaiting)
}

// Snapshot returns the serving entry and the waiting list with live wait
// times.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	branch := db.BranchFromContext(ctx)
	now := s.now()
	snap := &Snapshot{BranchID: branch, Waiting: []*Entry{}, GeneratedAt: now}

	serving, err := s.repo.Serving(ctx, branch)
	switch {
	case err == nil:
		serving.WaitMinutes = waitMinutes(now, serving.CreatedAt)
		snap.Serving = serving
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	waiting, err := s.repo.Waiting(ctx, branch)
	if err != nil {
		return nil, err
	}
	for _, e := range waiting {
		e.WaitMinutes = waitMinutes(now, e.CreatedAt)
		snap.Waiting = append(snap.Waiting, e)
	}
	return snap, nil
}

// Position returns the patient's active entry and how many waiting entries
// are ahead of it.
func (s *Service) Position(ctx context.Context, patientID uuid.UUID) (*Entry, int, error) {
	branch := db.BranchFromContext(ctx)
	e, err := s.repo.ActiveForPatient(ctx, branch, patientID)
	if err != nil {
		return nil, 0, err
	}
	e.WaitMinutes = waitMinutes(s.now(), e.CreatedAt)
	if e.Status != StatusWaiting {
		return e, 0, nil
	}
	waiting, err := s.repo.Waiting(ctx, branch)
	if err != nil {
		return nil, 0, err
	}
	ahead := 0
	for _, w := range waiting {
		if w.QueueNumber < e.QueueNumber {
			ahead++
		}
	}
	return e, ahead, nil
}

func (s *Service) Activity(ctx context.Context) []Activity {
	return s.activity.Recent(db.BranchFromContext(ctx))
}
