package heartbeat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"transmute/internal/config"
	"transmute/internal/logging"
)

// Event is a progress signal from a supervised operation.
type Event struct {
	Token  string
	At     time.Time
	Detail string
}

type operation struct {
	token    string
	name     string
	started  time.Time
	lastBeat time.Time
	detail   string
	warned   bool
	killed   bool
	kill     func()
}

// Supervisor watches long-running external operations for progress. An
// operation that stays silent past the warn window is logged; one that stays
// silent past the kill ceiling has its kill callback invoked and is reported
// as stuck. Progress flows in as events over a channel, never via shared
// mutation from the operation side.
type Supervisor struct {
	logger      *slog.Logger
	interval    time.Duration
	warnAfter   time.Duration
	killCeiling time.Duration
	events      chan Event

	mu  sync.Mutex
	ops map[string]*operation
}

// New constructs a supervisor from the heartbeat config section.
func New(logger *slog.Logger, cfg config.Heartbeat) *Supervisor {
	return &Supervisor{
		logger:      logging.NewComponentLogger(logger, "heartbeat"),
		interval:    time.Duration(cfg.Interval) * time.Second,
		warnAfter:   time.Duration(cfg.WarnAfter) * time.Second,
		killCeiling: time.Duration(cfg.KillCeiling) * time.Second,
		events:      make(chan Event, 256),
		ops:         map[string]*operation{},
	}
}

// Run consumes progress events and checks silence windows until the context
// is cancelled. Callers run it in its own goroutine.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.events:
			s.recordBeat(event)
		case now := <-ticker.C:
			s.inspect(now)
		}
	}
}

// Ticket identifies one supervised operation.
type Ticket struct {
	supervisor *Supervisor
	token      string
}

// Register adds an operation to the registry. The kill callback fires at most
// once, after the operation has been silent past the kill ceiling.
func (s *Supervisor) Register(name string, kill func()) *Ticket {
	token := uuid.NewString()
	now := time.Now()
	s.mu.Lock()
	s.ops[token] = &operation{
		token:    token,
		name:     name,
		started:  now,
		lastBeat: now,
		kill:     kill,
	}
	s.mu.Unlock()
	s.logger.Debug("operation registered",
		logging.String(logging.FieldOperation, token),
		logging.String("name", name))
	return &Ticket{supervisor: s, token: token}
}

// Beat reports progress for the ticket's operation. It never blocks; under
// backpressure the beat is dropped and the next one covers for it.
func (t *Ticket) Beat(detail string) {
	if t == nil {
		return
	}
	select {
	case t.supervisor.events <- Event{Token: t.token, At: time.Now(), Detail: detail}:
	default:
	}
}

// Close removes the operation from the registry.
func (t *Ticket) Close() {
	if t == nil {
		return
	}
	t.supervisor.mu.Lock()
	delete(t.supervisor.ops, t.token)
	t.supervisor.mu.Unlock()
}

// Killed reports whether the supervisor killed the operation for silence.
func (t *Ticket) Killed() bool {
	if t == nil {
		return false
	}
	t.supervisor.mu.Lock()
	defer t.supervisor.mu.Unlock()
	op, ok := t.supervisor.ops[t.token]
	return ok && op.killed
}

func (s *Supervisor) recordBeat(event Event) {
	s.mu.Lock()
	op, ok := s.ops[event.Token]
	if ok {
		op.lastBeat = event.At
		op.detail = event.Detail
		op.warned = false
	}
	s.mu.Unlock()
}

func (s *Supervisor) inspect(now time.Time) {
	type verdict struct {
		op   *operation
		kill bool
	}
	var verdicts []verdict

	s.mu.Lock()
	for _, op := range s.ops {
		if op.killed {
			continue
		}
		silence := now.Sub(op.lastBeat)
		switch {
		case silence >= s.killCeiling:
			op.killed = true
			verdicts = append(verdicts, verdict{op: op, kill: true})
		case silence >= s.warnAfter && !op.warned:
			op.warned = true
			verdicts = append(verdicts, verdict{op: op})
		}
	}
	s.mu.Unlock()

	for _, v := range verdicts {
		attrs := logging.Args(
			logging.String(logging.FieldOperation, v.op.token),
			logging.String("name", v.op.name),
			logging.Duration("silence", now.Sub(v.op.lastBeat)),
			logging.String("last_detail", v.op.detail),
		)
		if v.kill {
			s.logger.Error("operation stuck, killing", attrs...)
			if v.op.kill != nil {
				v.op.kill()
			}
			continue
		}
		s.logger.Warn("operation silent past warn window", attrs...)
	}
}

// Snapshot returns the names and silence durations of live operations, for
// diagnostics output.
func (s *Supervisor) Snapshot() map[string]time.Duration {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Duration, len(s.ops))
	for _, op := range s.ops {
		out[op.name] = now.Sub(op.lastBeat)
	}
	return out
}
