package intake

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/registry"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/syncer"
)

// Persister schedules background saves.
type Persister interface {
	Schedule(targets syncer.Target)
}

// Announcer publishes a committed registration.
type Announcer interface {
	AnnounceRegistration(ctx context.Context, reg model.Registration) error
}

// Operator receives failures that need human attention.
type Operator interface {
	Alert(ctx context.Context, message string)
}

// Machine is one user's conversation. Its mutex serialises that user's
// steps.
type Machine struct {
	mu      sync.Mutex
	state   State
	scratch Scratch
}

// Result is what the caller needs to render the reply.
type Result struct {
	// State is the state after the step; its question is the next prompt.
	State   State
	Outcome Outcome
	// Registration is set when the step committed.
	Registration *model.Registration
}

// Engine routes events to per-user machines and commits finished
// conversations.
type Engine struct {
	mu       sync.Mutex
	machines map[model.UserID]*Machine

	reg       *registry.Registry
	sync      Persister
	announcer Announcer
	operator  Operator
	log       *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(reg *registry.Registry, sync Persister, announcer Announcer, operator Operator, log *zap.Logger) *Engine {
	return &Engine{
		machines:  make(map[model.UserID]*Machine),
		reg:       reg,
		sync:      sync,
		announcer: announcer,
		operator:  operator,
		log:       log,
	}
}

// machine returns user's machine, creating it on first use. Machines are
// kept for the life of the process so a pointer obtained here never goes
// stale.
func (e *Engine) machine(user model.UserID) *Machine {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.machines[user]
	if !ok {
		m = &Machine{}
		e.machines[user] = m
	}
	return m
}

// State returns user's current intake state.
func (e *Engine) State(user model.UserID) State {
	m := e.machine(user)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Active reports whether user is in the middle of intake.
func (e *Engine) Active(user model.UserID) bool {
	return e.State(user) != Idle
}

// Handle feeds one event to user's machine. Registered users cannot begin
// a new conversation.
func (e *Engine) Handle(ctx context.Context, user model.UserID, ev Event) (Result, error) {
	m := e.machine(user)
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.Kind == EventBegin && e.reg.IsRegistered(user) {
		return Result{State: m.state}, model.ErrAlreadyRegistered
	}

	from := m.state
	next, out := Step(m.state, &m.scratch, ev)
	m.state = next

	e.log.Debug("intake step",
		zap.Int64("user_id", int64(user)),
		zap.Stringer("from", from),
		zap.Stringer("to", next),
		zap.Bool("rejected", out.Err != nil),
	)

	if !out.Commit {
		return Result{State: next, Outcome: out}, nil
	}

	input := m.scratch.RegistrationInput
	m.scratch = Scratch{}
	created, err := e.commit(ctx, user, input)
	if err != nil {
		return Result{State: Idle, Outcome: out}, err
	}
	return Result{State: Idle, Outcome: out, Registration: &created}, nil
}

// commit inserts the registration, queues persistence and announces it.
// Nothing after the registry insert can undo it.
func (e *Engine) commit(ctx context.Context, user model.UserID, input model.RegistrationInput) (model.Registration, error) {
	created, err := e.reg.Register(user, input)
	if err != nil {
		return model.Registration{}, fmt.Errorf("commit intake for user %d: %w", user, err)
	}

	e.sync.Schedule(syncer.TargetRegistrations | syncer.TargetCounters)

	if err := e.announcer.AnnounceRegistration(ctx, created); err != nil {
		e.log.Error("registration announcement failed",
			zap.String("registration_id", created.ID),
			zap.Error(err),
		)
		e.operator.Alert(ctx, fmt.Sprintf("announcement for registration %s failed: %v", created.ID, err))
	}
	return created, nil
}
