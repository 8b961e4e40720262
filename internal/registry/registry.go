// Package registry holds the authoritative in-memory state of the bot:
// registrations, the user index, room occupancy and the stat sets.
//
// Every mutation goes through the Registry's mutex. Callers never hold the
// lock while doing I/O; they mutate, release, and then hand snapshots to
// the sync layer.
package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
)

type set[T comparable] map[T]struct{}

func (s set[T]) add(v T) bool {
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = struct{}{}
	return true
}

func (s set[T]) has(v T) bool {
	_, ok := s[v]
	return ok
}

// Registry is the single writable source of truth.
type Registry struct {
	mu sync.RWMutex

	registrations map[string]*model.Registration
	order         []string // registration ids in insertion order
	byUser        map[model.UserID]string

	rooms    [model.RoomCount][]model.Occupant
	userRoom map[model.UserID]model.RoomNumber

	opened     set[model.UserID]
	registered set[model.UserID]
	checkedIn  set[string]
	admins     set[model.UserID]
	initiated  set[model.UserID]

	newID func() string
	log   *zap.Logger
}

// Option customises a Registry.
type Option func(*Registry)

// WithIDGenerator replaces the UUID generator, mainly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

// New constructs an empty Registry.
func New(log *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		registrations: make(map[string]*model.Registration),
		byUser:        make(map[model.UserID]string),
		userRoom:      make(map[model.UserID]model.RoomNumber),
		opened:        make(set[model.UserID]),
		registered:    make(set[model.UserID]),
		checkedIn:     make(set[string]),
		admins:        make(set[model.UserID]),
		initiated:     make(set[model.UserID]),
		newID:         uuid.NewString,
		log:           log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register commits a finished intake. The returned registration carries a
// freshly generated id. A user can hold only one registration.
func (r *Registry) Register(user model.UserID, in model.RegistrationInput) (model.Registration, error) {
	if err := in.Validate(); err != nil {
		return model.Registration{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUser[user]; ok {
		return model.Registration{}, model.ErrAlreadyRegistered
	}

	id := r.newID()
	for r.registrations[id] != nil {
		id = r.newID()
	}

	reg := &model.Registration{
		ID:          id,
		UserID:      user,
		Name:        in.Name,
		Days:        in.Days,
		ArrivalDate: in.ArrivalDate,
		City:        in.City,
		Handle:      in.Handle,
		Phone:       in.Phone,
		BirthDate:   in.BirthDate,
		Gender:      in.Gender,
	}
	r.insertLocked(reg)
	r.registered.add(user)

	r.log.Info("registration committed",
		zap.String("registration_id", id),
		zap.Int64("user_id", int64(user)),
	)
	return *reg, nil
}

func (r *Registry) insertLocked(reg *model.Registration) {
	r.registrations[reg.ID] = reg
	r.order = append(r.order, reg.ID)
	r.byUser[reg.UserID] = reg.ID
}

// ByUser returns the registration owned by user.
func (r *Registry) ByUser(user model.UserID) (model.Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUser[user]
	if !ok {
		return model.Registration{}, false
	}
	return *r.registrations[id], true
}

// IsRegistered reports whether user has completed intake.
func (r *Registry) IsRegistered(user model.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[user]
	return ok
}

// Lookup returns the registration with the given id or ErrNotRegistered.
func (r *Registry) Lookup(id string) (model.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.registrations[id]
	if !ok {
		return model.Registration{}, fmt.Errorf("lookup %q: %w", id, model.ErrNotRegistered)
	}
	return *reg, nil
}

// RoomOf returns the room held by user, if any.
func (r *Registry) RoomOf(user model.UserID) (model.RoomNumber, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.userRoom[user]
	return room, ok
}

// MarkOpened records that user has started the bot. Reports whether the
// user was seen for the first time.
func (r *Registry) MarkOpened(user model.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened.add(user)
}

// CheckIn marks a registration as arrived. Reports whether this is the
// first check-in for that id.
func (r *Registry) CheckIn(id string) (model.Registration, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.registrations[id]
	if !ok {
		return model.Registration{}, false, fmt.Errorf("check in %q: %w", id, model.ErrNotRegistered)
	}
	return *reg, r.checkedIn.add(id), nil
}

// Stats returns the current counter cardinalities.
func (r *Registry) Stats() model.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return model.Stats{
		Opened:       len(r.opened),
		Registered:   len(r.registered),
		CheckedIn:    len(r.checkedIn),
		Accommodated: len(r.userRoom),
	}
}

// Opened lists every identity that has ever started the bot.
func (r *Registry) Opened() []model.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedIDs(r.opened)
}

// RegisteredUsers lists the owners of all current registrations.
func (r *Registry) RegisteredUsers() []model.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.order, func(id string, _ int) model.UserID {
		return r.registrations[id].UserID
	})
}

// AddAdmin grants an admin session.
func (r *Registry) AddAdmin(user model.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admins.add(user)
}

// RemoveAdmin ends an admin session. Reports whether one existed.
func (r *Registry) RemoveAdmin(user model.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.admins.has(user) {
		return false
	}
	delete(r.admins, user)
	return true
}

// IsAdmin reports whether user holds an admin session.
func (r *Registry) IsAdmin(user model.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admins.has(user)
}

// InitiateAccommodation marks every registered user as offered lodging and
// returns them in registration order.
func (r *Registry) InitiateAccommodation() []model.UserID {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]model.UserID, 0, len(r.order))
	for _, id := range r.order {
		user := r.registrations[id].UserID
		r.initiated.add(user)
		users = append(users, user)
	}
	return users
}

// AccommodationInitiated reports whether user has been offered lodging.
func (r *Registry) AccommodationInitiated(user model.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initiated.has(user)
}

// ClearAll drops every registration, all room occupancy, the
// accommodation-initiated set and the registered/checked-in stats. The
// opened set and admin sessions survive.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cleared := len(r.registrations)
	r.registrations = make(map[string]*model.Registration)
	r.order = nil
	r.byUser = make(map[model.UserID]string)
	r.rooms = [model.RoomCount][]model.Occupant{}
	r.userRoom = make(map[model.UserID]model.RoomNumber)
	r.registered = make(set[model.UserID])
	r.checkedIn = make(set[string])
	r.initiated = make(set[model.UserID])

	r.log.Warn("registry cleared", zap.Int("registrations", cleared))
}

func sortedIDs(s set[model.UserID]) []model.UserID {
	ids := lo.Keys(s)
	slices.Sort(ids)
	return ids
}
