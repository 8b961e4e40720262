// Package allocator assigns and releases lodging under the room capacity
// and gender partition rules.
package allocator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/registry"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/syncer"
)

// Persister schedules a save of the given targets. syncer.Syncer
// satisfies it.
type Persister interface {
	Schedule(targets syncer.Target)
}

// Allocator owns the room policy. All checks and the resulting mutation
// happen inside one registry transaction, so two users racing for the last
// bed cannot both get it.
type Allocator struct {
	reg  *registry.Registry
	sync Persister
	log  *zap.Logger
}

// New constructs an Allocator.
func New(reg *registry.Registry, sync Persister, log *zap.Logger) *Allocator {
	return &Allocator{reg: reg, sync: sync, log: log}
}

// ListAvailableRooms returns the rooms of user's partition that still have
// a free bed.
func (a *Allocator) ListAvailableRooms(user model.UserID) ([]model.RoomAvailability, error) {
	var rooms []model.RoomAvailability
	err := a.reg.Update(func(tx *registry.Tx) error {
		reg, ok := tx.Registration(user)
		if !ok {
			return model.ErrNotRegistered
		}
		if reg.Gender == model.GenderUnset {
			return model.ErrGenderUnset
		}
		for _, room := range reg.Gender.Rooms() {
			if n := tx.Occupancy(room); n < model.RoomCapacity {
				rooms = append(rooms, model.RoomAvailability{Room: room, Occupied: n})
			}
		}
		if len(rooms) == 0 {
			return model.ErrAllRoomsFull
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list rooms for user %d: %w", user, err)
	}
	return rooms, nil
}

// Assign moves user into room. Any earlier occupancy record of the user is
// dropped first, so re-assigning is safe.
func (a *Allocator) Assign(_ context.Context, user model.UserID, room model.RoomNumber) (model.Registration, error) {
	var assigned model.Registration
	err := a.reg.Update(func(tx *registry.Tx) error {
		if !room.Valid() {
			return model.ErrInvalidRoom
		}
		reg, ok := tx.Registration(user)
		if !ok {
			return model.ErrNotRegistered
		}
		if reg.Gender == model.GenderUnset {
			return model.ErrGenderUnset
		}
		if !reg.Gender.Allows(room) {
			return model.ErrWrongPartition
		}
		current, housed := tx.RoomOf(user)
		if !(housed && current == room) && tx.Occupancy(room) >= model.RoomCapacity {
			return model.ErrRoomFull
		}
		tx.SetRoom(user, room)
		assigned, _ = tx.Registration(user)
		return nil
	})
	if err != nil {
		return model.Registration{}, fmt.Errorf("assign user %d to room %d: %w", user, room, err)
	}

	a.log.Info("room assigned",
		zap.Int64("user_id", int64(user)),
		zap.Int("room", int(room)),
	)
	a.sync.Schedule(syncer.TargetRooms | syncer.TargetRegistrations)
	return assigned, nil
}

// Release frees user's bed.
func (a *Allocator) Release(_ context.Context, user model.UserID) error {
	var room model.RoomNumber
	err := a.reg.Update(func(tx *registry.Tx) error {
		current, ok := tx.RoomOf(user)
		if !ok {
			return model.ErrNotAssigned
		}
		room = current
		tx.ClearRoom(user)
		return nil
	})
	if err != nil {
		return fmt.Errorf("release user %d: %w", user, err)
	}

	a.log.Info("room released",
		zap.Int64("user_id", int64(user)),
		zap.Int("room", int(room)),
	)
	a.sync.Schedule(syncer.TargetRooms | syncer.TargetRegistrations | syncer.TargetCounters)
	return nil
}
