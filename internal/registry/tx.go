package registry

import (
	"slices"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
)

// Tx is a view of the Registry handed to Update callbacks. It is only
// valid inside the callback and must not be retained.
//
// Tx keeps the pairwise invariant between the room lists, the user→room
// map and Registration.Accommodation: SetRoom and ClearRoom are the only
// ways to change any of the three.
type Tx struct {
	r *Registry
}

// Update runs fn with the Registry write lock held. fn must not block on
// I/O.
func (r *Registry) Update(fn func(tx *Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&Tx{r: r})
}

// Registration returns a copy of user's registration.
func (tx *Tx) Registration(user model.UserID) (model.Registration, bool) {
	id, ok := tx.r.byUser[user]
	if !ok {
		return model.Registration{}, false
	}
	return *tx.r.registrations[id], true
}

// Occupancy returns the head count of room.
func (tx *Tx) Occupancy(room model.RoomNumber) int {
	if !room.Valid() {
		return 0
	}
	return len(tx.r.rooms[room-1])
}

// RoomOf returns the room held by user.
func (tx *Tx) RoomOf(user model.UserID) (model.RoomNumber, bool) {
	room, ok := tx.r.userRoom[user]
	return room, ok
}

// SetRoom moves user into room, dropping any occupancy record the user
// held in any room first. Capacity and partition are the caller's policy.
// Reports false when user has no registration.
func (tx *Tx) SetRoom(user model.UserID, room model.RoomNumber) bool {
	id, ok := tx.r.byUser[user]
	if !ok || !room.Valid() {
		return false
	}
	reg := tx.r.registrations[id]
	tx.r.evictLocked(id)
	tx.r.rooms[room-1] = append(tx.r.rooms[room-1], model.Occupant{RegistrationID: id, Name: reg.Name})
	tx.r.userRoom[user] = room
	reg.Accommodation = model.AssignedTo(room)
	return true
}

// ClearRoom removes user from its room. Reports false when the user held
// no room.
func (tx *Tx) ClearRoom(user model.UserID) bool {
	if _, ok := tx.r.userRoom[user]; !ok {
		return false
	}
	delete(tx.r.userRoom, user)
	if id, ok := tx.r.byUser[user]; ok {
		tx.r.evictLocked(id)
		tx.r.registrations[id].Accommodation = model.Accommodation{}
	}
	return true
}

// evictLocked removes every occupancy entry for a registration across all
// rooms.
func (r *Registry) evictLocked(id string) {
	for i := range r.rooms {
		r.rooms[i] = slices.DeleteFunc(r.rooms[i], func(o model.Occupant) bool {
			return o.RegistrationID == id
		})
	}
}

// Occupants returns a copy of room's ordered occupant list.
func (r *Registry) Occupants(room model.RoomNumber) []model.Occupant {
	if !room.Valid() {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.rooms[room-1])
}
