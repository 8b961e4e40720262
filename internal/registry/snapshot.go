package registry

import (
	"slices"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
)

// RegistrationRecords snapshots the Registrations table in insertion order.
func (r *Registry) RegistrationRecords() []model.RegistrationRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Map(r.order, func(id string, _ int) model.RegistrationRecord {
		reg := r.registrations[id]
		_, housed := r.userRoom[reg.UserID]
		return model.RegistrationRecord{
			RegistrationID: reg.ID,
			UserID:         reg.UserID,
			Name:           reg.Name,
			Days:           reg.Days,
			ArrivalDate:    reg.ArrivalDate,
			City:           reg.City,
			Handle:         reg.Handle,
			Phone:          reg.Phone,
			BirthDate:      reg.BirthDate,
			Gender:         reg.Gender.String(),
			Accommodated:   housed,
		}
	})
}

// RoomSheet snapshots the RoomAssignments table. The store only carries
// display names.
func (r *Registry) RoomSheet() model.RoomSheet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sheet model.RoomSheet
	for i, occupants := range r.rooms {
		sheet[i] = lo.Map(occupants, func(o model.Occupant, _ int) string { return o.Name })
	}
	return sheet
}

// Counters snapshots the local counters structure.
func (r *Registry) Counters() model.Counters {
	r.mu.RLock()
	defer r.mu.RUnlock()

	checkedIn := lo.Keys(r.checkedIn)
	slices.Sort(checkedIn)
	return model.Counters{
		Opened:                 sortedIDs(r.opened),
		Registered:             sortedIDs(r.registered),
		CheckedIn:              checkedIn,
		Admins:                 sortedIDs(r.admins),
		AccommodationInitiated: sortedIDs(r.initiated),
	}
}

// RestoreCounters replaces the stat sets, admin sessions and
// accommodation-initiated set.
func (r *Registry) RestoreCounters(c model.Counters) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.opened = toSet(c.Opened)
	r.registered = toSet(c.Registered)
	r.checkedIn = toSet(c.CheckedIn)
	r.admins = toSet(c.Admins)
	r.initiated = toSet(c.AccommodationInitiated)
}

// RestoreRegistrations replaces every registration with the store's rows.
// Room occupancy is reset; call RestoreRooms afterwards. Rows with an empty
// id or a user that already owns an earlier row are skipped.
func (r *Registry) RestoreRegistrations(records []model.RegistrationRecord) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.registrations = make(map[string]*model.Registration, len(records))
	r.order = make([]string, 0, len(records))
	r.byUser = make(map[model.UserID]string, len(records))
	r.rooms = [model.RoomCount][]model.Occupant{}
	r.userRoom = make(map[model.UserID]model.RoomNumber)

	for _, rec := range records {
		if rec.RegistrationID == "" || r.registrations[rec.RegistrationID] != nil {
			r.log.Warn("skipping registration row with missing or duplicate id",
				zap.String("registration_id", rec.RegistrationID))
			continue
		}
		if _, dup := r.byUser[rec.UserID]; dup {
			r.log.Warn("skipping second registration for user",
				zap.Int64("user_id", int64(rec.UserID)),
				zap.String("registration_id", rec.RegistrationID))
			continue
		}
		r.insertLocked(&model.Registration{
			ID:          rec.RegistrationID,
			UserID:      rec.UserID,
			Name:        rec.Name,
			Days:        rec.Days,
			ArrivalDate: rec.ArrivalDate,
			City:        rec.City,
			Handle:      rec.Handle,
			Phone:       rec.Phone,
			BirthDate:   rec.BirthDate,
			Gender:      model.ParseGender(rec.Gender),
		})
		r.registered.add(rec.UserID)
	}
	return len(r.order)
}

// RestoreRooms rebuilds room occupancy from the store's name columns.
// Each name binds to the first registration with that name that is not yet
// housed and whose partition includes the room, so two participants
// sharing a name each keep one bed. Names that match nobody, or that would
// overflow a room, are returned and dropped.
func (r *Registry) RestoreRooms(sheet model.RoomSheet) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms = [model.RoomCount][]model.Occupant{}
	r.userRoom = make(map[model.UserID]model.RoomNumber)
	for _, reg := range r.registrations {
		reg.Accommodation = model.Accommodation{}
	}

	var dropped []string
	for i, names := range sheet {
		room := model.RoomNumber(i + 1)
		for _, name := range names {
			if len(r.rooms[i]) >= model.RoomCapacity {
				r.log.Warn("room over capacity in store", zap.Int("room", int(room)), zap.String("name", name))
				dropped = append(dropped, name)
				continue
			}
			reg := r.unhousedByNameLocked(name, room)
			if reg == nil {
				r.log.Warn("room occupant has no matching registration", zap.Int("room", int(room)), zap.String("name", name))
				dropped = append(dropped, name)
				continue
			}
			r.rooms[i] = append(r.rooms[i], model.Occupant{RegistrationID: reg.ID, Name: reg.Name})
			r.userRoom[reg.UserID] = room
			reg.Accommodation = model.AssignedTo(room)
		}
	}
	return dropped
}

// unhousedByNameLocked finds the first unhoused registration called name
// whose gender partition includes room.
func (r *Registry) unhousedByNameLocked(name string, room model.RoomNumber) *model.Registration {
	for _, id := range r.order {
		reg := r.registrations[id]
		if reg.Name != name || !reg.Gender.Allows(room) {
			continue
		}
		if _, housed := r.userRoom[reg.UserID]; !housed {
			return reg
		}
	}
	return nil
}

func toSet[T comparable](items []T) set[T] {
	s := make(set[T], len(items))
	for _, it := range items {
		s.add(it)
	}
	return s
}
