// Package model defines the core domain types for the gathering registration bot.
package model

import (
	"fmt"
	"strconv"
)

// UserID is the chat platform identity of a participant or admin.
type UserID int64

// String renders the id the way it is stored in the external store.
func (u UserID) String() string {
	return strconv.FormatInt(int64(u), 10)
}

// RoomNumber identifies one of the fixed lodging slots, 1..RoomCount.
type RoomNumber int

const (
	// RoomCount is the number of lodging slots.
	RoomCount = 10
	// RoomCapacity is the maximum occupancy of a single room.
	RoomCapacity = 15
	// MaleRoomsEnd is the last room of the Male partition; the rest are Female.
	MaleRoomsEnd RoomNumber = 5
)

// Valid reports whether r is one of the fixed rooms.
func (r RoomNumber) Valid() bool {
	return r >= 1 && r <= RoomCount
}

// Gender is the partition key used by the allocator.
type Gender int

const (
	GenderUnset Gender = iota
	GenderMale
	GenderFemale
)

func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "Male"
	case GenderFemale:
		return "Female"
	default:
		return "Unset"
	}
}

// ParseGender maps a stored or submitted label back to a Gender.
// Unknown labels yield GenderUnset.
func ParseGender(s string) Gender {
	switch s {
	case "Male", "male":
		return GenderMale
	case "Female", "female":
		return GenderFemale
	default:
		return GenderUnset
	}
}

// Rooms returns the room range reserved for g. Unset has no rooms.
func (g Gender) Rooms() []RoomNumber {
	var first, last RoomNumber
	switch g {
	case GenderMale:
		first, last = 1, MaleRoomsEnd
	case GenderFemale:
		first, last = MaleRoomsEnd+1, RoomCount
	default:
		return nil
	}
	rooms := make([]RoomNumber, 0, last-first+1)
	for r := first; r <= last; r++ {
		rooms = append(rooms, r)
	}
	return rooms
}

// Allows reports whether room r belongs to g's partition.
func (g Gender) Allows(r RoomNumber) bool {
	switch g {
	case GenderMale:
		return r >= 1 && r <= MaleRoomsEnd
	case GenderFemale:
		return r > MaleRoomsEnd && r <= RoomCount
	default:
		return false
	}
}

// Accommodation is the lodging status of a registration. The zero value
// means no room is assigned.
type Accommodation struct {
	Room RoomNumber
}

// Assigned reports whether a room is held.
func (a Accommodation) Assigned() bool {
	return a.Room != 0
}

func (a Accommodation) String() string {
	if !a.Assigned() {
		return "None"
	}
	return fmt.Sprintf("Assigned(%d)", a.Room)
}

// AssignedTo builds an Accommodation for room r.
func AssignedTo(r RoomNumber) Accommodation {
	return Accommodation{Room: r}
}

// ArrivalDates are the only accepted arrival days.
var ArrivalDates = []string{"03.07.2025", "04.07.2025", "05.07.2025", "06.07.2025"}

// StayLengths are the accepted stay durations in days.
var StayLengths = []int{1, 2, 3, 4}

// Registration is one completed intake.
type Registration struct {
	ID            string        `json:"id"`
	UserID        UserID        `json:"user_id"`
	Name          string        `json:"name"`
	Days          int           `json:"days"`
	ArrivalDate   string        `json:"arrival_date"`
	City          string        `json:"city"`
	Handle        string        `json:"handle"`
	Phone         string        `json:"phone"`
	BirthDate     string        `json:"birth_date"`
	Gender        Gender        `json:"gender"`
	Accommodation Accommodation `json:"accommodation"`
}

// RegistrationInput is the data collected by the intake flow.
type RegistrationInput struct {
	Name        string `validate:"required,fullname"`
	Days        int    `validate:"min=1,max=4"`
	ArrivalDate string `validate:"arrival"`
	City        string `validate:"min=2"`
	Handle      string
	Phone       string `validate:"phone"`
	BirthDate   string `validate:"birthdate"`
	Gender      Gender `validate:"gender"`
}

// Occupant is one entry of a room's ordered occupant list.
type Occupant struct {
	RegistrationID string
	Name           string
}

// RoomAvailability is a room offered to a participant together with its
// current head count.
type RoomAvailability struct {
	Room     RoomNumber
	Occupied int
}

// Free returns the remaining beds.
func (a RoomAvailability) Free() int {
	return RoomCapacity - a.Occupied
}

// Stats summarises the counters shown to admins.
type Stats struct {
	Opened       int
	Registered   int
	CheckedIn    int
	Accommodated int
}
