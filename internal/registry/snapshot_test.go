package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
)

func TestRegistry_SnapshotRoundTripThroughRestore(t *testing.T) {
	req := require.New(t)
	src := New(zap.NewNop(), sequentialIDs())
	_, err := src.Register(1, input("John Smith", model.GenderMale))
	req.NoError(err)
	_, err = src.Register(2, input("Jane Smith", model.GenderFemale))
	req.NoError(err)
	src.MarkOpened(1)
	src.MarkOpened(2)
	src.MarkOpened(3)
	req.NoError(src.Update(func(tx *Tx) error {
		tx.SetRoom(2, 7)
		return nil
	}))

	records := src.RegistrationRecords()
	req.Len(records, 2)
	req.False(records[0].Accommodated)
	req.True(records[1].Accommodated)
	req.Equal("Female", records[1].Gender)

	dst := New(zap.NewNop())
	dst.RestoreCounters(src.Counters())
	req.Equal(2, dst.RestoreRegistrations(records))
	req.Empty(dst.RestoreRooms(src.RoomSheet()))

	reg, ok := dst.ByUser(2)
	req.True(ok)
	req.Equal(model.AssignedTo(7), reg.Accommodation)
	room, ok := dst.RoomOf(2)
	req.True(ok)
	req.Equal(model.RoomNumber(7), room)
	req.Equal(src.Stats(), dst.Stats())
	req.Equal(model.GenderFemale, reg.Gender)
}

func TestRegistry_RestoreRooms_DuplicateNamesGetOneBedEach(t *testing.T) {
	r := New(zap.NewNop())
	r.RestoreRegistrations([]model.RegistrationRecord{
		{RegistrationID: "a", UserID: 1, Name: "Ivan Ivanov", Gender: "Male"},
		{RegistrationID: "b", UserID: 2, Name: "Ivan Ivanov", Gender: "Male"},
	})

	var sheet model.RoomSheet
	sheet[0] = []string{"Ivan Ivanov"}
	sheet[1] = []string{"Ivan Ivanov", "Ghost Person"}

	dropped := r.RestoreRooms(sheet)

	assert.Equal(t, []string{"Ghost Person"}, dropped)
	room1, _ := r.RoomOf(1)
	room2, _ := r.RoomOf(2)
	assert.Equal(t, model.RoomNumber(1), room1)
	assert.Equal(t, model.RoomNumber(2), room2)
}

func TestRegistry_RestoreRooms_DropsOverflow(t *testing.T) {
	r := New(zap.NewNop())
	var records []model.RegistrationRecord
	var sheet model.RoomSheet
	for i := 0; i < model.RoomCapacity+1; i++ {
		name := "Person Number" + string(rune('A'+i))
		records = append(records, model.RegistrationRecord{
			RegistrationID: name, UserID: model.UserID(i + 1), Name: name, Gender: "Male",
		})
		sheet[0] = append(sheet[0], name)
	}
	r.RestoreRegistrations(records)

	dropped := r.RestoreRooms(sheet)

	assert.Len(t, dropped, 1)
	assert.Len(t, r.Occupants(1), model.RoomCapacity)
}

func TestRegistry_RestoreRooms_KeepsGenderPartition(t *testing.T) {
	r := New(zap.NewNop())
	r.RestoreRegistrations([]model.RegistrationRecord{
		{RegistrationID: "a", UserID: 1, Name: "John Smith", Gender: "Male"},
		{RegistrationID: "b", UserID: 2, Name: "Alex Kim", Gender: "Male"},
		{RegistrationID: "c", UserID: 3, Name: "Alex Kim", Gender: "Female"},
	})

	var sheet model.RoomSheet
	sheet[6] = []string{"John Smith", "Alex Kim"}

	dropped := r.RestoreRooms(sheet)

	assert.Equal(t, []string{"John Smith"}, dropped)
	_, housed := r.RoomOf(1)
	assert.False(t, housed)
	_, housed = r.RoomOf(2)
	assert.False(t, housed)
	room, housed := r.RoomOf(3)
	assert.True(t, housed)
	assert.Equal(t, model.RoomNumber(7), room)
	reg, _ := r.ByUser(1)
	assert.False(t, reg.Accommodation.Assigned())
}

func TestRegistry_RestoreRegistrations_SkipsDuplicates(t *testing.T) {
	r := New(zap.NewNop())
	n := r.RestoreRegistrations([]model.RegistrationRecord{
		{RegistrationID: "a", UserID: 1, Name: "A A"},
		{RegistrationID: "a", UserID: 2, Name: "B B"},
		{RegistrationID: "c", UserID: 1, Name: "C C"},
		{RegistrationID: "", UserID: 3, Name: "D D"},
	})
	assert.Equal(t, 1, n)
}
