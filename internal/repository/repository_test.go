package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
)

func TestRegistrationRows_KeepOrderAndColumns(t *testing.T) {
	rows := registrationRows([]model.RegistrationRecord{
		{RegistrationID: "a", UserID: 5, Name: "First Person", Gender: "Male", Accommodated: true},
		{RegistrationID: "b", UserID: 6, Name: "Second Person", Gender: "Female"},
	})

	assert.Len(t, rows, 2)
	for _, row := range rows {
		assert.Len(t, row, len(registrationColumns))
	}
	assert.Equal(t, 0, rows[0][0])
	assert.Equal(t, "a", rows[0][1])
	assert.Equal(t, int64(5), rows[0][2])
	assert.Equal(t, true, rows[0][11])
	assert.Equal(t, 1, rows[1][0])
}

func TestRoomRows(t *testing.T) {
	var sheet model.RoomSheet
	sheet[0] = []string{"Ann One", "Bea Two"}
	sheet[9] = []string{"Cid Three"}

	rows := roomRows(sheet)

	assert.Equal(t, [][]any{
		{1, 0, "Ann One"},
		{1, 1, "Bea Two"},
		{10, 0, "Cid Three"},
	}, rows)
}

func TestRoomRows_Empty(t *testing.T) {
	assert.Empty(t, roomRows(model.RoomSheet{}))
}
