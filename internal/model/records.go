package model

// RegistrationRecord is one row of the Registrations table in the
// external store. The store only knows whether a participant is housed;
// the room itself lives in the RoomAssignments table.
type RegistrationRecord struct {
	RegistrationID string
	UserID         UserID
	Name           string
	Days           int
	ArrivalDate    string
	City           string
	Handle         string
	Phone          string
	BirthDate      string
	Gender         string
	Accommodated   bool
}

// RoomSheet is the RoomAssignments table: one column per room holding
// occupant display names in insertion order. Index 0 is room 1.
type RoomSheet [RoomCount][]string

// Column returns the occupant names of room r.
func (s RoomSheet) Column(r RoomNumber) []string {
	if !r.Valid() {
		return nil
	}
	return s[r-1]
}

// Rows flattens the sheet into row-major form, padding short columns with
// empty cells.
func (s RoomSheet) Rows() [][]string {
	depth := 0
	for _, col := range s {
		depth = max(depth, len(col))
	}
	rows := make([][]string, depth)
	for i := range rows {
		row := make([]string, RoomCount)
		for c, col := range s {
			if i < len(col) {
				row[c] = col[i]
			}
		}
		rows[i] = row
	}
	return rows
}

// RoomSheetFromRows rebuilds a sheet from row-major cells. Empty cells and
// columns past RoomCount are skipped.
func RoomSheetFromRows(rows [][]string) RoomSheet {
	var s RoomSheet
	for _, row := range rows {
		for c, cell := range row {
			if c >= RoomCount || cell == "" {
				continue
			}
			s[c] = append(s[c], cell)
		}
	}
	return s
}

// Counters is the wholesale-persisted local counters structure.
type Counters struct {
	Opened                 []UserID `json:"opened"`
	Registered             []UserID `json:"registered"`
	CheckedIn              []string `json:"checked_in"`
	Admins                 []UserID `json:"admins"`
	AccommodationInitiated []UserID `json:"accommodation_initiated"`
}
