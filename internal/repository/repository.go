// Package repository implements the external store on PostgreSQL.
// It uses pgx directly (no ORM) and mirrors the two store tables:
// registrations and room_assignments.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
)

var registrationColumns = []string{
	"position", "registration_id", "user_id", "name", "days", "arrival_date",
	"city", "handle", "phone", "birth_date", "gender", "accommodated",
}

var roomColumns = []string{"room", "position", "occupant_name"}

// Store reads and rewrites whole tables. Every write replaces the table
// contents inside one transaction so readers never see a half-written
// table.
type Store struct {
	db *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// ReadRegistrations returns all rows in the order they were written.
func (s *Store) ReadRegistrations(ctx context.Context) ([]model.RegistrationRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT registration_id, user_id, name, days, arrival_date, city,
		        handle, phone, birth_date, gender, accommodated
		 FROM registrations
		 ORDER BY position ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var records []model.RegistrationRecord
	for rows.Next() {
		var r model.RegistrationRecord
		if err := rows.Scan(
			&r.RegistrationID, &r.UserID, &r.Name, &r.Days, &r.ArrivalDate, &r.City,
			&r.Handle, &r.Phone, &r.BirthDate, &r.Gender, &r.Accommodated,
		); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// WriteRegistrations replaces the registrations table.
func (s *Store) WriteRegistrations(ctx context.Context, records []model.RegistrationRecord) error {
	return s.replace(ctx, "registrations", registrationColumns, registrationRows(records))
}

// ReadRooms returns the room columns, each in insertion order.
func (s *Store) ReadRooms(ctx context.Context) (model.RoomSheet, error) {
	var sheet model.RoomSheet
	rows, err := s.db.Query(ctx,
		`SELECT room, occupant_name
		 FROM room_assignments
		 ORDER BY room ASC, position ASC`,
	)
	if err != nil {
		return sheet, fmt.Errorf("list room assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			room int
			name string
		)
		if err := rows.Scan(&room, &name); err != nil {
			return sheet, fmt.Errorf("scan room assignment: %w", err)
		}
		if !model.RoomNumber(room).Valid() || name == "" {
			continue
		}
		sheet[room-1] = append(sheet[room-1], name)
	}
	return sheet, rows.Err()
}

// WriteRooms replaces the room_assignments table.
func (s *Store) WriteRooms(ctx context.Context, sheet model.RoomSheet) error {
	return s.replace(ctx, "room_assignments", roomColumns, roomRows(sheet))
}

// replace clears table and bulk-loads rows in one transaction.
func (s *Store) replace(ctx context.Context, table string, columns []string, rows [][]any) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if len(rows) > 0 {
		if _, err = tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy %s: %w", table, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", table, err)
	}
	return nil
}

func registrationRows(records []model.RegistrationRecord) [][]any {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{
			i, r.RegistrationID, int64(r.UserID), r.Name, r.Days, r.ArrivalDate,
			r.City, r.Handle, r.Phone, r.BirthDate, r.Gender, r.Accommodated,
		}
	}
	return rows
}

func roomRows(sheet model.RoomSheet) [][]any {
	var rows [][]any
	for c, col := range sheet {
		for pos, name := range col {
			rows = append(rows, []any{c + 1, pos, name})
		}
	}
	return rows
}
