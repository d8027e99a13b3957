// Package storage syncs the normalized appointment dataset into a sqlite
// database for downstream consumers (the API server, booking, stats).
package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/apptscope/apptscope/pkg/dataset"
)

// ErrSlotUnavailable is returned when a booking targets a slot that is not
// currently listed (already booked, errored, or unknown).
var ErrSlotUnavailable = errors.New("slot is not available for booking")

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS clinicians (
  clinician_id    TEXT PRIMARY KEY,
  name            TEXT NOT NULL,
  clean_name      TEXT,
  searchable_name TEXT,
  status          TEXT,
  synced_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS slots (
  id            INTEGER PRIMARY KEY,
  clinician_id  TEXT NOT NULL,
  href          TEXT NOT NULL,
  time          TEXT NOT NULL,
  date          TEXT NOT NULL,
  short_date    TEXT,
  iso_date      TEXT,
  location_id   TEXT,
  location      TEXT,
  status        TEXT NOT NULL DEFAULT 'listed' CHECK (status IN ('listed','booked','error')),
  first_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  last_seen_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(clinician_id, href)
);
CREATE INDEX IF NOT EXISTS idx_slots_clinician ON slots(clinician_id);
CREATE INDEX IF NOT EXISTS idx_slots_status ON slots(status);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SyncDataset mirrors the checkpoint into sqlite. The rules keep the store
// authoritative for anything the scraper cannot know:
//   - clinicians in error state are skipped entirely; their rows stay as the
//     last good sync left them
//   - a stored slot whose href reappears is kept as-is (a booked or errored
//     row must not be flattened back to what the portal lists)
//   - stored slots whose href vanished from the scrape are deleted, except
//     rows in error state, which are kept for operator follow-up
//   - unseen hrefs are inserted, with placeholder text for fields the
//     extractor could not fill
func (d *DB) SyncDataset(ctx context.Context, ds dataset.Dataset) (SyncResult, error) {
	var res SyncResult

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return res, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, id := range ds.IDs() {
		rec := ds[id]
		if rec == nil || rec.Status == dataset.StatusError {
			res.Skipped++
			continue
		}

		_, err = tx.ExecContext(ctx, `
INSERT INTO clinicians(clinician_id, name, clean_name, searchable_name, status, synced_at)
VALUES(?,?,?,?,?,CURRENT_TIMESTAMP)
ON CONFLICT(clinician_id) DO UPDATE SET
  name = excluded.name,
  clean_name = excluded.clean_name,
  searchable_name = excluded.searchable_name,
  status = excluded.status,
  synced_at = CURRENT_TIMESTAMP`,
			id, rec.Name, nullIfEmpty(rec.CleanName), nullIfEmpty(rec.SearchableName), nullIfEmpty(rec.Status))
		if err != nil {
			return res, err
		}
		res.Clinicians++

		rows, qerr := tx.QueryContext(ctx, "SELECT href, status FROM slots WHERE clinician_id = ?", id)
		if qerr != nil {
			err = qerr
			return res, err
		}
		existing := make(map[string]string)
		for rows.Next() {
			var href, status string
			if err = rows.Scan(&href, &status); err != nil {
				rows.Close()
				return res, err
			}
			existing[href] = status
		}
		if err = rows.Close(); err != nil {
			return res, err
		}

		seen := make(map[string]bool, len(rec.Slots))
		for _, slot := range rec.Slots {
			if slot == nil || slot.Href == "" {
				continue
			}
			seen[slot.Href] = true
			if _, ok := existing[slot.Href]; ok {
				_, err = tx.ExecContext(ctx,
					`UPDATE slots SET last_seen_at = CURRENT_TIMESTAMP WHERE clinician_id = ? AND href = ?`,
					id, slot.Href)
				if err != nil {
					return res, err
				}
				res.Kept++
				continue
			}
			status := slot.Status
			if status == "" {
				status = dataset.SlotListed
			}
			_, err = tx.ExecContext(ctx, `
INSERT INTO slots(clinician_id, href, time, date, short_date, iso_date, location_id, location, status)
VALUES(?,?,?,?,?,?,?,?,?)`,
				id, slot.Href,
				orPlaceholder(slot.Time, "Unknown Time"),
				orPlaceholder(slot.Date, "Unknown Date"),
				nullIfEmpty(slot.ShortDate), nullIfEmpty(slot.IsoDate),
				nullIfEmpty(slot.LocationID), nullIfEmpty(slot.Location),
				status)
			if err != nil {
				return res, err
			}
			res.Inserted++
		}

		for href, status := range existing {
			if seen[href] || status == dataset.SlotError {
				continue
			}
			_, err = tx.ExecContext(ctx, `DELETE FROM slots WHERE clinician_id = ? AND href = ?`, id, href)
			if err != nil {
				return res, err
			}
			res.Deleted++
		}
	}

	if err = tx.Commit(); err != nil {
		return res, err
	}
	return res, nil
}

// ListClinicians returns stored clinicians, optionally filtered by a
// case-insensitive substring match against the searchable name.
func (d *DB) ListClinicians(ctx context.Context, search string) ([]ClinicianRow, error) {
	q := `
SELECT c.clinician_id, c.name, c.clean_name, c.searchable_name, c.status,
       (SELECT COUNT(*) FROM slots s WHERE s.clinician_id = c.clinician_id) AS slot_count
FROM clinicians c`
	args := []interface{}{}
	if search != "" {
		q += " WHERE c.searchable_name LIKE ?"
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	q += " ORDER BY c.name"

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClinicianRow
	for rows.Next() {
		var c ClinicianRow
		var clean, searchable, status sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &clean, &searchable, &status, &c.SlotCount); err != nil {
			return nil, err
		}
		c.CleanName = clean.String
		c.SearchableName = searchable.String
		c.Status = status.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSlots returns one clinician's stored slots ordered by date and time.
func (d *DB) ListSlots(ctx context.Context, clinicianID string) ([]SlotRow, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT clinician_id, href, time, date, short_date, iso_date, location_id, location, status
FROM slots WHERE clinician_id = ?
ORDER BY iso_date, time, href`, clinicianID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SlotRow
	for rows.Next() {
		var s SlotRow
		var short, iso, locID, loc sql.NullString
		if err := rows.Scan(&s.ClinicianID, &s.Href, &s.Time, &s.Date, &short, &iso, &locID, &loc, &s.Status); err != nil {
			return nil, err
		}
		s.ShortDate = short.String
		s.IsoDate = iso.String
		s.LocationID = locID.String
		s.Location = loc.String
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// BookSlot marks a listed slot booked. Booking anything not currently listed
// fails with ErrSlotUnavailable, so booked rows can never be re-booked and
// errored rows can never be booked at all.
func (d *DB) BookSlot(ctx context.Context, clinicianID, href string) error {
	r, err := d.sql.ExecContext(ctx,
		`UPDATE slots SET status = 'booked' WHERE clinician_id = ? AND href = ? AND status = 'listed'`,
		clinicianID, href)
	if err != nil {
		return err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

func (d *DB) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := d.sql.QueryRowContext(ctx, `
SELECT
  (SELECT COUNT(*) FROM clinicians),
  (SELECT COUNT(*) FROM slots),
  (SELECT COUNT(*) FROM slots WHERE status = 'listed'),
  (SELECT COUNT(*) FROM slots WHERE status = 'booked'),
  (SELECT COUNT(*) FROM slots WHERE status = 'error'),
  (SELECT COUNT(DISTINCT location_id) FROM slots WHERE location_id IS NOT NULL)`).
		Scan(&s.Clinicians, &s.Slots, &s.Listed, &s.Booked, &s.Errored, &s.Locations)
	return s, err
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
