package main

import (
	"database/sql"
	"time"

	"github.com/1fge/nextblock-stream-monitor/ingest"
)

const createSightingsTable = `CREATE TABLE IF NOT EXISTS stream_sightings (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	signature VARCHAR(88) NOT NULL,
	slot BIGINT UNSIGNED NOT NULL,
	tx_index BIGINT UNSIGNED NULL,
	seen_at DATETIME(3) NOT NULL,
	INDEX idx_signature (signature)
)`

const insertSighting = "INSERT INTO stream_sightings (signature, slot, tx_index, seen_at) VALUES (?, ?, ?, ?)"

func ensureSightingsTable(db *sql.DB) error {
	_, err := db.Exec(createSightingsTable)
	return err
}

// sightingArgs orders the insert arguments; a missing index is stored as NULL.
func sightingArgs(ev ingest.Event, seenAt time.Time) []interface{} {
	var index sql.NullInt64
	if ev.Index != nil {
		index = sql.NullInt64{Int64: int64(*ev.Index), Valid: true}
	}
	return []interface{}{ev.Signature, ev.Slot, index, seenAt.UTC()}
}

// recordSighting stores one observed transaction. Rows are not deduplicated;
// the same signature seen across reconnects is stored once per sighting.
func (m *Monitor) recordSighting(ev ingest.Event, seenAt time.Time) error {
	_, err := m.dbConnection.Exec(insertSighting, sightingArgs(ev, seenAt)...)
	return err
}
