package repository

import (
	"database/sql"

	"github.com/brightflock/sendout-backend/internal/model"
)

// SendLogRepositoryInterface is the append-only idempotence record. The
// unique (sendout_id, contact_id) index is what guarantees at-most-once
// delivery even across continuation jobs.
type SendLogRepositoryInterface interface {
	RecordSent(sendoutID, contactID int64) error
	RecordFailed(sendoutID, contactID int64, lastError string) error
	WasSent(sendoutID, contactID int64) (bool, error)
	Stats(sendoutID int64) (map[string]int, error)
}

type SendLogRepository struct {
	DB *sql.DB
}

func (r *SendLogRepository) RecordSent(sendoutID, contactID int64) error {
	return r.record(sendoutID, contactID, model.SendLogSent, "")
}

func (r *SendLogRepository) RecordFailed(sendoutID, contactID int64, lastError string) error {
	return r.record(sendoutID, contactID, model.SendLogFailed, lastError)
}

func (r *SendLogRepository) record(sendoutID, contactID int64, status, lastError string) error {
	query := `
        INSERT INTO send_log (sendout_id, contact_id, status, last_error, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (sendout_id, contact_id) DO NOTHING
    `
	_, err := r.DB.Exec(query, sendoutID, contactID, status, lastError)
	return err
}

func (r *SendLogRepository) WasSent(sendoutID, contactID int64) (bool, error) {
	query := `SELECT 1 FROM send_log WHERE sendout_id = $1 AND contact_id = $2 LIMIT 1`
	var tmp int
	err := r.DB.QueryRow(query, sendoutID, contactID).Scan(&tmp)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Stats aggregates delivery outcomes for the status endpoint. Safe for
// concurrent reads while a batch job appends.
func (r *SendLogRepository) Stats(sendoutID int64) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM send_log WHERE sendout_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, sendoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{model.SendLogSent: 0, model.SendLogFailed: 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ SendLogRepositoryInterface = (*SendLogRepository)(nil)
