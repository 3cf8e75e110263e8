package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/brightflock/sendout-backend/internal/errors"
	"github.com/brightflock/sendout-backend/internal/model"
)

type SendoutRepositoryInterface interface {
	Create(s *model.Sendout) error
	GetByID(id int64) (*model.Sendout, error)
	GetStatus(id int64) (model.SendStatus, error)
	ListSendouts(offset, limit int, sendoutType, status string) ([]*model.Sendout, int, error)
	ListSendable() ([]*model.Sendout, error)
	UpdateStatus(id int64, status model.SendStatus) error
	UpdateCursor(id int64, cursor int64) error
	UpdateSchedulingFields(id int64, sendDate, lastSent *time.Time, cursor int64) error
	IncrementSendAttempts(id int64) (int, error)
}

type SendoutRepository struct {
	DB *sql.DB
}

const sendoutColumns = `id, title, sendout_type, send_status, mailing_list_id, subject,
	from_name, from_email, body, notification_email, schedule, send_date, last_sent,
	cursor, send_attempts, created_at, updated_at`

func (r *SendoutRepository) Create(s *model.Sendout) error {
	s.CreatedAt = time.Now()
	if s.SendStatus == "" {
		s.SendStatus = model.StatusDraft
	}
	query := `
        INSERT INTO sendouts (title, sendout_type, send_status, mailing_list_id, subject,
            from_name, from_email, body, notification_email, schedule, send_date, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		s.Title, s.SendoutType, s.SendStatus, s.MailingListID, s.Subject,
		s.FromName, s.FromEmail, s.Body, s.NotificationEmail, s.Schedule,
		s.SendDate, s.CreatedAt,
	).Scan(&s.ID)
}

func (r *SendoutRepository) GetByID(id int64) (*model.Sendout, error) {
	query := `SELECT ` + sendoutColumns + ` FROM sendouts WHERE id=$1`
	s, err := scanSendout(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewSendoutNotFound(id)
		}
		return nil, err
	}
	return s, nil
}

// GetStatus fetches only the status. Used by the batch loop's
// per-contact cancellation check, so it stays a single-column query.
func (r *SendoutRepository) GetStatus(id int64) (model.SendStatus, error) {
	var status model.SendStatus
	err := r.DB.QueryRow(`SELECT send_status FROM sendouts WHERE id=$1`, id).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", appErrors.NewSendoutNotFound(id)
		}
		return "", err
	}
	return status, nil
}

func (r *SendoutRepository) ListSendouts(offset, limit int, sendoutType, status string) ([]*model.Sendout, int, error) {
	sendouts := []*model.Sendout{}
	query := `SELECT ` + sendoutColumns + ` FROM sendouts WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if sendoutType != "" {
		query += fmt.Sprintf(" AND sendout_type=$%d", argPos)
		args = append(args, sendoutType)
		argPos++
	}
	if status != "" {
		query += fmt.Sprintf(" AND send_status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSendout(rows)
		if err != nil {
			return nil, 0, err
		}
		sendouts = append(sendouts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM sendouts WHERE 1=1`
	argsCount := []interface{}{}
	argPosCount := 1
	if sendoutType != "" {
		countQuery += fmt.Sprintf(" AND sendout_type=$%d", argPosCount)
		argsCount = append(argsCount, sendoutType)
		argPosCount++
	}
	if status != "" {
		countQuery += fmt.Sprintf(" AND send_status=$%d", argPosCount)
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return sendouts, total, nil
}

// ListSendable fetches sendouts eligible for schedule evaluation.
func (r *SendoutRepository) ListSendable() ([]*model.Sendout, error) {
	query := `SELECT ` + sendoutColumns + ` FROM sendouts
        WHERE send_status IN ($1, $2) ORDER BY id ASC`
	rows, err := r.DB.Query(query, model.StatusPending, model.StatusQueued)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sendouts := []*model.Sendout{}
	for rows.Next() {
		s, err := scanSendout(rows)
		if err != nil {
			return nil, err
		}
		sendouts = append(sendouts, s)
	}
	return sendouts, rows.Err()
}

func (r *SendoutRepository) UpdateStatus(id int64, status model.SendStatus) error {
	query := `UPDATE sendouts SET send_status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), id)
	return err
}

func (r *SendoutRepository) UpdateCursor(id int64, cursor int64) error {
	query := `UPDATE sendouts SET cursor=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, cursor, time.Now(), id)
	return err
}

// UpdateSchedulingFields commits the recurrence bookkeeping after a
// batch cycle completes. send_date is always derived from last_sent, so
// the two columns cannot drift.
func (r *SendoutRepository) UpdateSchedulingFields(id int64, sendDate, lastSent *time.Time, cursor int64) error {
	query := `UPDATE sendouts SET send_date=$1, last_sent=$2, cursor=$3, send_attempts=0, updated_at=$4 WHERE id=$5`
	_, err := r.DB.Exec(query, sendDate, lastSent, cursor, time.Now(), id)
	return err
}

// IncrementSendAttempts bumps the per-job failure counter and returns
// the new value.
func (r *SendoutRepository) IncrementSendAttempts(id int64) (int, error) {
	var attempts int
	query := `UPDATE sendouts SET send_attempts=send_attempts+1, updated_at=$1 WHERE id=$2 RETURNING send_attempts`
	err := r.DB.QueryRow(query, time.Now(), id).Scan(&attempts)
	if err == sql.ErrNoRows {
		return 0, appErrors.NewSendoutNotFound(id)
	}
	return attempts, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSendout(row rowScanner) (*model.Sendout, error) {
	s := &model.Sendout{}
	var sched scheduleColumn
	err := row.Scan(
		&s.ID, &s.Title, &s.SendoutType, &s.SendStatus, &s.MailingListID, &s.Subject,
		&s.FromName, &s.FromEmail, &s.Body, &s.NotificationEmail, &sched,
		&s.SendDate, &s.LastSent, &s.Cursor, &s.SendAttempts, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Schedule = sched.schedule
	return s, nil
}

var _ SendoutRepositoryInterface = (*SendoutRepository)(nil)
