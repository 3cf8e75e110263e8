package repository

import (
	"database/sql"
	"time"

	"github.com/brightflock/sendout-backend/internal/model"
)

type PendingContactRepositoryInterface interface {
	Create(p *model.PendingContact) error
	CountByEmailAndList(email string, mailingListID int64) (int, error)
	GetByPID(pid string) (*model.PendingContact, error)
	DeleteByEmailAndList(email string, mailingListID int64) error
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

type PendingContactRepository struct {
	DB *sql.DB
}

func (r *PendingContactRepository) Create(p *model.PendingContact) error {
	p.CreatedAt = time.Now()
	query := `
        INSERT INTO pending_contacts (pid, email, mailing_list_id, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `
	return r.DB.QueryRow(query, p.PID, p.Email, p.MailingListID, p.CreatedAt).Scan(&p.ID)
}

func (r *PendingContactRepository) CountByEmailAndList(email string, mailingListID int64) (int, error) {
	var count int
	err := r.DB.QueryRow(`
        SELECT COUNT(*) FROM pending_contacts
        WHERE email = $1 AND mailing_list_id = $2
    `, email, mailingListID).Scan(&count)
	return count, err
}

func (r *PendingContactRepository) GetByPID(pid string) (*model.PendingContact, error) {
	query := `SELECT id, pid, email, mailing_list_id, created_at FROM pending_contacts WHERE pid = $1`
	var p model.PendingContact
	err := r.DB.QueryRow(query, pid).Scan(&p.ID, &p.PID, &p.Email, &p.MailingListID, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// DeleteByEmailAndList removes every pending entry for the pair, called
// once a verification succeeds.
func (r *PendingContactRepository) DeleteByEmailAndList(email string, mailingListID int64) error {
	_, err := r.DB.Exec(`
        DELETE FROM pending_contacts WHERE email = $1 AND mailing_list_id = $2
    `, email, mailingListID)
	return err
}

func (r *PendingContactRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.DB.Exec(`DELETE FROM pending_contacts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ PendingContactRepositoryInterface = (*PendingContactRepository)(nil)
