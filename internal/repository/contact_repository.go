package repository

import (
	"database/sql"

	"github.com/brightflock/sendout-backend/internal/model"
)

// ContactRepositoryInterface is the recipient query capability. NextUnsent
// is the paged "give me up to N unsent contacts after cursor Y" query the
// batch loop runs against.
type ContactRepositoryInterface interface {
	GetByID(id int64) (*model.Contact, error)
	NextUnsent(sendoutID, mailingListID, cursor int64, limit int) ([]model.Contact, error)
	CountUnsent(sendoutID, mailingListID, cursor int64) (int, error)
	Subscribe(email string, mailingListID int64) (*model.Contact, error)
}

type ContactRepository struct {
	DB *sql.DB
}

func (r *ContactRepository) GetByID(id int64) (*model.Contact, error) {
	query := `SELECT id, email, first_name, last_name, created_at FROM contacts WHERE id = $1`
	row := r.DB.QueryRow(query, id)

	var c model.Contact
	if err := row.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &c, nil
}

// NextUnsent returns up to limit subscribed contacts with id greater
// than cursor that have no send-log entry for the sendout, in ascending
// id order. The ordering is what makes batch resumption deterministic.
func (r *ContactRepository) NextUnsent(sendoutID, mailingListID, cursor int64, limit int) ([]model.Contact, error) {
	query := `
        SELECT c.id, c.email, c.first_name, c.last_name, c.created_at
        FROM contacts c
        JOIN mailing_list_contacts mlc ON mlc.contact_id = c.id AND mlc.mailing_list_id = $2
        LEFT JOIN send_log sl ON sl.sendout_id = $1 AND sl.contact_id = c.id
        WHERE c.id > $3 AND sl.id IS NULL
        ORDER BY c.id ASC
        LIMIT $4
    `
	rows, err := r.DB.Query(query, sendoutID, mailingListID, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.CreatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *ContactRepository) CountUnsent(sendoutID, mailingListID, cursor int64) (int, error) {
	query := `
        SELECT COUNT(*)
        FROM contacts c
        JOIN mailing_list_contacts mlc ON mlc.contact_id = c.id AND mlc.mailing_list_id = $2
        LEFT JOIN send_log sl ON sl.sendout_id = $1 AND sl.contact_id = c.id
        WHERE c.id > $3 AND sl.id IS NULL
    `
	var count int
	err := r.DB.QueryRow(query, sendoutID, mailingListID, cursor).Scan(&count)
	return count, err
}

// Subscribe upserts a contact by email and adds it to the mailing list.
// Used when a pending contact is verified.
func (r *ContactRepository) Subscribe(email string, mailingListID int64) (*model.Contact, error) {
	var c model.Contact
	query := `
        INSERT INTO contacts (email, created_at) VALUES ($1, NOW())
        ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
        RETURNING id, email, first_name, last_name, created_at
    `
	err := r.DB.QueryRow(query, email).Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = r.DB.Exec(`
        INSERT INTO mailing_list_contacts (mailing_list_id, contact_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING
    `, mailingListID, c.ID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
