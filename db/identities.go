package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/graylingsocial/grayling/domain"
)

// Identity queries. Username and domain columns carry COLLATE NOCASE, so
// the equality match below is already case-insensitive.
const (
	sqlInsertIdentity = `INSERT INTO identities(id, username, domain, public_key_pem, salmon_endpoint,
							dialback_endpoint, activity_inbox_endpoint, profile_page, outbox_id, created_at, updated_at)
							VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectIdentityColumns = `id, username, domain, public_key_pem, salmon_endpoint, dialback_endpoint,
							activity_inbox_endpoint, profile_page, outbox_id, created_at, updated_at`
	sqlSelectIdentityByAcct = `SELECT ` + sqlSelectIdentityColumns + ` FROM identities
							WHERE username = ? AND domain = ?`
	sqlSelectIdentityById = `SELECT ` + sqlSelectIdentityColumns + ` FROM identities WHERE id = ?`
	sqlUpdateIdentityMeta = `UPDATE identities SET public_key_pem = ?, salmon_endpoint = ?, dialback_endpoint = ?,
							activity_inbox_endpoint = ?, profile_page = ?, outbox_id = ?, updated_at = ? WHERE id = ?`
)

func (db *DB) CreateIdentity(identity *domain.Identity) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertIdentity,
			identity.Id.String(),
			identity.Username,
			identity.Domain,
			identity.PublicKeyPem,
			identity.SalmonEndpoint,
			identity.DialbackEndpoint,
			identity.ActivityInboxEndpoint,
			identity.ProfilePage,
			identity.OutboxId,
			identity.CreatedAt,
			identity.UpdatedAt,
		)
		return err
	})
}

func scanIdentity(row interface{ Scan(...any) error }) (*domain.Identity, error) {
	var identity domain.Identity
	var idStr string
	err := row.Scan(
		&idStr,
		&identity.Username,
		&identity.Domain,
		&identity.PublicKeyPem,
		&identity.SalmonEndpoint,
		&identity.DialbackEndpoint,
		&identity.ActivityInboxEndpoint,
		&identity.ProfilePage,
		&identity.OutboxId,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	identity.Id, _ = uuid.Parse(idStr)
	return &identity, nil
}

// ReadIdentityByAcct looks up an identity by (username, domain), ignoring
// case. Returns nil without error when no identity matches.
func (db *DB) ReadIdentityByAcct(username, domain string) (*domain.Identity, error) {
	row := db.db.QueryRow(sqlSelectIdentityByAcct, username, domain)
	identity, err := scanIdentity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return identity, err
}

func (db *DB) ReadIdentityById(id uuid.UUID) (*domain.Identity, error) {
	row := db.db.QueryRow(sqlSelectIdentityById, id.String())
	identity, err := scanIdentity(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return identity, err
}

// UpdateIdentityMeta refreshes endpoint metadata. Username and domain are
// immutable once created.
func (db *DB) UpdateIdentityMeta(identity *domain.Identity) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateIdentityMeta,
			identity.PublicKeyPem,
			identity.SalmonEndpoint,
			identity.DialbackEndpoint,
			identity.ActivityInboxEndpoint,
			identity.ProfilePage,
			identity.OutboxId,
			time.Now(),
			identity.Id.String(),
		)
		return err
	})
}
