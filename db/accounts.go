package db

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/google/uuid"
	"github.com/graylingsocial/grayling/domain"
	"github.com/graylingsocial/grayling/util"
)

// Account queries.
const (
	sqlInsertAccount = `INSERT INTO accounts(id, username, identity_id, feed_id, publickey,
							web_public_key, web_private_key, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectAccountColumns = `id, username, identity_id, feed_id, publickey, web_public_key,
							web_private_key, first_time_login, created_at`
	sqlSelectAccountByPublicKey = `SELECT ` + sqlSelectAccountColumns + ` FROM accounts WHERE publickey = ?`
	sqlSelectAccountById        = `SELECT ` + sqlSelectAccountColumns + ` FROM accounts WHERE id = ?`
	sqlSelectAccountByUsername  = `SELECT ` + sqlSelectAccountColumns + ` FROM accounts WHERE username = ?`
	sqlUpdateLoginById          = `UPDATE accounts SET first_time_login = 0, username = ? WHERE id = ?`
)

// CreatePerson registers a local person: one identity, one feed, one
// account, in a single transaction.
func (db *DB) CreatePerson(username, domainName, sshKeyHash string) (*domain.Person, error) {
	keypair := util.GeneratePemKeypair()
	now := time.Now()

	identity := &domain.Identity{
		Id:           uuid.New(),
		Username:     username,
		Domain:       domainName,
		PublicKeyPem: keypair.Public,
		ProfilePage:  fmt.Sprintf("https://%s/people/%s", domainName, username),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	identity.SalmonEndpoint = identity.ProfilePage + "/salmon"
	identity.ActivityInboxEndpoint = identity.ProfilePage + "/inbox"
	identity.OutboxId = identity.ProfilePage + "/activities"

	feed := &domain.Feed{
		Id:         uuid.New(),
		Url:        identity.OutboxId,
		IdentityId: identity.Id,
		Title:      fmt.Sprintf("%s's activities", username),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	person := &domain.Person{
		Id:            uuid.New(),
		Username:      username,
		IdentityId:    identity.Id,
		FeedId:        feed.Id,
		Publickey:     sshKeyHash,
		WebPublicKey:  keypair.Public,
		WebPrivateKey: keypair.Private,
		CreatedAt:     now,
	}

	err := db.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlInsertIdentity,
			identity.Id.String(), identity.Username, identity.Domain, identity.PublicKeyPem,
			identity.SalmonEndpoint, identity.DialbackEndpoint, identity.ActivityInboxEndpoint,
			identity.ProfilePage, identity.OutboxId, identity.CreatedAt, identity.UpdatedAt,
		); err != nil {
			return err
		}
		if _, err := tx.Exec(sqlInsertFeed,
			feed.Id.String(), feed.Url, feed.IdentityId.String(), feed.Title, feed.Subtitle,
			feed.Icon, feed.Logo, feed.Generator, feed.Rights, encodeHubs(feed.Hubs),
			feed.SalmonUrl, feed.SubscriptionSecret, feed.VerificationToken, feed.Remote,
			feed.CreatedAt, feed.UpdatedAt,
		); err != nil {
			return err
		}
		_, err := tx.Exec(sqlInsertAccount,
			person.Id.String(), person.Username, person.IdentityId.String(), person.FeedId.String(),
			person.Publickey, person.WebPublicKey, person.WebPrivateKey, person.CreatedAt,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return person, nil
}

func scanPerson(row interface{ Scan(...any) error }) (*domain.Person, error) {
	var person domain.Person
	var idStr, identityStr, feedStr string
	err := row.Scan(
		&idStr,
		&person.Username,
		&identityStr,
		&feedStr,
		&person.Publickey,
		&person.WebPublicKey,
		&person.WebPrivateKey,
		&person.FirstTimeLogin,
		&person.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	person.Id, _ = uuid.Parse(idStr)
	person.IdentityId, _ = uuid.Parse(identityStr)
	person.FeedId, _ = uuid.Parse(feedStr)
	return &person, nil
}

func (db *DB) ReadPersonById(id uuid.UUID) (*domain.Person, error) {
	row := db.db.QueryRow(sqlSelectAccountById, id.String())
	person, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return person, err
}

func (db *DB) ReadPersonByUsername(username string) (*domain.Person, error) {
	row := db.db.QueryRow(sqlSelectAccountByUsername, username)
	person, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return person, err
}

func (db *DB) ReadPersonByPkHash(pkHash string) (*domain.Person, error) {
	row := db.db.QueryRow(sqlSelectAccountByPublicKey, pkHash)
	person, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return person, err
}

// ReadPersonBySession resolves the person owning the session's public key.
func (db *DB) ReadPersonBySession(s ssh.Session) (*domain.Person, error) {
	return db.ReadPersonByPkHash(util.PkToHash(util.PublicKeyToString(s.PublicKey())))
}

// UpdateLoginById finalizes a first login by fixing the chosen username.
func (db *DB) UpdateLoginById(username string, id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlUpdateLoginById, username, id.String()); err != nil {
			return err
		}
		// The identity record carries the same name.
		_, err := tx.Exec(`UPDATE identities SET username = ? WHERE id =
			(SELECT identity_id FROM accounts WHERE id = ?)`, username, id.String())
		return err
	})
}

// EnsurePersonBySession returns the person for the session key, registering
// a new one when the key is unknown.
func (db *DB) EnsurePersonBySession(s ssh.Session, username, domainName string) (*domain.Person, error) {
	person, err := db.ReadPersonBySession(s)
	if err == nil {
		return person, nil
	}
	if err != domain.ErrNotFound {
		return nil, err
	}
	log.Printf("No records for %s found, creating new user..", username)
	return db.CreatePerson(username, domainName, util.PkToHash(util.PublicKeyToString(s.PublicKey())))
}
