package db

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/graylingsocial/grayling/domain"
)

// Social graph edges. All inserts are INSERT OR IGNORE and all deletes
// match zero or more rows, so every edge operation is idempotent.
const (
	sqlInsertFollow = `INSERT OR IGNORE INTO follows(follower_identity_id, followed_identity_id, created_at)
							VALUES (?, ?, CURRENT_TIMESTAMP)`
	sqlDeleteFollow = `DELETE FROM follows WHERE follower_identity_id = ? AND followed_identity_id = ?`
	sqlIdentityColumnsQ = `identities.id, identities.username, identities.domain, identities.public_key_pem,
							identities.salmon_endpoint, identities.dialback_endpoint, identities.activity_inbox_endpoint,
							identities.profile_page, identities.outbox_id, identities.created_at, identities.updated_at`
	sqlSelectFollowing = `SELECT ` + sqlIdentityColumnsQ + ` FROM identities
							JOIN follows ON follows.followed_identity_id = identities.id
							WHERE follows.follower_identity_id = ?
							ORDER BY follows.rowid ASC`
	sqlSelectFollowers = `SELECT ` + sqlIdentityColumnsQ + ` FROM identities
							JOIN follows ON follows.follower_identity_id = identities.id
							WHERE follows.followed_identity_id = ?
							ORDER BY follows.rowid ASC`
	sqlCountFollow = `SELECT COUNT(*) FROM follows WHERE follower_identity_id = ? AND followed_identity_id = ?`

	sqlInsertFavorite = `INSERT OR IGNORE INTO favorites(account_id, activity_id, created_at)
							VALUES (?, ?, CURRENT_TIMESTAMP)`
	sqlDeleteFavorite = `DELETE FROM favorites WHERE account_id = ? AND activity_id = ?`
	sqlInsertShare    = `INSERT OR IGNORE INTO shares(account_id, activity_id, created_at)
							VALUES (?, ?, CURRENT_TIMESTAMP)`
	sqlDeleteShare = `DELETE FROM shares WHERE account_id = ? AND activity_id = ?`
)

func (db *DB) AddFollow(followerIdentityId, followedIdentityId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertFollow, followerIdentityId.String(), followedIdentityId.String())
		return err
	})
}

func (db *DB) RemoveFollow(followerIdentityId, followedIdentityId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollow, followerIdentityId.String(), followedIdentityId.String())
		return err
	})
}

func (db *DB) FollowExists(followerIdentityId, followedIdentityId uuid.UUID) (bool, error) {
	var n int
	err := db.db.QueryRow(sqlCountFollow, followerIdentityId.String(), followedIdentityId.String()).Scan(&n)
	return n > 0, err
}

func (db *DB) readIdentities(query string, args ...any) ([]domain.Identity, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []domain.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return identities, err
		}
		identities = append(identities, *identity)
	}
	if err = rows.Err(); err != nil {
		return identities, err
	}
	return identities, nil
}

// ReadFollowing returns the identities followed by the given identity.
func (db *DB) ReadFollowing(identityId uuid.UUID) ([]domain.Identity, error) {
	return db.readIdentities(sqlSelectFollowing, identityId.String())
}

// ReadFollowers returns the identities following the given identity.
func (db *DB) ReadFollowers(identityId uuid.UUID) ([]domain.Identity, error) {
	return db.readIdentities(sqlSelectFollowers, identityId.String())
}

func (db *DB) AddFavorite(accountId, activityId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertFavorite, accountId.String(), activityId.String())
		return err
	})
}

func (db *DB) RemoveFavorite(accountId, activityId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFavorite, accountId.String(), activityId.String())
		return err
	})
}

func (db *DB) AddShare(accountId, activityId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertShare, accountId.String(), activityId.String())
		return err
	})
}

func (db *DB) RemoveShare(accountId, activityId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteShare, accountId.String(), activityId.String())
		return err
	})
}
