package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/graylingsocial/grayling/domain"
)

// Feed queries.
const (
	sqlInsertFeed = `INSERT INTO feeds(id, url, identity_id, title, subtitle, icon, logo, generator,
							rights, hubs, salmon_url, subscription_secret, verification_token, remote,
							created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectFeedColumns = `id, url, identity_id, title, subtitle, icon, logo, generator, rights, hubs,
							salmon_url, subscription_secret, verification_token, remote, created_at, updated_at`
	sqlSelectFeedById         = `SELECT ` + sqlSelectFeedColumns + ` FROM feeds WHERE id = ?`
	sqlSelectFeedByUrl        = `SELECT ` + sqlSelectFeedColumns + ` FROM feeds WHERE url = ?`
	sqlSelectFeedByIdentityId = `SELECT ` + sqlSelectFeedColumns + ` FROM feeds WHERE identity_id = ?`
	sqlUpdateFeedMeta         = `UPDATE feeds SET title = ?, subtitle = ?, icon = ?, logo = ?, generator = ?,
							rights = ?, hubs = ?, salmon_url = ?, updated_at = ? WHERE id = ?`
	sqlInsertFeedEntry = `INSERT OR IGNORE INTO feed_entries(feed_id, activity_id) VALUES (?, ?)`
)

// Hubs are stored as a newline-joined list; none of the values may contain
// newlines since they are URLs.
func encodeHubs(hubs []string) string {
	return strings.Join(hubs, "\n")
}

func decodeHubs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func (db *DB) CreateFeed(feed *domain.Feed) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertFeed,
			feed.Id.String(),
			feed.Url,
			feed.IdentityId.String(),
			feed.Title,
			feed.Subtitle,
			feed.Icon,
			feed.Logo,
			feed.Generator,
			feed.Rights,
			encodeHubs(feed.Hubs),
			feed.SalmonUrl,
			feed.SubscriptionSecret,
			feed.VerificationToken,
			feed.Remote,
			feed.CreatedAt,
			feed.UpdatedAt,
		)
		return err
	})
}

func scanFeed(row interface{ Scan(...any) error }) (*domain.Feed, error) {
	var feed domain.Feed
	var idStr, identityStr, hubs string
	err := row.Scan(
		&idStr,
		&feed.Url,
		&identityStr,
		&feed.Title,
		&feed.Subtitle,
		&feed.Icon,
		&feed.Logo,
		&feed.Generator,
		&feed.Rights,
		&hubs,
		&feed.SalmonUrl,
		&feed.SubscriptionSecret,
		&feed.VerificationToken,
		&feed.Remote,
		&feed.CreatedAt,
		&feed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	feed.Id, _ = uuid.Parse(idStr)
	feed.IdentityId, _ = uuid.Parse(identityStr)
	feed.Hubs = decodeHubs(hubs)
	return &feed, nil
}

func (db *DB) ReadFeedById(id uuid.UUID) (*domain.Feed, error) {
	row := db.db.QueryRow(sqlSelectFeedById, id.String())
	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return feed, err
}

// ReadFeedByUrl returns nil without error when no feed matches.
func (db *DB) ReadFeedByUrl(url string) (*domain.Feed, error) {
	row := db.db.QueryRow(sqlSelectFeedByUrl, url)
	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return feed, err
}

// ReadFeedByIdentityId returns nil without error when the identity has no
// feed on this server yet.
func (db *DB) ReadFeedByIdentityId(identityId uuid.UUID) (*domain.Feed, error) {
	row := db.db.QueryRow(sqlSelectFeedByIdentityId, identityId.String())
	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return feed, err
}

// UpdateFeedMeta replaces the scalar metadata fields only. Entries, authors
// and subscription secrets are never overwritten here: entries get merged
// per item through AppendFeedEntry keyed by activity url.
func (db *DB) UpdateFeedMeta(feed *domain.Feed) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateFeedMeta,
			feed.Title,
			feed.Subtitle,
			feed.Icon,
			feed.Logo,
			feed.Generator,
			feed.Rights,
			encodeHubs(feed.Hubs),
			feed.SalmonUrl,
			time.Now(),
			feed.Id.String(),
		)
		return err
	})
}

// AppendFeedEntry appends an activity to a feed, preserving insertion order.
// Appending the same activity twice is a no-op.
func (db *DB) AppendFeedEntry(feedId, activityId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertFeedEntry, feedId.String(), activityId.String())
		return err
	})
}
