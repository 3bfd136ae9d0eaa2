package db

import (
	"database/sql"
	"log"
)

// Schema. The UNIQUE constraint on activities.url is the atomic
// create-by-key guarantee the notification processor relies on; the NOCASE
// collation on identity names gives case-insensitive identifier lookups at
// the storage boundary.
const (
	sqlCreateIdentitiesTable = `CREATE TABLE IF NOT EXISTS identities (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL COLLATE NOCASE,
		domain TEXT NOT NULL COLLATE NOCASE,
		public_key_pem TEXT,
		salmon_endpoint TEXT,
		dialback_endpoint TEXT,
		activity_inbox_endpoint TEXT,
		profile_page TEXT,
		outbox_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(username, domain)
	)`

	sqlCreateAccountsTable = `CREATE TABLE IF NOT EXISTS accounts (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL COLLATE NOCASE,
		identity_id TEXT NOT NULL,
		feed_id TEXT NOT NULL,
		publickey TEXT UNIQUE,
		web_public_key TEXT,
		web_private_key TEXT,
		first_time_login INTEGER DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateFeedsTable = `CREATE TABLE IF NOT EXISTS feeds (
		id TEXT NOT NULL PRIMARY KEY,
		url TEXT UNIQUE,
		identity_id TEXT NOT NULL,
		title TEXT,
		subtitle TEXT,
		icon TEXT,
		logo TEXT,
		generator TEXT,
		rights TEXT,
		hubs TEXT,
		salmon_url TEXT,
		subscription_secret TEXT,
		verification_token TEXT,
		remote INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	// rowid preserves insertion order within each feed.
	sqlCreateFeedEntriesTable = `CREATE TABLE IF NOT EXISTS feed_entries (
		feed_id TEXT NOT NULL,
		activity_id TEXT NOT NULL,
		UNIQUE(feed_id, activity_id)
	)`

	sqlCreateActivitiesTable = `CREATE TABLE IF NOT EXISTS activities (
		id TEXT NOT NULL PRIMARY KEY,
		url TEXT UNIQUE NOT NULL,
		verb TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		object_type TEXT,
		title TEXT,
		content TEXT,
		target_url TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateMentionsTable = `CREATE TABLE IF NOT EXISTS mentions (
		activity_id TEXT NOT NULL,
		acct TEXT NOT NULL COLLATE NOCASE,
		UNIQUE(activity_id, acct)
	)`

	sqlCreateFollowsTable = `CREATE TABLE IF NOT EXISTS follows (
		follower_identity_id TEXT NOT NULL,
		followed_identity_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(follower_identity_id, followed_identity_id)
	)`

	sqlCreateFavoritesTable = `CREATE TABLE IF NOT EXISTS favorites (
		account_id TEXT NOT NULL,
		activity_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, activity_id)
	)`

	sqlCreateSharesTable = `CREATE TABLE IF NOT EXISTS shares (
		account_id TEXT NOT NULL,
		activity_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, activity_id)
	)`

	sqlCreateHubPingsTable = `CREATE TABLE IF NOT EXISTS hub_pings (
		id TEXT NOT NULL PRIMARY KEY,
		hub_url TEXT NOT NULL,
		feed_url TEXT NOT NULL,
		attempts INTEGER DEFAULT 0,
		next_retry_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateIndices = `
		CREATE INDEX IF NOT EXISTS idx_identities_acct ON identities(username, domain);
		CREATE INDEX IF NOT EXISTS idx_activities_actor ON activities(actor_id);
		CREATE INDEX IF NOT EXISTS idx_activities_target ON activities(target_url);
		CREATE INDEX IF NOT EXISTS idx_feed_entries_feed ON feed_entries(feed_id);
		CREATE INDEX IF NOT EXISTS idx_mentions_acct ON mentions(acct);
		CREATE INDEX IF NOT EXISTS idx_follows_follower ON follows(follower_identity_id);
		CREATE INDEX IF NOT EXISTS idx_follows_followed ON follows(followed_identity_id);
	`
)

// CreateSchema creates all tables and indices.
func (db *DB) CreateSchema() error {
	tables := []string{
		sqlCreateIdentitiesTable,
		sqlCreateAccountsTable,
		sqlCreateFeedsTable,
		sqlCreateFeedEntriesTable,
		sqlCreateActivitiesTable,
		sqlCreateMentionsTable,
		sqlCreateFollowsTable,
		sqlCreateFavoritesTable,
		sqlCreateSharesTable,
		sqlCreateHubPingsTable,
	}

	err := db.wrapTransaction(func(tx *sql.Tx) error {
		for _, stmt := range tables {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := db.db.Exec(sqlCreateIndices); err != nil {
		log.Printf("Warning: could not create indices: %v", err)
	}
	return nil
}
