package db

import (
	"github.com/google/uuid"
	"github.com/graylingsocial/grayling/domain"
)

// Feed projection queries. Every activity-ordered projection sorts by
// created_at descending with rowid ascending as the tie breaker, which is
// insertion order and therefore stable.
const (
	sqlActivityOrder = ` ORDER BY activities.created_at DESC, activities.rowid ASC`

	// Qualified column list for joins against tables that share column
	// names (created_at, title) with activities.
	sqlActivityColumnsQ = `activities.id, activities.url, activities.verb, activities.actor_id,
							activities.object_type, activities.title, activities.content, activities.target_url,
							activities.created_at, activities.updated_at`

	sqlSelectTimeline = `SELECT DISTINCT ` + sqlActivityColumnsQ + ` FROM activities
							JOIN feed_entries ON feed_entries.activity_id = activities.id
							JOIN feeds ON feeds.id = feed_entries.feed_id
							WHERE feeds.identity_id = ?
							   OR feeds.identity_id IN
								(SELECT followed_identity_id FROM follows WHERE follower_identity_id = ?)` +
		sqlActivityOrder

	sqlSelectActivitiesByActor = `SELECT ` + sqlSelectActivityColumns + ` FROM activities
							WHERE actor_id = ?` + sqlActivityOrder

	sqlSelectMentionsFor = `SELECT ` + sqlActivityColumnsQ + ` FROM activities
							JOIN mentions ON mentions.activity_id = activities.id
							WHERE mentions.acct = ? AND activities.actor_id != ?` + sqlActivityOrder

	sqlSelectRepliesTo = `SELECT ` + sqlSelectActivityColumns + ` FROM activities
							WHERE verb = 'post' AND target_url != ''
							  AND target_url IN (SELECT url FROM activities WHERE actor_id = ?)` +
		sqlActivityOrder

	sqlSelectFavoritesOf = `SELECT ` + sqlActivityColumnsQ + ` FROM activities
							JOIN favorites ON favorites.activity_id = activities.id
							WHERE favorites.account_id = ?` + sqlActivityOrder

	sqlSelectSharesOf = `SELECT ` + sqlActivityColumnsQ + ` FROM activities
							JOIN shares ON shares.activity_id = activities.id
							WHERE shares.account_id = ?` + sqlActivityOrder

	sqlSelectFeedActivities = `SELECT ` + sqlActivityColumnsQ + ` FROM activities
							JOIN feed_entries ON feed_entries.activity_id = activities.id
							WHERE feed_entries.feed_id = ?` + sqlActivityOrder
)

// ReadTimeline returns the union of the person's own feed and the feeds of
// everyone they follow, newest first.
func (db *DB) ReadTimeline(identityId uuid.UUID) ([]domain.Activity, error) {
	return db.readActivities(sqlSelectTimeline, identityId.String(), identityId.String())
}

// ReadActivitiesByActor returns activities authored by the identity.
func (db *DB) ReadActivitiesByActor(identityId uuid.UUID) ([]domain.Activity, error) {
	return db.readActivities(sqlSelectActivitiesByActor, identityId.String())
}

// ReadMentionsFor returns activities addressed to acct by someone else.
func (db *DB) ReadMentionsFor(acct string, selfIdentityId uuid.UUID) ([]domain.Activity, error) {
	return db.readActivities(sqlSelectMentionsFor, acct, selfIdentityId.String())
}

// ReadRepliesTo returns post activities targeting an activity authored by
// the identity.
func (db *DB) ReadRepliesTo(identityId uuid.UUID) ([]domain.Activity, error) {
	return db.readActivities(sqlSelectRepliesTo, identityId.String())
}

// ReadFavoritesOf returns the activities the person has favorited.
func (db *DB) ReadFavoritesOf(accountId uuid.UUID) ([]domain.Activity, error) {
	return db.readActivities(sqlSelectFavoritesOf, accountId.String())
}

// ReadSharesOf returns the activities the person has shared.
func (db *DB) ReadSharesOf(accountId uuid.UUID) ([]domain.Activity, error) {
	return db.readActivities(sqlSelectSharesOf, accountId.String())
}

// ReadFeedActivities returns the activities of one feed, newest first.
func (db *DB) ReadFeedActivities(feedId uuid.UUID) ([]domain.Activity, error) {
	return db.readActivities(sqlSelectFeedActivities, feedId.String())
}
