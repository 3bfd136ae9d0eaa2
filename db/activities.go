package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/graylingsocial/grayling/domain"
)

// Activity queries. The url column is UNIQUE: inserting a second activity
// with the same url fails with a constraint violation, which CreateActivity
// reports as ErrDuplicateUrl so a racing caller can take the update path.
const (
	sqlInsertActivity = `INSERT INTO activities(id, url, verb, actor_id, object_type, title, content,
							target_url, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectActivityColumns = `id, url, verb, actor_id, object_type, title, content, target_url,
							created_at, updated_at`
	sqlSelectActivityById  = `SELECT ` + sqlSelectActivityColumns + ` FROM activities WHERE id = ?`
	sqlSelectActivityByUrl = `SELECT ` + sqlSelectActivityColumns + ` FROM activities WHERE url = ?`
	sqlUpdateActivity      = `UPDATE activities SET object_type = ?, title = ?, content = ?,
							target_url = ?, updated_at = ? WHERE id = ?`
	sqlInsertMention = `INSERT OR IGNORE INTO mentions(activity_id, acct) VALUES (?, ?)`
)

// ErrDuplicateUrl is returned by CreateActivity when an activity with the
// same canonical url already exists.
var ErrDuplicateUrl = errors.New("activity url already exists")

func (db *DB) CreateActivity(activity *domain.Activity, mentions []string) error {
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlInsertActivity,
			activity.Id.String(),
			activity.Url,
			string(activity.Verb),
			activity.ActorId.String(),
			activity.ObjectType,
			activity.Title,
			activity.Content,
			activity.TargetUrl,
			activity.CreatedAt,
			activity.UpdatedAt,
		); err != nil {
			return err
		}
		for _, acct := range mentions {
			if _, err := tx.Exec(sqlInsertMention, activity.Id.String(), acct); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateUrl
	}
	return err
}

// UpdateActivity merges the mutable fields of an existing activity. The url
// is the record's identity and never changes.
func (db *DB) UpdateActivity(activity *domain.Activity) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateActivity,
			activity.ObjectType,
			activity.Title,
			activity.Content,
			activity.TargetUrl,
			time.Now(),
			activity.Id.String(),
		)
		return err
	})
}

func scanActivity(row interface{ Scan(...any) error }) (*domain.Activity, error) {
	var activity domain.Activity
	var idStr, actorStr, verb string
	err := row.Scan(
		&idStr,
		&activity.Url,
		&verb,
		&actorStr,
		&activity.ObjectType,
		&activity.Title,
		&activity.Content,
		&activity.TargetUrl,
		&activity.CreatedAt,
		&activity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	activity.Id, _ = uuid.Parse(idStr)
	activity.ActorId, _ = uuid.Parse(actorStr)
	activity.Verb = domain.Verb(verb)
	return &activity, nil
}

func (db *DB) ReadActivityById(id uuid.UUID) (*domain.Activity, error) {
	row := db.db.QueryRow(sqlSelectActivityById, id.String())
	activity, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return activity, err
}

// ReadActivityByUrl is the idempotency lookup used by the notification
// processor. Returns nil without error when no activity matches.
func (db *DB) ReadActivityByUrl(url string) (*domain.Activity, error) {
	row := db.db.QueryRow(sqlSelectActivityByUrl, url)
	activity, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return activity, err
}

func (db *DB) readActivities(query string, args ...any) ([]domain.Activity, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []domain.Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return activities, err
		}
		activities = append(activities, *activity)
	}
	if err = rows.Err(); err != nil {
		return activities, err
	}
	return activities, nil
}
