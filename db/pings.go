package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Hub ping queue. Pings are best effort: the worker retries with backoff
// and gives up after a fixed number of attempts.
const (
	sqlInsertHubPing = `INSERT INTO hub_pings(id, hub_url, feed_url, attempts, next_retry_at, created_at)
							VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectPendingPings = `SELECT id, hub_url, feed_url, attempts, next_retry_at, created_at FROM hub_pings
							WHERE next_retry_at <= ? ORDER BY created_at ASC LIMIT ?`
	sqlUpdatePingAttempt = `UPDATE hub_pings SET attempts = ?, next_retry_at = ? WHERE id = ?`
	sqlDeletePing        = `DELETE FROM hub_pings WHERE id = ?`
)

// HubPing is one queued hub notification.
type HubPing struct {
	Id          uuid.UUID
	HubUrl      string
	FeedUrl     string
	Attempts    int
	NextRetryAt time.Time
	CreatedAt   time.Time
}

func (db *DB) EnqueueHubPing(ping *HubPing) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertHubPing,
			ping.Id.String(),
			ping.HubUrl,
			ping.FeedUrl,
			ping.Attempts,
			ping.NextRetryAt,
			ping.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadPendingHubPings(limit int) ([]HubPing, error) {
	rows, err := db.db.Query(sqlSelectPendingPings, time.Now(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pings []HubPing
	for rows.Next() {
		var ping HubPing
		var idStr string
		if err := rows.Scan(&idStr, &ping.HubUrl, &ping.FeedUrl, &ping.Attempts, &ping.NextRetryAt, &ping.CreatedAt); err != nil {
			return pings, err
		}
		ping.Id, _ = uuid.Parse(idStr)
		pings = append(pings, ping)
	}
	if err = rows.Err(); err != nil {
		return pings, err
	}
	return pings, nil
}

func (db *DB) UpdateHubPingAttempt(id uuid.UUID, attempts int, nextRetry time.Time) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdatePingAttempt, attempts, nextRetry, id.String())
		return err
	})
}

func (db *DB) DeleteHubPing(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeletePing, id.String())
		return err
	})
}
