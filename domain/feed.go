package domain

import (
	"time"

	"github.com/google/uuid"
)

// Feed is an ordered collection of activities plus syndication metadata,
// owned by a local Person or mirroring a subscribed remote source. Entries
// are kept in insertion order; posting and reposting append.
//
// SubscriptionSecret and VerificationToken are shared by every local
// follower of the same remote feed, so the server keeps one secret per
// source rather than one per follower.
type Feed struct {
	Id                 uuid.UUID
	Url                string
	IdentityId         uuid.UUID
	Title              string
	Subtitle           string
	Icon               string
	Logo               string
	Generator          string
	Rights             string
	Hubs               []string
	SalmonUrl          string
	SubscriptionSecret string
	VerificationToken  string
	Remote             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
