package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Verb is the closed set of federated actions. Anything else fails at
// construction time in ParseVerb, so dispatch sites can match exhaustively.
type Verb string

const (
	VerbPost     Verb = "post"
	VerbFollow   Verb = "follow"
	VerbUnfollow Verb = "unfollow"
	VerbFavorite Verb = "favorite"
	VerbShare    Verb = "share"
)

// ParseVerb validates a wire verb against the closed set.
func ParseVerb(s string) (Verb, error) {
	switch Verb(s) {
	case VerbPost, VerbFollow, VerbUnfollow, VerbFavorite, VerbShare:
		return Verb(s), nil
	}
	return "", fmt.Errorf("unknown verb %q: %w", s, ErrParseFailure)
}

// Object types carried by post activities.
const (
	ObjectNote    = "note"
	ObjectArticle = "article"
	ObjectImage   = "image"
)

// Activity is a single federated action. Url is the canonical identifier and
// the idempotency key: a given remote url maps to at most one Activity.
type Activity struct {
	Id         uuid.UUID
	Url        string
	Verb       Verb
	ActorId    uuid.UUID
	ObjectType string
	Title      string
	Content    string
	TargetUrl  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (a *Activity) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tUrl: %s \n\tVerb: %s \n\tCreatedAt: %s)", a.Id, a.Url, a.Verb, a.CreatedAt)
}
