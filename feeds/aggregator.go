package feeds

import (
	"github.com/graylingsocial/grayling/db"
	"github.com/graylingsocial/grayling/domain"
)

// Aggregator computes a person's derived views over the activity store and
// the social graph. Every activity-ordered projection comes back newest
// first, ties broken by insertion order, and carries no pagination state
// between calls.
type Aggregator struct {
	store *db.DB
}

func NewAggregator(store *db.DB) *Aggregator {
	return &Aggregator{store: store}
}

// Timeline is the union of the person's own feed and the feeds of everyone
// they follow.
func (a *Aggregator) Timeline(person *domain.Person) ([]domain.Activity, error) {
	return a.store.ReadTimeline(person.IdentityId)
}

// Activities lists only what the person authored.
func (a *Aggregator) Activities(person *domain.Person) ([]domain.Activity, error) {
	return a.store.ReadActivitiesByActor(person.IdentityId)
}

// Mentions lists activities addressed to the person by someone else.
// Mentions are stored canonical, so the lookup key is canonical too.
func (a *Aggregator) Mentions(person *domain.Person) ([]domain.Activity, error) {
	identity, err := a.store.ReadIdentityById(person.IdentityId)
	if err != nil {
		return nil, err
	}
	return a.store.ReadMentionsFor(identity.CanonicalAcct(), identity.Id)
}

// Replies lists posts targeting an activity the person authored.
func (a *Aggregator) Replies(person *domain.Person) ([]domain.Activity, error) {
	return a.store.ReadRepliesTo(person.IdentityId)
}

// Favorites lists activities the person marked via the favorites edge.
func (a *Aggregator) Favorites(person *domain.Person) ([]domain.Activity, error) {
	return a.store.ReadFavoritesOf(person.Id)
}

// Shared lists activities the person marked via the shares edge.
func (a *Aggregator) Shared(person *domain.Person) ([]domain.Activity, error) {
	return a.store.ReadSharesOf(person.Id)
}

// Following and Followers are the raw edge sets, ordered by edge insertion,
// not by activity time.

func (a *Aggregator) Following(person *domain.Person) ([]domain.Identity, error) {
	return a.store.ReadFollowing(person.IdentityId)
}

func (a *Aggregator) Followers(person *domain.Person) ([]domain.Identity, error) {
	return a.store.ReadFollowers(person.IdentityId)
}
