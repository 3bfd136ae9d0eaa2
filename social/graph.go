package social

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/graylingsocial/grayling/db"
	"github.com/graylingsocial/grayling/domain"
	"github.com/graylingsocial/grayling/feeds"
	"github.com/graylingsocial/grayling/util"
)

// Notifier delivers a local activity to a remote identity. Optional; a nil
// notifier turns outbound delivery into a no-op.
type Notifier interface {
	Deliver(person *domain.Person, actor *domain.Identity, activity *domain.Activity, remote *domain.Identity) error
}

// Graph holds the social edges a person issues or receives: follows,
// favorites, shares. All edge operations are idempotent sets; adding an
// existing edge or removing a missing one is a no-op, never an error.
type Graph struct {
	store    *db.DB
	feeds    *feeds.Service
	conf     *util.AppConfig
	notifier Notifier
}

func NewGraph(store *db.DB, feedsService *feeds.Service, conf *util.AppConfig, notifier Notifier) *Graph {
	return &Graph{store: store, feeds: feedsService, conf: conf, notifier: notifier}
}

// Follow adds the outbound edge, mirrors the remote feed for subscription,
// records the follow activity and slaps the remote salmon endpoint.
func (g *Graph) Follow(person *domain.Person, identity *domain.Identity) error {
	if err := g.store.AddFollow(person.IdentityId, identity.Id); err != nil {
		return err
	}

	if _, err := g.feeds.EnsureRemoteFeed(identity); err != nil {
		return err
	}

	activity, err := g.recordEdgeActivity(person, domain.VerbFollow, identity)
	if err != nil {
		return err
	}

	g.deliver(person, activity, identity)
	log.Printf("Graph: %s now follows %s", person.Username, identity.Acct())
	return nil
}

// Unfollow removes the edge. Removing an edge that was never there
// succeeds quietly.
func (g *Graph) Unfollow(person *domain.Person, identity *domain.Identity) error {
	if err := g.store.RemoveFollow(person.IdentityId, identity.Id); err != nil {
		return err
	}

	activity, err := g.recordEdgeActivity(person, domain.VerbUnfollow, identity)
	if err != nil {
		return err
	}

	g.deliver(person, activity, identity)
	log.Printf("Graph: %s unfollowed %s", person.Username, identity.Acct())
	return nil
}

// UnfollowById accepts a raw identity id instead of a resolved identity.
func (g *Graph) UnfollowById(person *domain.Person, identityId uuid.UUID) error {
	identity, err := g.store.ReadIdentityById(identityId)
	if err != nil {
		return err
	}
	return g.Unfollow(person, identity)
}

// Favorite marks an activity. Idempotent.
func (g *Graph) Favorite(person *domain.Person, activity *domain.Activity) error {
	return g.store.AddFavorite(person.Id, activity.Id)
}

// Unfavorite removes the mark. Idempotent.
func (g *Graph) Unfavorite(person *domain.Person, activity *domain.Activity) error {
	return g.store.RemoveFavorite(person.Id, activity.Id)
}

// Share marks an activity and reposts it into the person's own feed.
func (g *Graph) Share(person *domain.Person, activity *domain.Activity) error {
	if err := g.store.AddShare(person.Id, activity.Id); err != nil {
		return err
	}
	return g.feeds.Repost(person, activity)
}

// Unshare removes the mark. The repost stays in the feed; feeds keep
// insertion history.
func (g *Graph) Unshare(person *domain.Person, activity *domain.Activity) error {
	return g.store.RemoveShare(person.Id, activity.Id)
}

// FollowedBy applies the inbound side of a remote follow: the remote
// identity becomes a follower of the local person.
func (g *Graph) FollowedBy(person *domain.Person, follower *domain.Identity) error {
	return g.store.AddFollow(follower.Id, person.IdentityId)
}

// UnfollowedBy applies the inbound side of a remote unfollow.
func (g *Graph) UnfollowedBy(person *domain.Person, follower *domain.Identity) error {
	return g.store.RemoveFollow(follower.Id, person.IdentityId)
}

// recordEdgeActivity persists the follow/unfollow as an activity in the
// person's own feed, so the edge change federates like any other action.
func (g *Graph) recordEdgeActivity(person *domain.Person, verb domain.Verb, target *domain.Identity) (*domain.Activity, error) {
	id := uuid.New()
	now := time.Now()

	activity := &domain.Activity{
		Id:        id,
		Url:       fmt.Sprintf("%s/activities/%s", g.conf.SiteRoot(), id),
		Verb:      verb,
		ActorId:   person.IdentityId,
		TargetUrl: target.ProfilePage,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if activity.TargetUrl == "" {
		activity.TargetUrl = "acct:" + target.Acct()
	}

	if err := g.store.CreateActivity(activity, nil); err != nil {
		return nil, err
	}
	if err := g.store.AppendFeedEntry(person.FeedId, activity.Id); err != nil {
		return nil, err
	}
	return activity, nil
}

// deliver slaps the remote identity, if there is anything remote to slap.
func (g *Graph) deliver(person *domain.Person, activity *domain.Activity, remote *domain.Identity) {
	if g.notifier == nil || remote.Domain == g.conf.Domain() {
		return
	}

	actor, err := g.store.ReadIdentityById(person.IdentityId)
	if err != nil {
		log.Printf("Graph: could not load actor identity for delivery: %v", err)
		return
	}

	go func() {
		if err := g.notifier.Deliver(person, actor, activity, remote); err != nil {
			log.Printf("Graph: delivery to %s failed: %v", remote.Acct(), err)
		}
	}()
}
