package feeds

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/graylingsocial/grayling/db"
	"github.com/graylingsocial/grayling/domain"
	"github.com/graylingsocial/grayling/federation"
	"github.com/graylingsocial/grayling/util"
)

// Pinger notifies a subscription hub that a feed changed. Implementations
// are fire-and-forget; the service never waits on them.
type Pinger interface {
	Notify(hubUrl, feedUrl string)
}

// Service owns feed mutation: posting, reposting and metadata merges. Every
// change to a local feed ends with a hub ping.
type Service struct {
	store  *db.DB
	conf   *util.AppConfig
	pinger Pinger
}

func NewService(store *db.DB, conf *util.AppConfig, pinger Pinger) *Service {
	return &Service{store: store, conf: conf, pinger: pinger}
}

// Post materializes a new local activity and appends it to the person's
// feed. Mentions are extracted from the content.
func (s *Service) Post(person *domain.Person, objectType, title, content string) (*domain.Activity, error) {
	id := uuid.New()
	now := time.Now()

	activity := &domain.Activity{
		Id:         id,
		Url:        fmt.Sprintf("%s/activities/%s", s.conf.SiteRoot(), id),
		Verb:       domain.VerbPost,
		ActorId:    person.IdentityId,
		ObjectType: objectType,
		Title:      title,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	mentions := federation.CanonicalMentions(util.ExtractMentions(content))
	if err := s.store.CreateActivity(activity, mentions); err != nil {
		return nil, err
	}

	if err := s.store.AppendFeedEntry(person.FeedId, activity.Id); err != nil {
		return nil, err
	}

	s.pingFeedHubs(person.FeedId)
	return activity, nil
}

// Reply posts a note in reply to another activity.
func (s *Service) Reply(person *domain.Person, content, targetUrl string) (*domain.Activity, error) {
	id := uuid.New()
	now := time.Now()

	activity := &domain.Activity{
		Id:         id,
		Url:        fmt.Sprintf("%s/activities/%s", s.conf.SiteRoot(), id),
		Verb:       domain.VerbPost,
		ActorId:    person.IdentityId,
		ObjectType: domain.ObjectNote,
		Content:    content,
		TargetUrl:  targetUrl,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	mentions := federation.CanonicalMentions(util.ExtractMentions(content))
	if err := s.store.CreateActivity(activity, mentions); err != nil {
		return nil, err
	}

	if err := s.store.AppendFeedEntry(person.FeedId, activity.Id); err != nil {
		return nil, err
	}

	s.pingFeedHubs(person.FeedId)
	return activity, nil
}

// Repost appends an existing activity to the person's own feed. Appending
// the same activity twice is a no-op.
func (s *Service) Repost(person *domain.Person, activity *domain.Activity) error {
	if err := s.store.AppendFeedEntry(person.FeedId, activity.Id); err != nil {
		return err
	}
	s.pingFeedHubs(person.FeedId)
	return nil
}

// Merge refreshes a stored feed's scalar metadata from a freshly fetched
// copy. Entries are never replaced wholesale; they are reconciled per item
// as notifications arrive.
func (s *Service) Merge(feedId uuid.UUID, fresh *domain.Feed) (*domain.Feed, error) {
	feed, err := s.store.ReadFeedById(feedId)
	if err != nil {
		return nil, err
	}

	feed.Title = fresh.Title
	feed.Subtitle = fresh.Subtitle
	feed.Icon = fresh.Icon
	feed.Logo = fresh.Logo
	feed.Generator = fresh.Generator
	feed.Rights = fresh.Rights
	if len(fresh.Hubs) > 0 {
		feed.Hubs = fresh.Hubs
	}
	if fresh.SalmonUrl != "" {
		feed.SalmonUrl = fresh.SalmonUrl
	}
	feed.UpdatedAt = time.Now()

	if err := s.store.UpdateFeedMeta(feed); err != nil {
		return nil, err
	}
	return feed, nil
}

// EnsureRemoteFeed returns the mirrored feed for a remote identity,
// creating a minimal one when discovery did not advertise any.
func (s *Service) EnsureRemoteFeed(identity *domain.Identity) (*domain.Feed, error) {
	feed, err := s.store.ReadFeedByIdentityId(identity.Id)
	if err != nil {
		return nil, err
	}
	if feed != nil {
		return feed, nil
	}

	now := time.Now()
	feed = &domain.Feed{
		Id:                 uuid.New(),
		Url:                identity.OutboxId,
		IdentityId:         identity.Id,
		Title:              identity.Acct(),
		SalmonUrl:          identity.SalmonEndpoint,
		SubscriptionSecret: util.RandomString(32),
		VerificationToken:  util.RandomString(16),
		Remote:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if feed.Url == "" {
		feed.Url = identity.ProfilePage
	}

	if err := s.store.CreateFeed(feed); err != nil {
		return nil, err
	}
	return feed, nil
}

// pingFeedHubs notifies the feed's own hubs plus the globally configured
// ones. Best effort only.
func (s *Service) pingFeedHubs(feedId uuid.UUID) {
	if s.pinger == nil {
		return
	}

	feed, err := s.store.ReadFeedById(feedId)
	if err != nil {
		log.Printf("Feeds: could not load feed %s for hub ping: %v", feedId, err)
		return
	}

	seen := make(map[string]bool)
	for _, hub := range append(append([]string{}, feed.Hubs...), s.conf.Conf.Hubs...) {
		if hub == "" || seen[hub] {
			continue
		}
		seen[hub] = true
		s.pinger.Notify(hub, feed.Url)
	}
}
