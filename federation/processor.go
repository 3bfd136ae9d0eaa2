package federation

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"codeberg.org/gruf/go-mutexes"
	"github.com/google/uuid"
	"github.com/graylingsocial/grayling/db"
	"github.com/graylingsocial/grayling/domain"
	"github.com/graylingsocial/grayling/util"
)

// Outcome classifies the result of processing one inbound notification.
type Outcome int

const (
	// OutcomeCreated means the notification materialized a new activity.
	OutcomeCreated Outcome = iota
	// OutcomeUpdated means an activity with the same url already existed
	// and its mutable fields were merged.
	OutcomeUpdated
	// OutcomeRejectedUnverified means an activity with the same url exists
	// but the sender could not prove the right to alter it.
	OutcomeRejectedUnverified
	// OutcomeRejectedMalformed means the payload could not be parsed or,
	// for a new record, could not be verified.
	OutcomeRejectedMalformed
)

// Result is what the transport layer maps onto a response: the outcome, the
// activity's canonical url for the accepted cases, and the failure cause for
// the rejected ones.
type Result struct {
	Outcome  Outcome
	Location string
	Activity *domain.Activity
	Err      error
}

// GraphApplier is the inbound half of the social graph: the effects a
// verified remote notification applies to a local person.
type GraphApplier interface {
	FollowedBy(person *domain.Person, follower *domain.Identity) error
	UnfollowedBy(person *domain.Person, follower *domain.Identity) error
}

// Processor drives an inbound payload through
// parse -> verify -> create-or-update -> apply.
type Processor struct {
	store    *db.DB
	resolver *Resolver
	codec    Codec
	verifier Verifier
	graph    GraphApplier

	// Per-url serialization: the create-vs-update branch is check-then-act,
	// so two deliveries of the same url must not race. Distinct urls
	// proceed concurrently.
	locks mutexes.MutexMap
}

func NewProcessor(store *db.DB, resolver *Resolver, codec Codec, verifier Verifier, graph GraphApplier) *Processor {
	return &Processor{
		store:    store,
		resolver: resolver,
		codec:    codec,
		verifier: verifier,
		graph:    graph,
	}
}

// Process ingests one raw payload addressed to a local person.
func (p *Processor) Process(raw []byte, target *domain.Person) Result {
	notification, err := p.codec.Parse(raw)
	if err != nil {
		log.Printf("Salmon: parse failure: %v", err)
		return Result{Outcome: OutcomeRejectedMalformed, Err: err}
	}

	unlock := p.locks.Lock(notification.Url)
	defer unlock()

	existing, err := p.store.ReadActivityByUrl(notification.Url)
	if err != nil {
		return Result{Outcome: OutcomeRejectedMalformed, Err: err}
	}

	if !p.verifier.Verify(notification) {
		if existing != nil {
			// The record exists; an unverifiable sender has no right to
			// touch it.
			log.Printf("Salmon: unverified update for %s rejected", notification.Url)
			err := fmt.Errorf("update of %s: %w", notification.Url, domain.ErrUnauthorized)
			return Result{Outcome: OutcomeRejectedUnverified, Err: err}
		}
		log.Printf("Salmon: unverified notification for %s rejected", notification.Url)
		err := fmt.Errorf("notification for %s: %w", notification.Url, domain.ErrVerificationFailed)
		return Result{Outcome: OutcomeRejectedMalformed, Err: err}
	}

	actor, err := p.resolver.Discover(notification.Actor)
	if err != nil {
		return Result{Outcome: OutcomeRejectedMalformed, Err: err}
	}

	if existing != nil {
		return p.update(existing, notification, actor, target)
	}
	return p.create(notification, actor, target)
}

// VerifySender checks the transport signature on an inbound delivery. The
// payload names the claimed sender, whose discovered key must validate the
// signature; the signed headers include Digest, which binds the body.
func (p *Processor) VerifySender(req *http.Request, raw []byte) error {
	notification, err := p.codec.Parse(raw)
	if err != nil {
		return err
	}

	actor, err := p.resolver.Discover(notification.Actor)
	if err != nil {
		return err
	}

	if _, err := VerifyRequest(req, actor.PublicKeyPem); err != nil {
		return fmt.Errorf("transport signature from %s: %w", actor.Acct(), err)
	}
	return nil
}

func (p *Processor) create(n *domain.Notification, actor *domain.Identity, target *domain.Person) Result {
	now := time.Now()
	activity := &domain.Activity{
		Id:         uuid.New(),
		Url:        n.Url,
		Verb:       n.Verb,
		ActorId:    actor.Id,
		ObjectType: n.ObjectType,
		Title:      n.Title,
		Content:    n.Content,
		TargetUrl:  n.TargetUrl,
		CreatedAt:  n.Published,
		UpdatedAt:  now,
	}

	if err := p.store.CreateActivity(activity, n.Mentions); err != nil {
		if errors.Is(err, db.ErrDuplicateUrl) {
			// Lost a race to another node's delivery; fall back to the
			// update path against whatever won.
			stored, readErr := p.store.ReadActivityByUrl(n.Url)
			if readErr == nil && stored != nil {
				return p.update(stored, n, actor, target)
			}
		}
		return Result{Outcome: OutcomeRejectedMalformed, Err: err}
	}

	p.apply(activity, actor, target)

	log.Printf("Salmon: created %s %s from %s", activity.Verb, activity.Url, actor.Acct())
	return Result{Outcome: OutcomeCreated, Location: activity.Url, Activity: activity}
}

func (p *Processor) update(existing *domain.Activity, n *domain.Notification, actor *domain.Identity, target *domain.Person) Result {
	if existing.ActorId != actor.Id {
		log.Printf("Salmon: %s tried to alter %s owned by another actor", actor.Acct(), existing.Url)
		err := fmt.Errorf("update of %s by %s: %w", existing.Url, actor.Acct(), domain.ErrUnauthorized)
		return Result{Outcome: OutcomeRejectedUnverified, Err: err}
	}

	// Merge mutable fields only; the url is the record's identity and
	// never changes.
	existing.ObjectType = n.ObjectType
	existing.Title = n.Title
	existing.Content = n.Content
	existing.TargetUrl = n.TargetUrl
	existing.UpdatedAt = time.Now()

	if err := p.store.UpdateActivity(existing); err != nil {
		return Result{Outcome: OutcomeRejectedMalformed, Err: err}
	}

	p.apply(existing, actor, target)

	log.Printf("Salmon: updated %s %s from %s", existing.Verb, existing.Url, actor.Acct())
	return Result{Outcome: OutcomeUpdated, Location: existing.Url, Activity: existing}
}

// apply dispatches the activity's verb onto the local graph and feeds. The
// effects are idempotent, so re-applying on update is harmless.
func (p *Processor) apply(activity *domain.Activity, actor *domain.Identity, target *domain.Person) {
	switch activity.Verb {
	case domain.VerbFollow:
		if err := p.graph.FollowedBy(target, actor); err != nil {
			log.Printf("Salmon: follow side effect failed: %v", err)
		}
	case domain.VerbUnfollow:
		if err := p.graph.UnfollowedBy(target, actor); err != nil {
			log.Printf("Salmon: unfollow side effect failed: %v", err)
		}
	case domain.VerbPost:
		if err := p.appendToActorFeed(activity, actor); err != nil {
			log.Printf("Salmon: feed append failed: %v", err)
		}
	case domain.VerbFavorite, domain.VerbShare:
		// Remote favorite/share markers carry no local graph edge; the
		// activity record itself is the whole effect.
		log.Printf("Salmon: recorded remote %s of %s", activity.Verb, activity.TargetUrl)
	}
}

// appendToActorFeed files a remote post under its author's mirrored feed so
// followers' timelines pick it up. Mention and reply projections read the
// activity record directly and need no extra insertion here.
func (p *Processor) appendToActorFeed(activity *domain.Activity, actor *domain.Identity) error {
	feed, err := p.store.ReadFeedByIdentityId(actor.Id)
	if err != nil {
		return err
	}
	if feed == nil {
		now := time.Now()
		feed = &domain.Feed{
			Id:                 uuid.New(),
			Url:                actor.OutboxId,
			IdentityId:         actor.Id,
			Title:              actor.Acct(),
			SalmonUrl:          actor.SalmonEndpoint,
			SubscriptionSecret: util.RandomString(32),
			VerificationToken:  util.RandomString(16),
			Remote:             true,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if feed.Url == "" {
			feed.Url = activity.Url
		}
		if err := p.store.CreateFeed(feed); err != nil {
			return err
		}
	}
	return p.store.AppendFeedEntry(feed.Id, activity.Id)
}
