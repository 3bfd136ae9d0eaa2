package federation

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/graylingsocial/grayling/db"
	"github.com/graylingsocial/grayling/domain"
	"github.com/graylingsocial/grayling/util"
)

// Resolver looks up identities locally and falls back to the discovery
// client for unknown remote identifiers. Discovery is never repeated for a
// known identity.
type Resolver struct {
	store  *db.DB
	client DiscoveryClient
}

func NewResolver(store *db.DB, client DiscoveryClient) *Resolver {
	return &Resolver{store: store, client: client}
}

// FindByIdentifier normalizes the raw identifier and performs a
// case-insensitive lookup. Returns nil without error when no identity is
// stored for it.
func (r *Resolver) FindByIdentifier(raw string) (*domain.Identity, error) {
	username, domainName, err := NormalizeIdentifier(raw)
	if err != nil {
		return nil, err
	}
	return r.store.ReadIdentityByAcct(username, domainName)
}

// Discover returns the stored identity for an identifier, fetching and
// persisting it via the discovery client when it is unknown. A failed
// discovery persists nothing.
func (r *Resolver) Discover(raw string) (*domain.Identity, error) {
	username, domainName, err := NormalizeIdentifier(raw)
	if err != nil {
		return nil, err
	}

	identity, err := r.store.ReadIdentityByAcct(username, domainName)
	if err != nil {
		return nil, err
	}
	if identity != nil {
		return identity, nil
	}

	data, err := r.client.DiscoverIdentity(username, domainName)
	if err != nil {
		return nil, fmt.Errorf("discover %s@%s: %w: %v", username, domainName, domain.ErrDiscoveryFailed, err)
	}

	now := time.Now()
	identity = &domain.Identity{
		Id:                    uuid.New(),
		Username:              data.Username,
		Domain:                data.Domain,
		PublicKeyPem:          data.PublicKeyPem,
		SalmonEndpoint:        data.SalmonEndpoint,
		DialbackEndpoint:      data.DialbackEndpoint,
		ActivityInboxEndpoint: data.ActivityInboxEndpoint,
		ProfilePage:           data.ProfilePage,
		OutboxId:              data.OutboxId,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := r.store.CreateIdentity(identity); err != nil {
		// A concurrent discovery may have won the insert; the stored row
		// is then the canonical one.
		stored, readErr := r.store.ReadIdentityByAcct(username, domainName)
		if readErr == nil && stored != nil {
			return stored, nil
		}
		return nil, err
	}

	if data.FeedUrl != "" {
		if err := r.ensureRemoteFeed(identity, data); err != nil {
			log.Printf("Discovery: could not mirror feed for %s: %v", identity.Acct(), err)
		}
	}

	log.Printf("Discovery: resolved %s", identity.Acct())
	return identity, nil
}

// ensureRemoteFeed records the remote feed advertised by a discovery
// document so subscriptions can reference it later.
func (r *Resolver) ensureRemoteFeed(identity *domain.Identity, data *IdentityData) error {
	existing, err := r.store.ReadFeedByUrl(data.FeedUrl)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	now := time.Now()
	feed := &domain.Feed{
		Id:                 uuid.New(),
		Url:                data.FeedUrl,
		IdentityId:         identity.Id,
		Title:              identity.Acct(),
		Hubs:               data.Hubs,
		SalmonUrl:          data.SalmonEndpoint,
		SubscriptionSecret: util.RandomString(32),
		VerificationToken:  util.RandomString(16),
		Remote:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return r.store.CreateFeed(feed)
}

// identityParamKeys is the whitelist used by SanitizeParams. It names the
// Identity attributes a profile edit may touch, nothing else.
var identityParamKeys = map[string]bool{
	"username":                true,
	"domain":                  true,
	"public_key_pem":          true,
	"salmon_endpoint":         true,
	"dialback_endpoint":       true,
	"activity_inbox_endpoint": true,
	"profile_page":            true,
	"outbox_id":               true,
}

// SanitizeParams filters a client-supplied attribute map down to recognized
// Identity attribute names. Keys are normalized to lower-case strings; the
// internal "_id" field and any unrecognized key are dropped. This is a
// security boundary for profile edits.
func SanitizeParams(raw map[string]any) map[string]any {
	clean := make(map[string]any, len(raw))
	for key, value := range raw {
		name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(key), ":"))
		if name == "_id" || name == "id" {
			continue
		}
		if !identityParamKeys[name] {
			continue
		}
		clean[name] = value
	}
	return clean
}
