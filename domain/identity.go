package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	FALSE dbBool = iota
	TRUE
)

type dbBool uint

// Identity is a resolvable handle for a person, local or remote. The pair
// (Username, Domain) is unique under case-insensitive comparison. Identities
// are created on first discovery or local registration and never deleted;
// only the endpoint metadata is refreshed afterwards.
type Identity struct {
	Id                    uuid.UUID
	Username              string
	Domain                string
	PublicKeyPem          string
	SalmonEndpoint        string
	DialbackEndpoint      string
	ActivityInboxEndpoint string
	ProfilePage           string
	OutboxId              string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Acct returns the identifier in display case, e.g. "WilkiE@rstat.us".
func (i *Identity) Acct() string {
	return fmt.Sprintf("%s@%s", i.Username, i.Domain)
}

// CanonicalAcct returns the lower-cased identifier used for comparisons.
func (i *Identity) CanonicalAcct() string {
	return strings.ToLower(i.Acct())
}

// Person is a local account. It owns one Identity and one Feed and issues
// follow/favorite/share/post actions.
type Person struct {
	Id             uuid.UUID
	Username       string
	IdentityId     uuid.UUID
	FeedId         uuid.UUID
	Publickey      string
	WebPublicKey   string
	WebPrivateKey  string
	FirstTimeLogin dbBool
	CreatedAt      time.Time
}

func (p *Person) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tUsername: %s \n\tCREATED_AT: %s)", p.Id, p.Username, p.CreatedAt)
}
