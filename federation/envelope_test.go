package federation

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/graylingsocial/grayling/domain"
)

type fixedKeySource struct {
	key *rsa.PublicKey
	err error
}

func (f *fixedKeySource) PublicKeyFor(actor string) (*rsa.PublicKey, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.key, nil
}

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate test key: %v", err)
	}
	return key
}

func TestSealParseRoundTrip(t *testing.T) {
	key := testKey(t)
	codec := NewMagicCodec()

	original := &domain.Notification{
		Url:        "https://example.com/activities/1",
		Verb:       domain.VerbPost,
		Actor:      "alice@example.com",
		ObjectType: domain.ObjectNote,
		Title:      "a note",
		Content:    "hello @bob@rstat.us",
		Published:  time.Now().Truncate(time.Second),
	}

	raw, err := codec.Seal(original, key, "https://example.com/users/alice#main-key")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if !strings.Contains(string(raw), "me:env") {
		t.Errorf("Expected a magic envelope, got: %s", raw)
	}

	parsed, err := codec.Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if parsed.Url != original.Url {
		t.Errorf("Expected url '%s', got '%s'", original.Url, parsed.Url)
	}
	if parsed.Verb != domain.VerbPost {
		t.Errorf("Expected verb post, got '%s'", parsed.Verb)
	}
	if parsed.Actor != "alice@example.com" {
		t.Errorf("Expected actor 'alice@example.com', got '%s'", parsed.Actor)
	}
	if parsed.Content != original.Content {
		t.Errorf("Expected content to survive the round trip, got '%s'", parsed.Content)
	}
	if len(parsed.Mentions) != 1 || parsed.Mentions[0] != "bob@rstat.us" {
		t.Errorf("Expected inline mention of bob@rstat.us, got %v", parsed.Mentions)
	}
	if parsed.Envelope == nil {
		t.Fatal("Expected signature material on the parsed notification")
	}
	if parsed.Envelope.KeyId != "https://example.com/users/alice#main-key" {
		t.Errorf("Expected key id to survive, got '%s'", parsed.Envelope.KeyId)
	}
}

func TestVerifySealedEnvelope(t *testing.T) {
	key := testKey(t)
	codec := NewMagicCodec()

	raw, err := codec.Seal(&domain.Notification{
		Url:       "https://example.com/activities/1",
		Verb:      domain.VerbPost,
		Actor:     "alice@example.com",
		Content:   "signed content",
		Published: time.Now(),
	}, key, "")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	parsed, err := codec.Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	verifier := NewMagicVerifier(&fixedKeySource{key: &key.PublicKey})
	if !verifier.Verify(parsed) {
		t.Error("Expected a correctly signed envelope to verify")
	}

	wrongKey := testKey(t)
	verifier = NewMagicVerifier(&fixedKeySource{key: &wrongKey.PublicKey})
	if verifier.Verify(parsed) {
		t.Error("An envelope must not verify against the wrong key")
	}

	verifier = NewMagicVerifier(&fixedKeySource{err: errors.New("unknown actor")})
	if verifier.Verify(parsed) {
		t.Error("An envelope must not verify when the actor key cannot be resolved")
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	key := testKey(t)
	codec := NewMagicCodec()

	raw, err := codec.Seal(&domain.Notification{
		Url:       "https://example.com/activities/1",
		Verb:      domain.VerbPost,
		Actor:     "alice@example.com",
		Content:   "original",
		Published: time.Now(),
	}, key, "")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	parsed, err := codec.Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	parsed.Envelope.Data = append([]byte{}, parsed.Envelope.Data...)
	parsed.Envelope.Data[0] ^= 1

	verifier := NewMagicVerifier(&fixedKeySource{key: &key.PublicKey})
	if verifier.Verify(parsed) {
		t.Error("A tampered payload must not verify")
	}
}

func TestParseMalformed(t *testing.T) {
	codec := NewMagicCodec()

	inputs := []string{
		"not xml at all",
		`<?xml version="1.0"?><me:env xmlns:me="http://salmon-protocol.org/ns/magic-env"><me:data type="application/atom+xml">!!!not-base64!!!</me:data><me:encoding>base64url</me:encoding><me:alg>RSA-SHA256</me:alg><me:sig>c2ln</me:sig></me:env>`,
		`<?xml version="1.0"?><me:env xmlns:me="http://salmon-protocol.org/ns/magic-env"><me:data type="application/atom+xml">PGVudHJ5Lz4</me:data><me:encoding>base32</me:encoding><me:alg>RSA-SHA256</me:alg><me:sig>c2ln</me:sig></me:env>`,
	}

	for _, input := range inputs {
		_, err := codec.Parse([]byte(input))
		if !errors.Is(err, domain.ErrParseFailure) {
			t.Errorf("Expected ErrParseFailure for %q, got %v", input, err)
		}
	}
}

func TestParseVerbUri(t *testing.T) {
	tests := []struct {
		uri  string
		verb domain.Verb
	}{
		{"http://activitystrea.ms/schema/1.0/post", domain.VerbPost},
		{"http://activitystrea.ms/schema/1.0/follow", domain.VerbFollow},
		{"http://ostatus.org/schema/1.0/unfollow", domain.VerbUnfollow},
		{"http://activitystrea.ms/schema/1.0/favorite", domain.VerbFavorite},
		{"http://activitystrea.ms/schema/1.0/share", domain.VerbShare},
		{"post", domain.VerbPost},
	}

	for _, tt := range tests {
		verb, err := parseVerbUri(tt.uri)
		if err != nil {
			t.Errorf("parseVerbUri(%q) failed: %v", tt.uri, err)
			continue
		}
		if verb != tt.verb {
			t.Errorf("parseVerbUri(%q) = %q, expected %q", tt.uri, verb, tt.verb)
		}
	}

	if _, err := parseVerbUri("http://activitystrea.ms/schema/1.0/poke"); !errors.Is(err, domain.ErrParseFailure) {
		t.Errorf("Expected ErrParseFailure for unknown verb, got %v", err)
	}
	if _, err := parseVerbUri(""); !errors.Is(err, domain.ErrParseFailure) {
		t.Errorf("Expected ErrParseFailure for empty verb, got %v", err)
	}
}
