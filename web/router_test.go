package web

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graylingsocial/grayling/db"
	"github.com/graylingsocial/grayling/domain"
	"github.com/graylingsocial/grayling/federation"
	"github.com/graylingsocial/grayling/feeds"
	"github.com/graylingsocial/grayling/social"
	"github.com/graylingsocial/grayling/util"
)

type stubCodec struct {
	notifications map[string]*domain.Notification
}

func (c *stubCodec) Parse(raw []byte) (*domain.Notification, error) {
	n, ok := c.notifications[string(raw)]
	if !ok {
		return nil, domain.ErrParseFailure
	}
	return n, nil
}

type stubVerifier struct {
	ok bool
}

func (v *stubVerifier) Verify(n *domain.Notification) bool {
	return v.ok
}

type stubDiscovery struct {
	data *federation.IdentityData
}

func (s *stubDiscovery) DiscoverIdentity(username, domainName string) (*federation.IdentityData, error) {
	return s.data, nil
}

type serverFixture struct {
	store     *db.DB
	engine    *gin.Engine
	codec     *stubCodec
	verifier  *stubVerifier
	discovery *stubDiscovery
	person    *domain.Person
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := database.CreateSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	conf := &util.AppConfig{}
	conf.Conf.Host = "example.com"
	conf.Conf.HttpPort = 8080
	conf.Conf.Hubs = []string{"https://hub.example.com/"}

	person, err := database.CreatePerson("alice", "example.com", "test-key-hash")
	if err != nil {
		t.Fatalf("Failed to create person: %v", err)
	}

	discovery := &stubDiscovery{data: &federation.IdentityData{
		Username:       "bob",
		Domain:         "rstat.us",
		PublicKeyPem:   "pem",
		SalmonEndpoint: "https://rstat.us/people/bob/salmon",
		ProfilePage:    "https://rstat.us/users/bob",
	}}
	resolver := federation.NewResolver(database, discovery)
	codec := &stubCodec{notifications: map[string]*domain.Notification{}}
	verifier := &stubVerifier{ok: true}

	service := feeds.NewService(database, conf, nil)
	graph := social.NewGraph(database, service, conf, nil)
	processor := federation.NewProcessor(database, resolver, codec, verifier, graph)
	aggregator := feeds.NewAggregator(database)

	server := NewServer(conf, database, resolver, processor, graph, service, aggregator)

	return &serverFixture{
		store:     database,
		engine:    server.engine(),
		codec:     codec,
		verifier:  verifier,
		discovery: discovery,
		person:    person,
	}
}

func (f *serverFixture) salmon(body string, n *domain.Notification) *httptest.ResponseRecorder {
	if n != nil {
		if n.Published.IsZero() {
			n.Published = time.Now()
		}
		f.codec.notifications[body] = n
	}
	req := httptest.NewRequest("POST", "/people/alice/salmon", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/magic-envelope+xml")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestSalmonOutcomeStatuses(t *testing.T) {
	f := newServerFixture(t)

	created := f.salmon("payload-1", &domain.Notification{
		Url:     "https://rstat.us/activities/1",
		Verb:    domain.VerbPost,
		Actor:   "bob@rstat.us",
		Content: "first delivery",
	})
	if created.Code != http.StatusAccepted {
		t.Errorf("Expected 202 for a new activity, got %d", created.Code)
	}
	if created.Header().Get("Location") != "https://rstat.us/activities/1" {
		t.Errorf("Expected the activity url as Location, got '%s'", created.Header().Get("Location"))
	}

	updated := f.salmon("payload-2", &domain.Notification{
		Url:     "https://rstat.us/activities/1",
		Verb:    domain.VerbPost,
		Actor:   "bob@rstat.us",
		Content: "edited",
	})
	if updated.Code != http.StatusOK {
		t.Errorf("Expected 200 for a redelivered url, got %d", updated.Code)
	}

	f.verifier.ok = false
	forged := f.salmon("payload-3", &domain.Notification{
		Url:     "https://rstat.us/activities/1",
		Verb:    domain.VerbPost,
		Actor:   "bob@rstat.us",
		Content: "defaced",
	})
	if forged.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for an unverified update, got %d", forged.Code)
	}

	unverifiedNew := f.salmon("payload-4", &domain.Notification{
		Url:     "https://rstat.us/activities/2",
		Verb:    domain.VerbPost,
		Actor:   "bob@rstat.us",
		Content: "never seen before",
	})
	if unverifiedNew.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unverifiable new notification, got %d", unverifiedNew.Code)
	}

	f.verifier.ok = true
	garbage := f.salmon("garbage", nil)
	if garbage.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unparseable payload, got %d", garbage.Code)
	}
}

func TestSalmonUnknownPerson(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest("POST", "/people/nobody/salmon", strings.NewReader("x"))
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown person, got %d", w.Code)
	}
}

func TestWebfingerLocalPerson(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest("GET", "/.well-known/webfinger?resource=acct:alice@example.com", nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/jrd+json") {
		t.Errorf("Expected JRD content type, got '%s'", ct)
	}

	var doc struct {
		Subject string `json:"subject"`
		Links   []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("Response is not valid JSON: %v", err)
	}
	if doc.Subject != "acct:alice@example.com" {
		t.Errorf("Expected subject 'acct:alice@example.com', got '%s'", doc.Subject)
	}

	rels := make(map[string]string)
	for _, link := range doc.Links {
		rels[link.Rel] = link.Href
	}
	if rels["salmon"] == "" {
		t.Error("Expected a salmon link")
	}
	if !strings.HasPrefix(rels["magic-public-key"], "data:application/magic-public-key,RSA.") {
		t.Errorf("Expected a magic key data uri, got '%s'", rels["magic-public-key"])
	}
	if rels["hub"] != "https://hub.example.com/" {
		t.Errorf("Expected the configured hub link, got '%s'", rels["hub"])
	}
}

func TestWebfingerRejectsForeignDomain(t *testing.T) {
	f := newServerFixture(t)

	for _, resource := range []string{
		"acct:alice@elsewhere.example",
		"acct:unknown@example.com",
		"not-an-identifier",
		"",
	} {
		req := httptest.NewRequest("GET", "/.well-known/webfinger?resource="+resource, nil)
		w := httptest.NewRecorder()
		f.engine.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for resource %q, got %d", resource, w.Code)
		}
	}
}

func TestHostMeta(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest("GET", "/.well-known/host-meta", nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "lrdd") {
		t.Errorf("Expected an lrdd template, got: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "/.well-known/webfinger?resource={uri}") {
		t.Errorf("Expected the webfinger template, got: %s", w.Body.String())
	}
}

func TestPostActivity(t *testing.T) {
	f := newServerFixture(t)

	body, _ := json.Marshal(map[string]string{"content": "hello world"})
	req := httptest.NewRequest("POST", "/people/alice/activities", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Location") == "" {
		t.Error("Expected a Location header on the created activity")
	}

	feedActivities, err := f.store.ReadFeedActivities(f.person.FeedId)
	if err != nil {
		t.Fatalf("Failed to read feed: %v", err)
	}
	if len(feedActivities) != 1 || feedActivities[0].Content != "hello world" {
		t.Errorf("Expected the post in the person's feed, got %v", feedActivities)
	}
}

func TestPostActivityRequiresContent(t *testing.T) {
	f := newServerFixture(t)

	body, _ := json.Marshal(map[string]string{"title": "no content"})
	req := httptest.NewRequest("POST", "/people/alice/activities", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an empty post, got %d", w.Code)
	}
}

func TestFollowViaApi(t *testing.T) {
	f := newServerFixture(t)

	body, _ := json.Marshal(map[string]string{"identifier": "bob@rstat.us"})
	req := httptest.NewRequest("POST", "/people/alice/following", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	listReq := httptest.NewRequest("GET", "/people/alice/following", nil)
	listW := httptest.NewRecorder()
	f.engine.ServeHTTP(listW, listReq)
	if listW.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", listW.Code)
	}
	if !strings.Contains(listW.Body.String(), "bob@rstat.us") {
		t.Errorf("Expected bob@rstat.us in the following list, got: %s", listW.Body.String())
	}
}

func TestProfileEditSanitizesPayload(t *testing.T) {
	f := newServerFixture(t)

	body, _ := json.Marshal(map[string]any{
		"salmon_endpoint": "https://example.com/people/alice/salmon-v2",
		"_id":             "attacker-controlled",
		"admin":           true,
	})
	req := httptest.NewRequest("PUT", "/people/alice", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", w.Code, w.Body.String())
	}

	identity, err := f.store.ReadIdentityById(f.person.IdentityId)
	if err != nil {
		t.Fatalf("Failed to read identity: %v", err)
	}
	if identity.SalmonEndpoint != "https://example.com/people/alice/salmon-v2" {
		t.Errorf("Expected the salmon endpoint to be updated, got '%s'", identity.SalmonEndpoint)
	}
}

func TestFeedProjectionRendersAtom(t *testing.T) {
	f := newServerFixture(t)

	postBody, _ := json.Marshal(map[string]string{"content": "atom me"})
	postReq := httptest.NewRequest("POST", "/people/alice/activities", bytes.NewReader(postBody))
	postReq.Header.Set("Content-Type", "application/json")
	postW := httptest.NewRecorder()
	f.engine.ServeHTTP(postW, postReq)
	if postW.Code != http.StatusCreated {
		t.Fatalf("Setup post failed: %d", postW.Code)
	}

	req := httptest.NewRequest("GET", "/people/alice/feed", nil)
	req.Header.Set("Accept-Encoding", "identity")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/atom+xml") {
		t.Errorf("Expected atom content type, got '%s'", ct)
	}
	if !strings.Contains(w.Body.String(), "atom me") {
		t.Errorf("Expected the post content in the atom feed, got: %s", w.Body.String())
	}
}

func TestSalmonTransportSignature(t *testing.T) {
	f := newServerFixture(t)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	f.discovery.data.PublicKeyPem = string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	}))

	raw := "signed-payload"
	f.codec.notifications[raw] = &domain.Notification{
		Url:       "https://rstat.us/activities/signed-1",
		Verb:      domain.VerbPost,
		Actor:     "bob@rstat.us",
		Content:   "signed delivery",
		Published: time.Now(),
	}

	signedRequest := func(signingKey *rsa.PrivateKey) *http.Request {
		req := httptest.NewRequest("POST", "/people/alice/salmon", strings.NewReader(raw))
		req.Header.Set("Content-Type", "application/magic-envelope+xml")
		req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
		digest := sha256.Sum256([]byte(raw))
		req.Header.Set("Digest", "SHA-256="+base64.StdEncoding.EncodeToString(digest[:]))
		if err := federation.SignRequest(req, signingKey, "https://rstat.us/users/bob#main-key"); err != nil {
			t.Fatalf("Failed to sign request: %v", err)
		}
		return req
	}

	valid := httptest.NewRecorder()
	f.engine.ServeHTTP(valid, signedRequest(key))
	if valid.Code != http.StatusAccepted {
		t.Fatalf("Expected 202 for a correctly signed delivery, got %d: %s", valid.Code, valid.Body.String())
	}

	wrongKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	forged := httptest.NewRecorder()
	f.engine.ServeHTTP(forged, signedRequest(wrongKey))
	if forged.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a delivery signed with the wrong key, got %d", forged.Code)
	}

	stored, _ := f.store.ReadActivityByUrl("https://rstat.us/activities/signed-1")
	if stored == nil || stored.Content != "signed delivery" {
		t.Errorf("Expected only the verified delivery persisted, got %+v", stored)
	}
}

func TestFavoriteThenUnfavorite(t *testing.T) {
	f := newServerFixture(t)

	postBody, _ := json.Marshal(map[string]string{"content": "mark me"})
	postReq := httptest.NewRequest("POST", "/people/alice/activities", bytes.NewReader(postBody))
	postReq.Header.Set("Content-Type", "application/json")
	postW := httptest.NewRecorder()
	f.engine.ServeHTTP(postW, postReq)
	if postW.Code != http.StatusCreated {
		t.Fatalf("Setup post failed: %d", postW.Code)
	}

	var created struct {
		Id string `json:"id"`
	}
	if err := json.Unmarshal(postW.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to decode post response: %v", err)
	}

	markBody, _ := json.Marshal(map[string]string{"activityId": created.Id})
	markReq := httptest.NewRequest("POST", "/people/alice/favorites", bytes.NewReader(markBody))
	markReq.Header.Set("Content-Type", "application/json")
	markW := httptest.NewRecorder()
	f.engine.ServeHTTP(markW, markReq)
	if markW.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 for favorite, got %d", markW.Code)
	}

	favorites, err := f.store.ReadFavoritesOf(f.person.Id)
	if err != nil || len(favorites) != 1 {
		t.Fatalf("Expected one favorite, got %v err=%v", favorites, err)
	}

	unmarkReq := httptest.NewRequest("DELETE", "/people/alice/favorites/"+created.Id, nil)
	unmarkW := httptest.NewRecorder()
	f.engine.ServeHTTP(unmarkW, unmarkReq)
	if unmarkW.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 for unfavorite, got %d", unmarkW.Code)
	}

	favorites, err = f.store.ReadFavoritesOf(f.person.Id)
	if err != nil || len(favorites) != 0 {
		t.Errorf("Expected no favorites after removal, got %v err=%v", favorites, err)
	}

	// Removing again stays a no-op.
	againW := httptest.NewRecorder()
	f.engine.ServeHTTP(againW, httptest.NewRequest("DELETE", "/people/alice/favorites/"+created.Id, nil))
	if againW.Code != http.StatusNoContent {
		t.Errorf("Expected unfavorite to be idempotent, got %d", againW.Code)
	}
}

func TestUnshareKeepsFeedEntry(t *testing.T) {
	f := newServerFixture(t)

	postBody, _ := json.Marshal(map[string]string{"content": "share me"})
	postReq := httptest.NewRequest("POST", "/people/alice/activities", bytes.NewReader(postBody))
	postReq.Header.Set("Content-Type", "application/json")
	postW := httptest.NewRecorder()
	f.engine.ServeHTTP(postW, postReq)
	if postW.Code != http.StatusCreated {
		t.Fatalf("Setup post failed: %d", postW.Code)
	}

	var created struct {
		Id string `json:"id"`
	}
	if err := json.Unmarshal(postW.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to decode post response: %v", err)
	}

	markBody, _ := json.Marshal(map[string]string{"activityId": created.Id})
	markReq := httptest.NewRequest("POST", "/people/alice/shared", bytes.NewReader(markBody))
	markReq.Header.Set("Content-Type", "application/json")
	markW := httptest.NewRecorder()
	f.engine.ServeHTTP(markW, markReq)
	if markW.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 for share, got %d", markW.Code)
	}

	unmarkW := httptest.NewRecorder()
	f.engine.ServeHTTP(unmarkW, httptest.NewRequest("DELETE", "/people/alice/shared/"+created.Id, nil))
	if unmarkW.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 for unshare, got %d", unmarkW.Code)
	}

	shares, err := f.store.ReadSharesOf(f.person.Id)
	if err != nil || len(shares) != 0 {
		t.Errorf("Expected no shares after removal, got %v err=%v", shares, err)
	}

	// The repost into the person's own feed is not rolled back.
	feedActivities, err := f.store.ReadFeedActivities(f.person.FeedId)
	if err != nil {
		t.Fatalf("Failed to read feed: %v", err)
	}
	if len(feedActivities) != 1 {
		t.Errorf("Expected the feed entry to survive unshare, got %v", feedActivities)
	}
}
