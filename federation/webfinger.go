package federation

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/graylingsocial/grayling/util"
)

// IdentityData is the metadata a discovery document yields for a remote
// identity. It carries everything needed to populate an Identity and, when
// the document advertises a feed, to mirror it locally.
type IdentityData struct {
	Username              string
	Domain                string
	PublicKeyPem          string
	SalmonEndpoint        string
	DialbackEndpoint      string
	ActivityInboxEndpoint string
	ProfilePage           string
	OutboxId              string
	FeedUrl               string
	Hubs                  []string
}

// DiscoveryClient resolves an identifier against its home server. The
// resolver never calls it for identities already stored locally.
type DiscoveryClient interface {
	DiscoverIdentity(username, domainName string) (*IdentityData, error)
}

// jrdResponse is the webfinger JSON resource descriptor.
type jrdResponse struct {
	Subject string   `json:"subject"`
	Aliases []string `json:"aliases"`
	Links   []struct {
		Rel  string `json:"rel"`
		Type string `json:"type"`
		Href string `json:"href"`
	} `json:"links"`
}

// WebfingerClient fetches identity metadata from a remote server's
// /.well-known/webfinger endpoint.
type WebfingerClient struct {
	client *http.Client
}

func NewWebfingerClient() *WebfingerClient {
	return &WebfingerClient{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebfingerClient) DiscoverIdentity(username, domainName string) (*IdentityData, error) {
	resource := url.QueryEscape(fmt.Sprintf("acct:%s@%s", username, domainName))
	endpoint := fmt.Sprintf("https://%s/.well-known/webfinger?resource=%s", domainName, resource)

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/jrd+json, application/json")
	req.Header.Set("User-Agent", util.GetNameAndVersion())

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery fetch failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var jrd jrdResponse
	if err := json.Unmarshal(body, &jrd); err != nil {
		return nil, fmt.Errorf("failed to parse discovery JSON: %w", err)
	}

	data := &IdentityData{
		Username: username,
		Domain:   domainName,
	}

	for _, link := range jrd.Links {
		switch link.Rel {
		case "salmon":
			data.SalmonEndpoint = link.Href
		case "http://ostatus.org/schema/1.0/subscribe", "dialback":
			data.DialbackEndpoint = link.Href
		case "http://schemas.google.com/g/2010#updates-from":
			data.FeedUrl = link.Href
			data.OutboxId = link.Href
		case "http://webfinger.net/rel/profile-page":
			data.ProfilePage = link.Href
		case "hub":
			data.Hubs = append(data.Hubs, link.Href)
		case "magic-public-key":
			pemKey, err := MagicKeyToPem(link.Href)
			if err != nil {
				return nil, fmt.Errorf("failed to decode magic key: %w", err)
			}
			data.PublicKeyPem = pemKey
		case "http://www.w3.org/ns/activitystreams#inbox", "inbox":
			data.ActivityInboxEndpoint = link.Href
		}
	}

	// A document without a salmon endpoint or public key cannot receive or
	// sign notifications; treat it as an unresolvable account.
	if data.SalmonEndpoint == "" || data.PublicKeyPem == "" {
		return nil, fmt.Errorf("discovery document missing salmon endpoint or key for %s@%s", username, domainName)
	}

	if data.ProfilePage == "" && len(jrd.Aliases) > 0 {
		data.ProfilePage = jrd.Aliases[0]
	}
	if data.ProfilePage == "" && strings.HasPrefix(jrd.Subject, "acct:") {
		data.ProfilePage = fmt.Sprintf("https://%s/people/%s", domainName, username)
	}

	return data, nil
}
