package web

import (
	"fmt"

	"github.com/graylingsocial/grayling/db"
	"github.com/graylingsocial/grayling/federation"
	"github.com/graylingsocial/grayling/util"
)

type jrdLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href"`
}

type jrdDocument struct {
	Subject string    `json:"subject"`
	Aliases []string  `json:"aliases,omitempty"`
	Links   []jrdLink `json:"links"`
}

// GetWebfinger builds the discovery document for a local person: profile
// page, feed, salmon endpoint and magic public key.
func GetWebfinger(store *db.DB, user string, conf *util.AppConfig) (*jrdDocument, error) {
	person, err := store.ReadPersonByUsername(user)
	if err != nil {
		return nil, err
	}

	identity, err := store.ReadIdentityById(person.IdentityId)
	if err != nil {
		return nil, err
	}

	magicKey, err := federation.PemToMagicKey(person.WebPublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encode magic key for %s: %w", user, err)
	}

	root := conf.SiteRoot()
	doc := &jrdDocument{
		Subject: fmt.Sprintf("acct:%s@%s", identity.Username, identity.Domain),
		Aliases: []string{identity.ProfilePage},
		Links: []jrdLink{
			{Rel: "http://webfinger.net/rel/profile-page", Type: "text/html", Href: identity.ProfilePage},
			{Rel: "http://schemas.google.com/g/2010#updates-from", Type: "application/atom+xml",
				Href: fmt.Sprintf("%s/people/%s/feed", root, identity.Username)},
			{Rel: "salmon", Href: identity.SalmonEndpoint},
			{Rel: "magic-public-key", Href: magicKey},
		},
	}

	for _, hub := range conf.Conf.Hubs {
		doc.Links = append(doc.Links, jrdLink{Rel: "hub", Href: hub})
	}

	return doc, nil
}

// GetHostMeta is the XRD stub pointing discovery clients at the webfinger
// endpoint.
func GetHostMeta(conf *util.AppConfig) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<XRD xmlns="http://docs.oasis-open.org/ns/xri/xrd-1.0">
  <Link rel="lrdd" type="application/jrd+json" template="%s/.well-known/webfinger?resource={uri}"/>
</XRD>`, conf.SiteRoot())
}
