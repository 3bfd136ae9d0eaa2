package federation

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/graylingsocial/grayling/domain"
	"github.com/graylingsocial/grayling/util"
)

// Codec parses a wire payload into a Notification.
type Codec interface {
	Parse(raw []byte) (*domain.Notification, error)
}

// Verifier checks a parsed notification's signature against its actor's key.
type Verifier interface {
	Verify(n *domain.Notification) bool
}

const (
	envelopeDataType = "application/atom+xml"
	envelopeEncoding = "base64url"
	envelopeAlg      = "RSA-SHA256"

	verbSchemaPrefix = "http://activitystrea.ms/schema/1.0/"
)

// magicEnvelope is the salmon wire form: a base64url payload plus the
// signature material covering it.
type magicEnvelope struct {
	XMLName xml.Name `xml:"http://salmon-protocol.org/ns/magic-env env"`
	Data    struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"http://salmon-protocol.org/ns/magic-env data"`
	Encoding string `xml:"http://salmon-protocol.org/ns/magic-env encoding"`
	Alg      string `xml:"http://salmon-protocol.org/ns/magic-env alg"`
	Sig      struct {
		KeyId string `xml:"key_id,attr"`
		Value string `xml:",chardata"`
	} `xml:"http://salmon-protocol.org/ns/magic-env sig"`
}

// atomEntry is the payload carried inside an envelope.
type atomEntry struct {
	XMLName   xml.Name `xml:"entry"`
	Id        string   `xml:"id"`
	Title     string   `xml:"title"`
	Content   string   `xml:"content"`
	Published string   `xml:"published"`
	Author    struct {
		Name  string `xml:"name"`
		Uri   string `xml:"uri"`
		Email string `xml:"email"`
	} `xml:"author"`
	Verb       string `xml:"http://activitystrea.ms/spec/1.0/ verb"`
	ObjectType string `xml:"http://activitystrea.ms/spec/1.0/ object-type"`
	Object     *struct {
		Id string `xml:"id"`
	} `xml:"http://activitystrea.ms/spec/1.0/ object"`
	InReplyTo *struct {
		Ref  string `xml:"ref,attr"`
		Href string `xml:"href,attr"`
	} `xml:"http://purl.org/syndication/thread/1.0 in-reply-to"`
	Links []struct {
		Rel  string `xml:"rel,attr"`
		Href string `xml:"href,attr"`
	} `xml:"link"`
}

// MagicCodec decodes salmon magic envelopes carrying atom entries.
type MagicCodec struct{}

func NewMagicCodec() *MagicCodec {
	return &MagicCodec{}
}

func (c *MagicCodec) Parse(raw []byte) (*domain.Notification, error) {
	var env magicEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("envelope decode: %v: %w", err, domain.ErrParseFailure)
	}

	if env.Encoding != "" && env.Encoding != envelopeEncoding {
		return nil, fmt.Errorf("unsupported envelope encoding %q: %w", env.Encoding, domain.ErrParseFailure)
	}

	encoded := compactBase64(env.Data.Value)
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, fmt.Errorf("payload decode: %v: %w", err, domain.ErrParseFailure)
	}

	var entry atomEntry
	if err := xml.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("entry decode: %v: %w", err, domain.ErrParseFailure)
	}

	verb, err := parseVerbUri(entry.Verb)
	if err != nil {
		return nil, err
	}

	notification := &domain.Notification{
		Verb:       verb,
		ObjectType: parseObjectTypeUri(entry.ObjectType),
		Title:      entry.Title,
		Content:    entry.Content,
		Raw:        raw,
	}

	notification.Url = entry.Id
	for _, link := range entry.Links {
		switch link.Rel {
		case "self", "alternate":
			if notification.Url == "" {
				notification.Url = link.Href
			}
		case "mentioned":
			acct := strings.TrimPrefix(link.Href, "acct:")
			notification.Mentions = append(notification.Mentions, acct)
		}
	}
	if notification.Url == "" {
		return nil, fmt.Errorf("entry has no id: %w", domain.ErrParseFailure)
	}

	notification.Actor = strings.TrimPrefix(entry.Author.Uri, "acct:")
	if notification.Actor == "" {
		notification.Actor = entry.Author.Email
	}
	if notification.Actor == "" {
		return nil, fmt.Errorf("entry has no author: %w", domain.ErrParseFailure)
	}

	if entry.Published != "" {
		published, err := time.Parse(time.RFC3339, entry.Published)
		if err != nil {
			return nil, fmt.Errorf("bad published timestamp %q: %w", entry.Published, domain.ErrParseFailure)
		}
		notification.Published = published
	} else {
		notification.Published = time.Now()
	}

	if entry.InReplyTo != nil {
		notification.TargetUrl = entry.InReplyTo.Href
		if notification.TargetUrl == "" {
			notification.TargetUrl = entry.InReplyTo.Ref
		}
	}
	if notification.TargetUrl == "" && entry.Object != nil {
		notification.TargetUrl = strings.TrimPrefix(entry.Object.Id, "acct:")
	}

	// Mentions written inline in the content count as addressees too.
	for _, acct := range util.ExtractMentions(entry.Content) {
		if !containsFold(notification.Mentions, acct) {
			notification.Mentions = append(notification.Mentions, acct)
		}
	}
	notification.Mentions = CanonicalMentions(notification.Mentions)

	keyId := env.Sig.KeyId
	if keyId == "" {
		keyId = notification.Actor
	}

	sig, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(compactBase64(env.Sig.Value), "="))
	if err != nil {
		return nil, fmt.Errorf("signature decode: %v: %w", err, domain.ErrParseFailure)
	}

	dataType := env.Data.Type
	if dataType == "" {
		dataType = envelopeDataType
	}

	notification.Envelope = &domain.Envelope{
		Data:     []byte(encoded),
		DataType: dataType,
		Encoding: envelopeEncoding,
		Alg:      envelopeAlg,
		Sig:      sig,
		KeyId:    keyId,
	}

	return notification, nil
}

// Seal wraps a notification into a signed envelope for outbound delivery.
func (c *MagicCodec) Seal(n *domain.Notification, privateKey *rsa.PrivateKey, keyId string) ([]byte, error) {
	entry := buildEntry(n)

	payload, err := xml.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("entry encode: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)

	digest := sha256.Sum256([]byte(signatureBase(encoded, envelopeDataType, envelopeEncoding, envelopeAlg)))
	sig, err := rsa.SignPKCS1v15(nil, privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("envelope sign: %w", err)
	}

	out := outboundEnvelope{
		Xmlns:    "http://salmon-protocol.org/ns/magic-env",
		Encoding: envelopeEncoding,
		Alg:      envelopeAlg,
	}
	out.Data.Type = envelopeDataType
	out.Data.Value = encoded
	out.Sig.KeyId = keyId
	out.Sig.Value = base64.RawURLEncoding.EncodeToString(sig)

	return xml.Marshal(out)
}

// outboundEnvelope mirrors magicEnvelope with explicit prefixes, since the
// xml encoder does not emit namespace prefixes on its own.
type outboundEnvelope struct {
	XMLName xml.Name `xml:"me:env"`
	Xmlns   string   `xml:"xmlns:me,attr"`
	Data    struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"me:data"`
	Encoding string `xml:"me:encoding"`
	Alg      string `xml:"me:alg"`
	Sig      struct {
		KeyId string `xml:"key_id,attr,omitempty"`
		Value string `xml:",chardata"`
	} `xml:"me:sig"`
}

type outboundEntry struct {
	XMLName       xml.Name `xml:"entry"`
	Xmlns         string   `xml:"xmlns,attr"`
	XmlnsActivity string   `xml:"xmlns:activity,attr"`
	XmlnsThr      string   `xml:"xmlns:thr,attr,omitempty"`
	Id            string   `xml:"id"`
	Title         string   `xml:"title,omitempty"`
	Content       string   `xml:"content,omitempty"`
	Published     string   `xml:"published"`
	Author        struct {
		Name string `xml:"name"`
		Uri  string `xml:"uri"`
	} `xml:"author"`
	Verb       string `xml:"activity:verb"`
	ObjectType string `xml:"activity:object-type,omitempty"`
	Object     *struct {
		Id string `xml:"id"`
	} `xml:"activity:object,omitempty"`
	InReplyTo *struct {
		Href string `xml:"href,attr"`
	} `xml:"thr:in-reply-to,omitempty"`
}

func buildEntry(n *domain.Notification) *outboundEntry {
	entry := &outboundEntry{
		Xmlns:         "http://www.w3.org/2005/Atom",
		XmlnsActivity: "http://activitystrea.ms/spec/1.0/",
		Id:            n.Url,
		Title:         n.Title,
		Content:       n.Content,
		Published:     n.Published.Format(time.RFC3339),
		Verb:          verbSchemaPrefix + string(n.Verb),
	}
	entry.Author.Name = n.Actor
	entry.Author.Uri = "acct:" + n.Actor

	if n.ObjectType != "" {
		entry.ObjectType = verbSchemaPrefix + n.ObjectType
	}

	if n.TargetUrl != "" {
		switch n.Verb {
		case domain.VerbPost:
			entry.XmlnsThr = "http://purl.org/syndication/thread/1.0"
			entry.InReplyTo = &struct {
				Href string `xml:"href,attr"`
			}{Href: n.TargetUrl}
		default:
			entry.Object = &struct {
				Id string `xml:"id"`
			}{Id: n.TargetUrl}
		}
	}

	return entry
}

// parseVerbUri maps an activity streams verb URI onto the closed verb set.
// Both the activitystrea.ms and ostatus.org schema prefixes appear in the
// wild; only the last path segment matters.
func parseVerbUri(uri string) (domain.Verb, error) {
	if uri == "" {
		return "", fmt.Errorf("entry has no verb: %w", domain.ErrParseFailure)
	}
	name := uri
	if idx := strings.LastIndex(uri, "/"); idx >= 0 {
		name = uri[idx+1:]
	}
	return domain.ParseVerb(strings.ToLower(name))
}

func parseObjectTypeUri(uri string) string {
	if uri == "" {
		return domain.ObjectNote
	}
	name := uri
	if idx := strings.LastIndex(uri, "/"); idx >= 0 {
		name = uri[idx+1:]
	}
	return strings.ToLower(name)
}

// signatureBase assembles the string covered by the envelope signature:
// the encoded payload and the base64url-encoded type, encoding and alg
// fields, dot-joined.
func signatureBase(data, dataType, encoding, alg string) string {
	return strings.Join([]string{
		data,
		base64.RawURLEncoding.EncodeToString([]byte(dataType)),
		base64.RawURLEncoding.EncodeToString([]byte(encoding)),
		base64.RawURLEncoding.EncodeToString([]byte(alg)),
	}, ".")
}

// KeySource resolves an actor identifier to its RSA public key.
type KeySource interface {
	PublicKeyFor(actor string) (*rsa.PublicKey, error)
}

// MagicVerifier checks envelope signatures with RSA-SHA256 over the salmon
// signature base string.
type MagicVerifier struct {
	keys KeySource
}

func NewMagicVerifier(keys KeySource) *MagicVerifier {
	return &MagicVerifier{keys: keys}
}

func (v *MagicVerifier) Verify(n *domain.Notification) bool {
	if n.Envelope == nil || len(n.Envelope.Sig) == 0 {
		return false
	}

	pubKey, err := v.keys.PublicKeyFor(n.Actor)
	if err != nil {
		return false
	}

	base := signatureBase(string(n.Envelope.Data), n.Envelope.DataType, n.Envelope.Encoding, n.Envelope.Alg)
	digest := sha256.Sum256([]byte(base))

	return rsa.VerifyPKCS1v15(pubKey, crypto.SHA256, digest[:], n.Envelope.Sig) == nil
}

// ResolverKeySource resolves actor keys through identity discovery, so
// notifications from previously unseen actors can still be verified.
type ResolverKeySource struct {
	resolver *Resolver
}

func NewResolverKeySource(resolver *Resolver) *ResolverKeySource {
	return &ResolverKeySource{resolver: resolver}
}

func (s *ResolverKeySource) PublicKeyFor(actor string) (*rsa.PublicKey, error) {
	identity, err := s.resolver.Discover(actor)
	if err != nil {
		return nil, err
	}
	if identity.PublicKeyPem == "" {
		return nil, fmt.Errorf("identity %s has no public key", identity.Acct())
	}
	return ParsePublicKey(identity.PublicKeyPem)
}

func compactBase64(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
