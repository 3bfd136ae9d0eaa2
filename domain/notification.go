package domain

import "time"

// Envelope holds the signature material of a salmon magic envelope, kept
// alongside the parsed notification so a verifier can check the payload
// without re-parsing the wire bytes.
type Envelope struct {
	Data     []byte
	DataType string
	Encoding string
	Alg      string
	Sig      []byte
	KeyId    string
}

// Notification is one inbound federation payload, parsed but not yet
// verified or applied.
type Notification struct {
	Url        string
	Verb       Verb
	Actor      string
	ObjectType string
	Title      string
	Content    string
	TargetUrl  string
	Mentions   []string
	Published  time.Time
	Envelope   *Envelope
	Raw        []byte
}
