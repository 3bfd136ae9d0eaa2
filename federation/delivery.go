package federation

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/graylingsocial/grayling/domain"
	"github.com/graylingsocial/grayling/util"
)

// Deliverer sends sealed salmon envelopes for local activities to remote
// salmon endpoints. Delivery is best effort: the remote will also pick the
// activity up from the feed, the slap just makes it immediate.
type Deliverer struct {
	codec  *MagicCodec
	client *http.Client
}

func NewDeliverer(codec *MagicCodec) *Deliverer {
	return &Deliverer{
		codec:  codec,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Deliver seals the activity as performed by person and POSTs it to the
// remote identity's salmon endpoint.
func (d *Deliverer) Deliver(person *domain.Person, actor *domain.Identity, activity *domain.Activity, remote *domain.Identity) error {
	if remote.SalmonEndpoint == "" {
		return fmt.Errorf("identity %s has no salmon endpoint", remote.Acct())
	}

	privateKey, err := ParsePrivateKey(person.WebPrivateKey)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	notification := &domain.Notification{
		Url:        activity.Url,
		Verb:       activity.Verb,
		Actor:      actor.Acct(),
		ObjectType: activity.ObjectType,
		Title:      activity.Title,
		Content:    activity.Content,
		TargetUrl:  activity.TargetUrl,
		Published:  activity.CreatedAt,
	}

	keyId := actor.ProfilePage + "#main-key"
	body, err := d.codec.Seal(notification, privateKey, keyId)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", remote.SalmonEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/magic-envelope+xml")
	req.Header.Set("User-Agent", util.GetNameAndVersion())
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	digest := sha256.Sum256(body)
	req.Header.Set("Digest", "SHA-256="+base64.StdEncoding.EncodeToString(digest[:]))

	if err := SignRequest(req, privateKey, keyId); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}

	log.Printf("Delivery: slapped %s with %s %s", remote.Acct(), activity.Verb, activity.Url)
	return nil
}
