package federation

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/graylingsocial/grayling/util"
)

func TestSignAndVerifyRequest(t *testing.T) {
	key := testKey(t)

	pubDer, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	pubPem := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDer}))

	body := []byte("request body")
	req, err := http.NewRequest("POST", "https://rstat.us/people/bob/salmon", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	digest := sha256.Sum256(body)
	req.Header.Set("Digest", "SHA-256="+base64.StdEncoding.EncodeToString(digest[:]))

	keyId := "https://example.com/people/alice#main-key"
	if err := SignRequest(req, key, keyId); err != nil {
		t.Fatalf("SignRequest failed: %v", err)
	}
	if req.Header.Get("Signature") == "" {
		t.Fatal("Expected a Signature header after signing")
	}

	actor, err := VerifyRequest(req, pubPem)
	if err != nil {
		t.Fatalf("VerifyRequest failed: %v", err)
	}
	if actor != "https://example.com/people/alice" {
		t.Errorf("Expected the actor URI without fragment, got '%s'", actor)
	}

	wrongKey := testKey(t)
	wrongDer, _ := x509.MarshalPKIXPublicKey(&wrongKey.PublicKey)
	wrongPem := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: wrongDer}))
	if _, err := VerifyRequest(req, wrongPem); err == nil {
		t.Error("A signature must not verify against the wrong key")
	}
}

func TestParseKeyPair(t *testing.T) {
	keypair := util.GeneratePemKeypair()

	privateKey, err := ParsePrivateKey(keypair.Private)
	if err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}

	publicKey, err := ParsePublicKey(keypair.Public)
	if err != nil {
		t.Fatalf("ParsePublicKey failed: %v", err)
	}

	if privateKey.PublicKey.N.Cmp(publicKey.N) != 0 {
		t.Error("Parsed public key does not match the private key")
	}
}

func TestParseKeyMalformed(t *testing.T) {
	if _, err := ParsePrivateKey("not a pem"); err == nil {
		t.Error("Expected an error for a non-PEM private key")
	}
	if _, err := ParsePublicKey("-----BEGIN PUBLIC KEY-----\naGVsbG8=\n-----END PUBLIC KEY-----"); err == nil {
		t.Error("Expected an error for garbage key material")
	}
}

func TestMagicKeyRoundTrip(t *testing.T) {
	keypair := util.GeneratePemKeypair()

	magicKey, err := PemToMagicKey(keypair.Public)
	if err != nil {
		t.Fatalf("PemToMagicKey failed: %v", err)
	}
	if !strings.HasPrefix(magicKey, "data:application/magic-public-key,RSA.") {
		t.Errorf("Expected a magic key data URI, got '%s'", magicKey)
	}

	pemKey, err := MagicKeyToPem(magicKey)
	if err != nil {
		t.Fatalf("MagicKeyToPem failed: %v", err)
	}

	original, err := ParsePublicKey(keypair.Public)
	if err != nil {
		t.Fatalf("Failed to parse original key: %v", err)
	}
	restored, err := ParsePublicKey(pemKey)
	if err != nil {
		t.Fatalf("Failed to parse restored key: %v", err)
	}
	if original.N.Cmp(restored.N) != 0 || original.E != restored.E {
		t.Error("Magic key round trip must preserve the key")
	}
}

func TestMagicKeyToPemMalformed(t *testing.T) {
	for _, input := range []string{
		"data:application/magic-public-key,DSA.abc.def",
		"data:application/magic-public-key,RSA.onlyone",
		"RSA.!!!.AQAB",
	} {
		if _, err := MagicKeyToPem(input); err == nil {
			t.Errorf("Expected an error for %q", input)
		}
	}
}
