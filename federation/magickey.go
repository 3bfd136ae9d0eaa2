package federation

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"strings"
)

// Magic public keys travel in discovery documents as
// "data:application/magic-public-key,RSA.<modulus>.<exponent>" with both
// numbers base64url-encoded. Internally everything is PEM, so the two
// helpers below convert at the protocol boundary.

const magicKeyPrefix = "data:application/magic-public-key,"

// MagicKeyToPem converts a magic-public-key data URI to a PKIX PEM string.
func MagicKeyToPem(magicKey string) (string, error) {
	body := strings.TrimPrefix(magicKey, magicKeyPrefix)

	parts := strings.Split(body, ".")
	if len(parts) != 3 || parts[0] != "RSA" {
		return "", fmt.Errorf("unexpected magic key format")
	}

	modBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return "", fmt.Errorf("failed to decode modulus: %w", err)
	}
	expBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[2], "="))
	if err != nil {
		return "", fmt.Errorf("failed to decode exponent: %w", err)
	}

	pubKey := &rsa.PublicKey{
		N: new(big.Int).SetBytes(modBytes),
		E: int(new(big.Int).SetBytes(expBytes).Int64()),
	}

	der, err := x509.MarshalPKIXPublicKey(pubKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	})

	return string(pemBytes), nil
}

// PemToMagicKey converts a PEM public key to the magic-public-key data URI
// served in our own discovery documents.
func PemToMagicKey(pemString string) (string, error) {
	pubKey, err := ParsePublicKey(pemString)
	if err != nil {
		return "", err
	}

	mod := base64.RawURLEncoding.EncodeToString(pubKey.N.Bytes())
	exp := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pubKey.E)).Bytes())

	return fmt.Sprintf("%sRSA.%s.%s", magicKeyPrefix, mod, exp), nil
}
