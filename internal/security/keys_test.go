package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
)

func ecdsaKeyPairPEM(t *testing.T) (privPEM, pubPEM string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	privDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	privPEM = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER}))
	pubPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	return privPEM, pubPEM
}

func TestParseSigningKey_InlinePEM(t *testing.T) {
	privPEM, pubPEM := ecdsaKeyPairPEM(t)

	signer, err := ParseSigningKey(privPEM)
	if err != nil {
		t.Fatalf("ParseSigningKey: %v", err)
	}
	if _, ok := signer.Public().(*ecdsa.PublicKey); !ok {
		t.Fatalf("signer public key type = %T, want *ecdsa.PublicKey", signer.Public())
	}

	pub, err := ParseVerifyKey(pubPEM)
	if err != nil {
		t.Fatalf("ParseVerifyKey: %v", err)
	}
	if _, ok := pub.(*ecdsa.PublicKey); !ok {
		t.Fatalf("verify key type = %T, want *ecdsa.PublicKey", pub)
	}
}

func TestParseSigningKey_Invalid(t *testing.T) {
	if _, err := ParseSigningKey(""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("empty input: want ErrInvalidKey, got %v", err)
	}
	if _, err := ParseSigningKey("-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----"); err == nil {
		t.Error("unsupported PEM type should fail")
	}
	if _, err := ParseVerifyKey("-----BEGIN GARBAGE"); err == nil {
		t.Error("undecodable PEM should fail")
	}
}
