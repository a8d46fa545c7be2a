package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// DefaultKeyBits is the RSA key size used for every pair.
const DefaultKeyBits = 2048

const (
	pemTypeKey  = "RSA PRIVATE KEY"
	pemTypeCert = "CERTIFICATE"
)

// generateKey generates and validates a new RSA private key.
func generateKey(bits int) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA private key: %w", err)
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate RSA private key: %w", err)
	}
	return key, nil
}

func encodeKey(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  pemTypeKey,
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

func encodeCert(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemTypeCert, Bytes: der})
}

func decodeKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemTypeKey {
		return nil, errors.New("no RSA private key PEM block found")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

func decodeCert(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemTypeCert {
		return nil, errors.New("no certificate PEM block found")
	}
	return x509.ParseCertificate(block.Bytes)
}
