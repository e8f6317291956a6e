package walmart

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
)

const keyVersion = "1"

// Signer produces the per-request authentication headers Walmart
// requires. Injected so tests can run without key material.
type Signer interface {
	Headers(at time.Time) (map[string]string, error)
}

// RSASigner signs the consumer id and timestamp with an RSA private
// key, per Walmart's partner API authentication scheme.
type RSASigner struct {
	consumerID string
	key        *rsa.PrivateKey
}

// NewRSASigner parses a base64-encoded PKCS#8 private key.
func NewRSASigner(consumerID, privateKey string) (*RSASigner, error) {
	der, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "decode walmart private key")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "parse walmart private key")
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig, "walmart private key is not RSA")
	}
	return &RSASigner{consumerID: consumerID, key: rsaKey}, nil
}

// Headers implements Signer.
func (s *RSASigner) Headers(at time.Time) (map[string]string, error) {
	timestamp := fmt.Sprintf("%d", at.UnixMilli())
	canonical := s.consumerID + "\n" + timestamp + "\n" + keyVersion + "\n"

	digest := sha256.Sum256([]byte(canonical))
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuth, "sign walmart request")
	}

	return map[string]string{
		"WM_CONSUMER.ID":          s.consumerID,
		"WM_CONSUMER.INTIMESTAMP": timestamp,
		"WM_SEC.KEY_VERSION":      keyVersion,
		"WM_SEC.AUTH_SIGNATURE":   base64.StdEncoding.EncodeToString(signature),
		"WM_QOS.CORRELATION_ID":   timestamp,
	}, nil
}
