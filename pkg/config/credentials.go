package config

import (
	"os"
	"strings"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
)

// Credentials holds the secret material one vendor adapter needs.
// Which fields are populated depends on the vendor.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string

	// ConsumerID and PrivateKey are Walmart signing material.
	ConsumerID string
	PrivateKey string

	// AccessKeyID, SecretAccessKey and SessionToken are SigV4 material
	// for SP-API requests.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// CredentialProvider resolves secrets for a vendor. Implementations
// must not cache stale values across rotation.
type CredentialProvider interface {
	Credentials(vendor string) (Credentials, error)
}

// EnvCredentialProvider reads credentials from environment variables
// named <VENDOR>_<FIELD>, e.g. AMAZON_ADS_CLIENT_ID. Vendor names are
// uppercased and non-alphanumeric runs become underscores.
type EnvCredentialProvider struct{}

// Credentials implements CredentialProvider.
func (EnvCredentialProvider) Credentials(vendor string) (Credentials, error) {
	prefix := envPrefix(vendor)
	creds := Credentials{
		ClientID:        os.Getenv(prefix + "_CLIENT_ID"),
		ClientSecret:    os.Getenv(prefix + "_CLIENT_SECRET"),
		RefreshToken:    os.Getenv(prefix + "_REFRESH_TOKEN"),
		ConsumerID:      os.Getenv(prefix + "_CONSUMER_ID"),
		PrivateKey:      os.Getenv(prefix + "_PRIVATE_KEY"),
		AccessKeyID:     os.Getenv(prefix + "_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv(prefix + "_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv(prefix + "_SESSION_TOKEN"),
	}
	if creds == (Credentials{}) {
		return creds, errors.New(errors.ErrorTypeConfig, "no credentials in environment").
			WithDetail("vendor", vendor).
			WithDetail("env_prefix", prefix)
	}
	return creds, nil
}

func envPrefix(vendor string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(vendor) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
