package services

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/selecta/internal/shared"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"golang.org/x/oauth2"
)

const (
	defaultTokenTTL      = 180 * 24 * time.Hour
	defaultRefreshBefore = time.Hour
)

// DeveloperTokenSigner signs Apple Music developer tokens with a MusicKit private key.
type DeveloperTokenSigner struct {
	teamID string
	keyID  string
	key    *ecdsa.PrivateKey
	ttl    time.Duration
	now    func() time.Time
}

// NewDeveloperTokenSigner parses a PEM encoded P-256 key (the AuthKey_*.p8 file).
func NewDeveloperTokenSigner(teamID, keyID string, pemBytes []byte, ttl time.Duration) (*DeveloperTokenSigner, error) {
	if teamID == "" || keyID == "" {
		return nil, fmt.Errorf("%w: team id and key id are required", shared.ErrMissingCredentials)
	}

	key, err := parseECKey(pemBytes)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	return &DeveloperTokenSigner{teamID: teamID, keyID: keyID, key: key, ttl: ttl, now: time.Now}, nil
}

// Token implements [oauth2.TokenSource].
func (s *DeveloperTokenSigner) Token() (*oauth2.Token, error) {
	issued := s.now()
	expiry := issued.Add(s.ttl)

	tok, err := jwt.NewBuilder().
		Issuer(s.teamID).
		IssuedAt(issued).
		Expiration(expiry).
		Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenSigning, err)
	}

	headers := jws.NewHeaders()
	if err := headers.Set(jws.KeyIDKey, s.keyID); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenSigning, err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.ES256(), s.key, jws.WithProtectedHeaders(headers)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenSigning, err)
	}

	return &oauth2.Token{AccessToken: string(signed), TokenType: "Bearer", Expiry: expiry}, nil
}

// NewCredentialProvider builds the developer token source from config.
//
// A configured developer token is used as-is. Otherwise tokens are signed from the key file and
// reused until refresh_before ahead of their expiry.
func NewCredentialProvider(cfg shared.CredentialsConfig) (oauth2.TokenSource, error) {
	if cfg.DeveloperToken != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.DeveloperToken, TokenType: "Bearer"}), nil
	}

	if !cfg.HasSigningKey() {
		return nil, fmt.Errorf("%w: set team_id, key_id and key_path or a developer_token", shared.ErrMissingCredentials)
	}

	pemBytes, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read key file: %v", shared.ErrMissingCredentials, err)
	}

	signer, err := NewDeveloperTokenSigner(cfg.TeamID, cfg.KeyID, pemBytes, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	refresh := cfg.RefreshBefore
	if refresh <= 0 {
		refresh = defaultRefreshBefore
	}
	return oauth2.ReuseTokenSourceWithExpiry(nil, signer, refresh), nil
}

func parseECKey(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: key is not PEM encoded", shared.ErrInvalidCredentials)
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		ec, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: key is not an ECDSA key", shared.ErrInvalidCredentials)
		}
		return ec, nil
	}

	ec, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, err)
	}
	return ec, nil
}
