package telephony

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// accessTokenContentType marks a JWT as a Twilio access token.
const accessTokenContentType = "twilio-fpa;v=1"

// Token is a signed capability token for the Twilio Voice SDK.
type Token struct {
	JWT       string    `json:"token"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type voiceGrant struct {
	Incoming *incomingGrant `json:"incoming,omitempty"`
	Outgoing *outgoingGrant `json:"outgoing,omitempty"`
}

type incomingGrant struct {
	Allow bool `json:"allow"`
}

type outgoingGrant struct {
	ApplicationSID string `json:"application_sid"`
}

type grants struct {
	Identity string      `json:"identity"`
	Voice    *voiceGrant `json:"voice,omitempty"`
}

type accessTokenClaims struct {
	jwt.RegisteredClaims
	Grants grants `json:"grants"`
}

// TokenIssuer signs Twilio access tokens with an API key.
type TokenIssuer struct {
	cfg Config
	now func() time.Time
}

// NewTokenIssuer creates an issuer. A nil clock uses time.Now.
func NewTokenIssuer(cfg Config, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	return &TokenIssuer{cfg: cfg, now: now}
}

// Issue creates a voice access token for identity allowing outgoing calls
// through the configured TwiML application and incoming calls to identity.
func (i *TokenIssuer) Issue(identity string) (*Token, error) {
	if err := i.cfg.require("account_sid", "api_key_sid", "api_key_secret", "twiml_app_sid"); err != nil {
		return nil, err
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, fmt.Errorf("identity is required")
	}

	now := i.now().UTC().Truncate(time.Second)
	expires := now.Add(i.cfg.TokenTTL)

	claims := accessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        fmt.Sprintf("%s-%d", i.cfg.APIKeySID, now.Unix()),
			Issuer:    i.cfg.APIKeySID,
			Subject:   i.cfg.AccountSID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Grants: grants{
			Identity: identity,
			Voice: &voiceGrant{
				Incoming: &incomingGrant{Allow: true},
				Outgoing: &outgoingGrant{ApplicationSID: i.cfg.TwiMLAppSID},
			},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["cty"] = accessTokenContentType

	signed, err := token.SignedString([]byte(i.cfg.APIKeySecret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &Token{JWT: signed, Identity: identity, ExpiresAt: expires}, nil
}
