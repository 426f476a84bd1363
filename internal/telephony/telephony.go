// Package telephony integrates SecureCall with Twilio Programmable Voice.
//
// Browsers place calls with the Twilio Voice SDK using an Access Token issued
// here; Twilio then asks the voice webhook for TwiML that dials the requested
// number. Server-placed calls go through the REST Calls API and play a saved
// voice profile to the callee.
package telephony

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultAPIBaseURL is the Twilio REST API base URL.
const DefaultAPIBaseURL = "https://api.twilio.com/2010-04-01"

// DefaultTokenTTL is the lifetime of issued access tokens.
const DefaultTokenTTL = time.Hour

// Call status values reported by Twilio.
const (
	CallStatusQueued     = "queued"
	CallStatusRinging    = "ringing"
	CallStatusInProgress = "in-progress"
	CallStatusCompleted  = "completed"
	CallStatusBusy       = "busy"
	CallStatusFailed     = "failed"
	CallStatusNoAnswer   = "no-answer"
	CallStatusCanceled   = "canceled"
)

// IsFinalStatus reports whether status ends a call.
func IsFinalStatus(status string) bool {
	switch status {
	case CallStatusCompleted, CallStatusBusy, CallStatusFailed, CallStatusNoAnswer, CallStatusCanceled:
		return true
	}
	return false
}

var (
	// ErrNotConfigured is returned when required Twilio credentials are missing.
	ErrNotConfigured = errors.New("twilio credentials are not configured")

	// ErrInvalidNumber is returned for phone numbers not in E.164 format.
	ErrInvalidNumber = errors.New("phone number must be in E.164 format")
)

// Config holds Twilio credentials and call settings.
type Config struct {
	AccountSID   string
	AuthToken    string
	APIKeySID    string
	APIKeySecret string
	TwiMLAppSID  string
	CallerID     string
	BaseURL      string
	TokenTTL     time.Duration
}

// missing lists the names of unset required fields for the given feature.
func (c Config) missing(fields ...string) []string {
	values := map[string]string{
		"account_sid":    c.AccountSID,
		"auth_token":     c.AuthToken,
		"api_key_sid":    c.APIKeySID,
		"api_key_secret": c.APIKeySecret,
		"twiml_app_sid":  c.TwiMLAppSID,
		"caller_id":      c.CallerID,
	}
	var out []string
	for _, f := range fields {
		if strings.TrimSpace(values[f]) == "" {
			out = append(out, f)
		}
	}
	return out
}

func (c Config) require(fields ...string) error {
	if m := c.missing(fields...); len(m) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(m, ", "))
	}
	return nil
}

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// NormalizeNumber strips common formatting characters and validates E.164.
func NormalizeNumber(number string) (string, error) {
	n := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(strings.TrimSpace(number))
	if strings.HasPrefix(n, "00") {
		n = "+" + n[2:]
	}
	if !e164.MatchString(n) {
		return "", fmt.Errorf("%q: %w", number, ErrInvalidNumber)
	}
	return n, nil
}
