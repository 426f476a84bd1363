package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Call is the subset of the Twilio call resource SecureCall uses.
type Call struct {
	SID       string `json:"sid"`
	To        string `json:"to"`
	From      string `json:"from"`
	Status    string `json:"status"`
	Direction string `json:"direction"`
	Duration  string `json:"duration"`
}

// CallParams describes an outbound call placed through the REST API.
type CallParams struct {
	To             string
	From           string
	Twiml          string
	StatusCallback string
	Timeout        int // ring timeout in seconds
}

// APIError is an error body returned by the Twilio REST API.
type APIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio error %d: %s", e.Code, e.Message)
}

// ErrCodeCallNotInProgress is returned when updating a call that has already ended.
const ErrCodeCallNotInProgress = 21220

// IsCallNotInProgress reports whether err says the call already ended.
func IsCallNotInProgress(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == ErrCodeCallNotInProgress
}

// Client calls the Twilio REST API with account credentials.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a REST client. A nil httpClient gets a 30s timeout client.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// MakeCall initiates an outbound call.
func (c *Client) MakeCall(ctx context.Context, params CallParams) (*Call, error) {
	if err := c.cfg.require("account_sid", "auth_token"); err != nil {
		return nil, err
	}
	to, err := NormalizeNumber(params.To)
	if err != nil {
		return nil, err
	}
	from := params.From
	if from == "" {
		from = c.cfg.CallerID
	}
	if from == "" {
		return nil, fmt.Errorf("%w: missing caller_id", ErrNotConfigured)
	}
	if params.Twiml == "" {
		return nil, fmt.Errorf("twiml is required")
	}

	data := url.Values{}
	data.Set("To", to)
	data.Set("From", from)
	data.Set("Twiml", params.Twiml)
	if params.StatusCallback != "" {
		data.Set("StatusCallback", params.StatusCallback)
		for _, evt := range []string{"initiated", "ringing", "answered", "completed"} {
			data.Add("StatusCallbackEvent", evt)
		}
	}
	if params.Timeout > 0 {
		data.Set("Timeout", strconv.Itoa(params.Timeout))
	}

	var call Call
	if err := c.post(ctx, c.callsURL(""), data, &call); err != nil {
		return nil, fmt.Errorf("make call: %w", err)
	}
	return &call, nil
}

// HangupCall ends an in-progress call.
func (c *Client) HangupCall(ctx context.Context, callSID string) (*Call, error) {
	if err := c.cfg.require("account_sid", "auth_token"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(callSID) == "" {
		return nil, fmt.Errorf("call sid is required")
	}
	data := url.Values{}
	data.Set("Status", CallStatusCompleted)

	var call Call
	if err := c.post(ctx, c.callsURL(callSID), data, &call); err != nil {
		return nil, fmt.Errorf("hangup call: %w", err)
	}
	return &call, nil
}

func (c *Client) callsURL(callSID string) string {
	base := fmt.Sprintf("%s/Accounts/%s/Calls", c.cfg.BaseURL, url.PathEscape(c.cfg.AccountSID))
	if callSID == "" {
		return base + ".json"
	}
	return base + "/" + url.PathEscape(callSID) + ".json"
}

func (c *Client) post(ctx context.Context, endpoint string, data url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("twilio status %d: %.200s", resp.StatusCode, body)
		}
		return &apiErr
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
