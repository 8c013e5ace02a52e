package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ChannelPrefix qualifies phone numbers for the WhatsApp channel.
const ChannelPrefix = "whatsapp:"

type TwilioConfig struct {
	BaseURL        string
	AccountSID     string
	AuthToken      string
	From           string
	StatusCallback string
	Timeout        time.Duration
}

type TwilioClient struct {
	cfg    TwilioConfig
	client *http.Client
}

func NewTwilioClient(cfg TwilioConfig) *TwilioClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &TwilioClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// TransportError is returned for every failed send. StatusCode is zero when
// the request never got a response. Message is the provider's error text.
type TransportError struct {
	StatusCode int
	Code       int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("transport: %v", e.Err)
	case e.Code != 0:
		return fmt.Sprintf("unexpected status code: %d code=%d message=%q", e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("unexpected status code: %d body=%q", e.StatusCode, e.Message)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

type sendResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Address adds the channel prefix unless the number already carries it.
func Address(phone string) string {
	if strings.HasPrefix(phone, ChannelPrefix) {
		return phone
	}
	return ChannelPrefix + phone
}

// Send posts a WhatsApp message and returns the provider message SID.
func (c *TwilioClient) Send(ctx context.Context, phoneNumber, message string) (string, error) {
	form := url.Values{}
	form.Set("From", Address(c.cfg.From))
	form.Set("To", Address(phoneNumber))
	form.Set("Body", message)
	if c.cfg.StatusCallback != "" {
		form.Set("StatusCallback", c.cfg.StatusCallback)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.AccountSID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		te := &TransportError{StatusCode: resp.StatusCode, Message: string(body)}
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Message != "" {
			te.Code = er.Code
			te.Message = er.Message
		}
		return "", te
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", &TransportError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Err:        fmt.Errorf("failed to decode json: %w body=%q", err, string(body)),
		}
	}
	if sr.SID == "" {
		return "", &TransportError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Err:        fmt.Errorf("missing sid in response body=%q", string(body)),
		}
	}

	return sr.SID, nil
}
