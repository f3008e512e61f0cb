package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// gatewayClock is the gateway's local clock convention (timestamps and the
// derived password are computed against it).
var gatewayClock = func() *time.Location {
	loc, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		return time.Local
	}
	return loc
}()

// Logf receives wire-level diagnostics (request and response bodies). The
// checkout pipeline points it at the audit trail.
type Logf func(format string, v ...interface{})

// Client talks to the Daraja gateway. One fresh token per attempt; tokens
// are never cached across attempts.
type Client struct {
	BaseURL string
	client  *http.Client
	logf    Logf
	now     func() time.Time
}

func NewClient(baseURL string, timeout time.Duration, logf Logf) *Client {
	if baseURL == "" {
		baseURL = "https://sandbox.safaricom.co.ke"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Client{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logf:    logf,
		now:     func() time.Time { return time.Now().In(gatewayClock) },
	}
}

// Now returns the gateway-clock time used for timestamps and passwords.
func (c *Client) Now() time.Time { return c.now() }

type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// Authenticate exchanges the consumer key pair for a short-lived bearer
// token via the client-credentials grant. No retry: a failed fetch fails
// the whole payment attempt.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.SetBasicAuth(creds.ConsumerKey, creds.ConsumerSecret)
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &AuthError{Status: resp.StatusCode, Body: string(body)}
	}
	var out authResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &AuthError{Status: resp.StatusCode, Body: string(body), Err: err}
	}
	if out.AccessToken == "" {
		return "", &AuthError{Status: resp.StatusCode, Body: string(body), Err: fmt.Errorf("no access_token in response")}
	}
	return out.AccessToken, nil
}

// STKPush submits the payment request and classifies the synchronous
// acknowledgment. An accepted push means the prompt was delivered for
// processing, not that the customer has paid.
func (c *Client) STKPush(ctx context.Context, token string, push *STKPushRequest) (*STKPushResponse, error) {
	payload, err := json.Marshal(push)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	c.logf("stk push request: %s", redactPassword(push, payload))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()
	body, readErr := io.ReadAll(resp.Body)
	c.logf("stk push response: status=%d body=%s", resp.StatusCode, string(body))
	if readErr != nil {
		return nil, &TransportError{Err: readErr}
	}
	var out STKPushResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("decode push response: %w", err)}
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 && out.ResponseCode == "0" {
		return &out, nil
	}
	return &out, &RejectedError{
		Code:        out.ResponseCode,
		Description: out.ResponseDescription,
		Message:     out.ErrorMessage,
	}
}

// redactPassword keeps the derived password out of the audit trail while
// logging the rest of the request verbatim.
func redactPassword(push *STKPushRequest, payload []byte) string {
	masked := *push
	masked.Password = "***"
	if b, err := json.Marshal(&masked); err == nil {
		return string(b)
	}
	return string(payload)
}
