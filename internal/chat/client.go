package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"sciwi/internal/logging"
)

// incomingURLPattern matches a Synology Chat incoming webhook URL.
var incomingURLPattern = regexp.MustCompile(`https?://.*?/webapi/entry\.cgi\?api=SYNO\.Chat\.External&method=incoming&version=2&token=%22.*%22`)

// errCodeFileFetch is the remote error code seen when the chat server
// could not download file_url.
const errCodeFileFetch = 117

const loopbackHint = "when running locally make sure you use the IP of your computer in SCIWI_FILE_SERVER_BASE_URL"

var (
	// ErrInvalidWebhookURL is returned by NewClient for malformed webhook URLs.
	ErrInvalidWebhookURL = errors.New("invalid incoming webhook url, expected {http|https}://{host}/webapi/entry.cgi?api=SYNO.Chat.External&method=incoming&version=2&token=%22{token}%22")
)

// Sender delivers a text and an optional file URL to a chat.
type Sender interface {
	Send(ctx context.Context, text, fileURL string) error
}

// RemoteError is a rejection reported by the chat server.
type RemoteError struct {
	StatusCode int
	Code       int
	Detail     string
	// Hint is a best-effort diagnostic, empty when nothing applies.
	Hint string
}

func (e *RemoteError) Error() string {
	msg := "error while communicating with Synology Chat"
	if e.Detail != "" {
		msg += ": " + e.Detail
	} else if e.StatusCode != 0 {
		msg += fmt.Sprintf(": http status %d", e.StatusCode)
	}
	if e.Hint != "" {
		msg += " (hint: " + e.Hint + ")"
	}
	return msg
}

// Client posts messages to a Synology Chat incoming webhook.
type Client struct {
	incomingURL string
	httpClient  *http.Client
	breaker     *CircuitBreaker
	logger      *logging.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for posts.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-post timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// WithCircuitBreaker guards posts with cb.
func WithCircuitBreaker(cb *CircuitBreaker) ClientOption {
	return func(c *Client) { c.breaker = cb }
}

// WithClientLogger sets the client logger.
func WithClientLogger(l *logging.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient validates incomingURL and returns a Client for it.
func NewClient(incomingURL string, opts ...ClientOption) (*Client, error) {
	if !ValidIncomingURL(incomingURL) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWebhookURL, incomingURL)
	}
	c := &Client{
		incomingURL: incomingURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ValidIncomingURL reports whether u looks like an incoming webhook URL.
func ValidIncomingURL(u string) bool {
	return incomingURLPattern.MatchString(u)
}

type webhookPayload struct {
	Text    string `json:"text"`
	FileURL string `json:"file_url,omitempty"`
}

type webhookResponse struct {
	Success bool            `json:"success"`
	Error   json.RawMessage `json:"error,omitempty"`
}

type webhookError struct {
	Code int `json:"code"`
}

// Send posts text and, when non-empty, fileURL. The chat server must be
// able to fetch fileURL.
func (c *Client) Send(ctx context.Context, text, fileURL string) error {
	if c.breaker == nil {
		return c.post(ctx, text, fileURL)
	}
	return c.breaker.Execute(func() error {
		return c.post(ctx, text, fileURL)
	})
}

func (c *Client) post(ctx context.Context, text, fileURL string) error {
	payload, err := json.Marshal(webhookPayload{Text: text, FileURL: fileURL})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	form := url.Values{"payload": {string(payload)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.incomingURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read webhook response: %w", err)
	}

	var answer webhookResponse
	if err := json.Unmarshal(body, &answer); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &RemoteError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(body))}
		}
		return fmt.Errorf("decode webhook response: %w", err)
	}

	if len(answer.Error) > 0 && string(answer.Error) != "null" {
		var we webhookError
		_ = json.Unmarshal(answer.Error, &we)
		rerr := &RemoteError{
			StatusCode: resp.StatusCode,
			Code:       we.Code,
			Detail:     string(answer.Error),
		}
		if we.Code == errCodeFileFetch && isLoopbackURL(fileURL) {
			rerr.Hint = loopbackHint
		}
		c.logger.Warn("webhook rejected message", map[string]any{"code": we.Code, "status": resp.StatusCode})
		return rerr
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &RemoteError{StatusCode: resp.StatusCode}
	}

	c.logger.Debug("webhook message sent", map[string]any{"has_file": fileURL != ""})
	return nil
}

func isLoopbackURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
