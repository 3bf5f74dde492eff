package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PrintRelay/app/models"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

var relayTracer = otel.Tracer("relay")

// RelayError is returned for transport failures and relay-reported errors
type RelayError struct {
	Action     string
	StatusCode int // Zero when the request never got a response
	Message    string
	Err        error
}

func (e *RelayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("relay %s returned status %d: %s", e.Action, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("relay %s failed: %s", e.Action, e.Message)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

// relayID accepts ids sent as JSON strings or numbers
type relayID string

func (r *relayID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = relayID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = relayID(n.String())
	return nil
}

type relayErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type relayAccount struct {
	ID        relayID `json:"id"`
	Email     string  `json:"email"`
	FirstName string  `json:"firstname"`
	LastName  string  `json:"lastname"`
}

type relayPrinter struct {
	ID    relayID `json:"id"`
	Name  string  `json:"name"`
	State string  `json:"state"`
}

type relayPrintRequest struct {
	PrinterID   string `json:"printerId"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

type relayPrintResponse struct {
	JobID relayID `json:"jobId"`
}

type relayJobStatus struct {
	State string `json:"state"`
}

type relayPrinterStatus struct {
	State    string `json:"state"`
	Computer struct {
		State string `json:"state"`
	} `json:"computer"`
}

// RelayClient talks to the remote print relay. It never retries.
type RelayClient struct {
	baseURL    string
	credential oauth2.TokenSource
	client     *http.Client
	timeout    time.Duration
	logger     Logger
}

// RelayOption configures a RelayClient
type RelayOption func(*RelayClient)

// WithHTTPClient replaces the instrumented default client. The supplied
// client is used as is; WithRelayTimeout does not modify it.
func WithHTTPClient(client *http.Client) RelayOption {
	return func(c *RelayClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithRelayTimeout sets the per-request timeout of the default client
func WithRelayTimeout(timeout time.Duration) RelayOption {
	return func(c *RelayClient) {
		c.timeout = timeout
	}
}

// WithRelayLogger sets the logger used for swallowed errors
func WithRelayLogger(logger Logger) RelayOption {
	return func(c *RelayClient) {
		c.logger = logger
	}
}

// NewRelayClient creates a client for the relay at baseURL, authorized by credential
func NewRelayClient(baseURL string, credential oauth2.TokenSource, opts ...RelayOption) *RelayClient {
	own := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	c := &RelayClient{
		baseURL:    baseURL,
		credential: credential,
		client:     own,
		timeout:    10 * time.Second,
		logger:     nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == own && c.timeout > 0 {
		own.Timeout = c.timeout
	}
	return c
}

// StaticCredential wraps a fixed bearer token
func StaticCredential(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// WhoAmI returns the account behind the credential
func (c *RelayClient) WhoAmI(ctx context.Context) (*models.AccountInfo, error) {
	var account relayAccount
	if err := c.do(ctx, http.MethodGet, "whoami", nil, nil, &account); err != nil {
		return nil, err
	}
	return &models.AccountInfo{
		ID:        string(account.ID),
		Email:     account.Email,
		FirstName: account.FirstName,
		LastName:  account.LastName,
	}, nil
}

// ListPrinters returns the printers visible to the account.
// Errors are logged and yield an empty list.
func (c *RelayClient) ListPrinters(ctx context.Context) []models.PrinterTarget {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "printers", nil, nil, &raw); err != nil {
		c.logger.LogError("Error listing relay printers", err)
		return []models.PrinterTarget{}
	}

	var printers []relayPrinter
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Printers []relayPrinter `json:"printers"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			c.logger.LogError("Error parsing relay printers", err)
			return []models.PrinterTarget{}
		}
		printers = wrapped.Printers
	} else if err := json.Unmarshal(trimmed, &printers); err != nil {
		c.logger.LogError("Error parsing relay printers", err)
		return []models.PrinterTarget{}
	}

	targets := make([]models.PrinterTarget, 0, len(printers))
	for _, p := range printers {
		targets = append(targets, models.PrinterTarget{
			ID:    string(p.ID),
			Name:  p.Name,
			State: p.State,
		})
	}
	return targets
}

// Submit sends a raw payload to a printer and returns the relay's job id
func (c *RelayClient) Submit(ctx context.Context, printerID string, payload []byte, title string) (string, error) {
	body := relayPrintRequest{
		PrinterID:   printerID,
		Title:       title,
		Content:     base64.StdEncoding.EncodeToString(payload),
		ContentType: "raw_base64",
	}

	var resp relayPrintResponse
	if err := c.do(ctx, http.MethodPost, "print", nil, body, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", &RelayError{Action: "print", Message: "relay accepted the job without a job id"}
	}
	return string(resp.JobID), nil
}

// JobStatus returns the relay's state for a job, with "in_progress" normalized to "in-progress"
func (c *RelayClient) JobStatus(ctx context.Context, remoteJobID string) (string, error) {
	var resp relayJobStatus
	query := url.Values{"jobId": {remoteJobID}}
	if err := c.do(ctx, http.MethodGet, "job-status", query, nil, &resp); err != nil {
		return "", err
	}
	return strings.ReplaceAll(strings.ToLower(resp.State), "_", "-"), nil
}

// PrinterStatus reports whether a printer can take jobs.
// A printer is online when it reports "online" or its host computer is "connected".
func (c *RelayClient) PrinterStatus(ctx context.Context, printerID string) (*models.PrinterState, error) {
	var resp relayPrinterStatus
	query := url.Values{"printerId": {printerID}}
	if err := c.do(ctx, http.MethodGet, "printer-status", query, nil, &resp); err != nil {
		return nil, err
	}
	return &models.PrinterState{
		Online:        resp.State == "online" || resp.Computer.State == "connected",
		State:         resp.State,
		ComputerState: resp.Computer.State,
	}, nil
}

// do performs one round trip and decodes a 2xx body into out
func (c *RelayClient) do(ctx context.Context, method, action string, query url.Values, body interface{}, out interface{}) (err error) {
	ctx, span := relayTracer.Start(ctx, "relay."+action, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("relay.action", action))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	endpoint, err := c.endpoint(action, query)
	if err != nil {
		return &RelayError{Action: action, Message: err.Error(), Err: err}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling %s request: %w", action, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &RelayError{Action: action, Message: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.credential.Token()
	if err != nil {
		return &RelayError{Action: action, Message: "credential unavailable: " + err.Error(), Err: err}
	}
	token.SetAuthHeader(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return &RelayError{Action: action, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RelayError{Action: action, StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RelayError{Action: action, StatusCode: resp.StatusCode, Message: relayMessage(respBody)}
	}

	trimmed := bytes.TrimSpace(respBody)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var errBody relayErrorBody
		if json.Unmarshal(trimmed, &errBody) == nil && errBody.Error != "" {
			return &RelayError{Action: action, StatusCode: resp.StatusCode, Message: errBody.Error}
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return &RelayError{Action: action, StatusCode: resp.StatusCode, Message: "invalid response: " + err.Error(), Err: err}
	}
	return nil
}

func (c *RelayClient) endpoint(action string, query url.Values) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid relay URL: %w", err)
	}
	q := u.Query()
	q.Set("action", action)
	for key, values := range query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// relayMessage extracts the relay's error text, falling back to the raw body
func relayMessage(body []byte) string {
	var errBody relayErrorBody
	if json.Unmarshal(body, &errBody) == nil {
		if errBody.Error != "" {
			return errBody.Error
		}
		if errBody.Message != "" {
			return errBody.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response"
	}
	return msg
}

type nopLogger struct{}

func (nopLogger) LogInfo(string, ...string)         {}
func (nopLogger) LogWarning(string, ...string)      {}
func (nopLogger) LogError(string, error, ...string) {}
