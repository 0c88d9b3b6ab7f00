package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pushsync/pushsync-go/pkg/interest"
	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

// Defaults for HTTPClient.
const (
	// DefaultPlatform is the device platform segment of the API path.
	DefaultPlatform = "fcm"

	// DefaultRequestTimeout bounds a single request.
	DefaultRequestTimeout = 30 * time.Second

	// RequestIDHeader carries a unique id per request.
	RequestIDHeader = "X-Request-Id"
)

// DefaultBaseURL returns the device API base URL for an instance.
func DefaultBaseURL(instanceID, platform string) string {
	id := url.PathEscape(instanceID)
	return fmt.Sprintf("https://%s.pushnotifications.pusher.com/device_api/v1/instances/%s/devices/%s",
		id, id, url.PathEscape(platform))
}

// HTTPClient implements Client against the device API.
type HTTPClient struct {
	instanceID string
	platform   string
	baseURL    string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithEndpoint overrides the API host. The instance path is appended, so
// "http://127.0.0.1:8080" becomes
// "http://127.0.0.1:8080/device_api/v1/instances/{id}/devices/{platform}".
func WithEndpoint(endpoint string) HTTPOption {
	return func(c *HTTPClient) {
		c.endpoint = strings.TrimRight(endpoint, "/")
	}
}

// WithPlatform sets the platform path segment.
func WithPlatform(platform string) HTTPOption {
	return func(c *HTTPClient) {
		if platform != "" {
			c.platform = platform
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRequestTimeout sets the per-request timeout.
func WithRequestTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPLogger sets the logger for request diagnostics.
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(c *HTTPClient) {
		c.userAgent = ua
	}
}

// NewHTTPClient creates a client bound to instanceID.
func NewHTTPClient(instanceID string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		instanceID: instanceID,
		platform:   DefaultPlatform,
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.endpoint != "" {
		c.baseURL = fmt.Sprintf("%s/device_api/v1/instances/%s/devices/%s",
			c.endpoint, url.PathEscape(instanceID), url.PathEscape(c.platform))
	} else {
		c.baseURL = DefaultBaseURL(instanceID, c.platform)
	}
	return c
}

// NewHTTPClientFactory returns a ClientFactory producing HTTPClients with opts.
func NewHTTPClientFactory(opts ...HTTPOption) ClientFactory {
	return func(instanceID string) Client {
		return NewHTTPClient(instanceID, opts...)
	}
}

// BaseURL returns the device collection URL.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

type registerRequest struct {
	Token    string   `json:"token"`
	Metadata Metadata `json:"metadata"`
}

type registerResponse struct {
	ID                 string   `json:"id"`
	InitialInterestSet []string `json:"initialInterestSet"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type interestsRequest struct {
	Interests []string `json:"interests"`
}

// Register implements Client.
func (c *HTTPClient) Register(ctx context.Context, token string, md Metadata) (Registration, error) {
	var resp registerResponse
	if err := c.do(ctx, "register", http.MethodPost, "", "", registerRequest{Token: token, Metadata: md}, &resp); err != nil {
		return Registration{}, err
	}
	if resp.ID == "" {
		return Registration{}, syncerr.New(syncerr.KindRetryable, "register", "response has no device id")
	}
	return Registration{
		DeviceID:         resp.ID,
		InitialInterests: interest.FromSlice(resp.InitialInterestSet),
	}, nil
}

// UpdateToken implements Client.
func (c *HTTPClient) UpdateToken(ctx context.Context, deviceID, token string) error {
	return c.do(ctx, "updateToken", http.MethodPut, devicePath(deviceID, "token"), "", tokenRequest{Token: token}, nil)
}

// UpdateInterests implements Client.
func (c *HTTPClient) UpdateInterests(ctx context.Context, deviceID string, diff interest.Diff) (interest.Set, error) {
	body := interestsRequest{Interests: diff.Target.Sorted()}
	if err := c.do(ctx, "updateInterests", http.MethodPut, devicePath(deviceID, "interests"), "", body, nil); err != nil {
		return nil, err
	}
	return diff.Target.Clone(), nil
}

// UpdateMetadata implements Client.
func (c *HTTPClient) UpdateMetadata(ctx context.Context, deviceID string, md Metadata) error {
	return c.do(ctx, "updateMetadata", http.MethodPut, devicePath(deviceID, "metadata"), "", md, nil)
}

// AssociateUser implements Client.
func (c *HTTPClient) AssociateUser(ctx context.Context, deviceID, userToken string) error {
	return c.do(ctx, "associateUser", http.MethodPut, devicePath(deviceID, "user"), userToken, struct{}{}, nil)
}

// DisassociateUser implements Client.
func (c *HTTPClient) DisassociateUser(ctx context.Context, deviceID string) error {
	return c.do(ctx, "disassociateUser", http.MethodDelete, devicePath(deviceID, "user"), "", nil, nil)
}

// Delete implements Client.
func (c *HTTPClient) Delete(ctx context.Context, deviceID string) error {
	return c.do(ctx, "delete", http.MethodDelete, devicePath(deviceID, ""), "", nil, nil)
}

func devicePath(deviceID, sub string) string {
	p := "/" + url.PathEscape(deviceID)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

func (c *HTTPClient) do(ctx context.Context, op, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return syncerr.Wrap(syncerr.KindValidation, op, "encode request", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return syncerr.Wrap(syncerr.KindConfiguration, op, "build request", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.debug("request failed", "op", op, "request_id", requestID, "error", err)
		return syncerr.Wrap(syncerr.KindRetryable, op, "send request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return syncerr.Wrap(syncerr.KindRetryable, op, "read response", err)
	}
	c.debug("request done", "op", op, "method", method, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(op, resp.StatusCode, respBody)
	}
	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return syncerr.Wrap(syncerr.KindRetryable, op, "decode response", err)
		}
	}
	return nil
}

func (c *HTTPClient) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
