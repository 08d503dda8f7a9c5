package influx

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"influxrelay/internal/config"
	"influxrelay/internal/lineproto"
)

// maxResponseBody bounds how much of a response is read for classification.
const maxResponseBody = 64 << 10

// V1Client writes to the InfluxDB 1.x HTTP API: POST /write?db=<database>
// with optional HTTP Basic authentication.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type V1Client struct {
	serverURL string
	database  string
	username  string
	password  string

	adminUsername string
	adminPassword string

	userAgent  string
	httpClient *http.Client
}

// NewV1Client creates a client for basic (username/password) mode. A nil
// tlsConfig uses the system defaults.
func NewV1Client(cfg config.InfluxConfig, timeout time.Duration, userAgent string, tlsConfig *tls.Config) *V1Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if tlsConfig != nil {
		transport.TLSClientConfig = tlsConfig
	}

	return &V1Client{
		serverURL:     strings.TrimRight(cfg.ServerURL, "/"),
		database:      cfg.Database,
		username:      cfg.Username,
		password:      cfg.Password,
		adminUsername: cfg.DBAdminUsername,
		adminPassword: cfg.DBAdminPassword,
		userAgent:     userAgent,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// WriteURL returns the endpoint payloads are posted to.
func (c *V1Client) WriteURL() string {
	return c.serverURL + "/write?" + url.Values{"db": {c.database}}.Encode()
}

// Write posts one payload and classifies the response.
func (c *V1Client) Write(ctx context.Context, p lineproto.Payload) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.WriteURL(), strings.NewReader(p.Body))
	if err != nil {
		return permanent(0, fmt.Errorf("influx: build request: %w", err))
	}
	contentType := p.ContentType
	if contentType == "" {
		contentType = lineproto.ContentType
	}
	req.Header.Set("Content-Type", contentType)
	c.decorate(req, c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transient(0, fmt.Errorf("influx: post: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return transient(resp.StatusCode, fmt.Errorf("influx: read response: %w", err))
	}
	// Drain anything past the limit to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	return Classify(resp.StatusCode, body)
}

// EnsureDatabase issues CREATE DATABASE, which is a no-op when the database
// already exists. The administrative credentials are used when configured,
// the regular ones otherwise.
func (c *V1Client) EnsureDatabase(ctx context.Context) error {
	q := url.Values{"q": {fmt.Sprintf("CREATE DATABASE %q", c.database)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/query?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}
	if c.adminUsername != "" {
		c.decorate(req, c.adminUsername, c.adminPassword)
	} else {
		c.decorate(req, c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d: %s", ErrCreateFailed, resp.StatusCode, snippet(body))
	}
	return nil
}

// Close releases idle connections.
func (c *V1Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *V1Client) decorate(req *http.Request, username, password string) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if username != "" {
		req.SetBasicAuth(username, password)
	}
}
