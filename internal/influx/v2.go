package influx

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	ihttp "github.com/influxdata/influxdb-client-go/v2/api/http"

	"influxrelay/internal/config"
	"influxrelay/internal/lineproto"
)

// V2Client writes to the InfluxDB 2.x API with token authentication,
// using the blocking write API of the official client.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type V2Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking

	serverURL  string
	org        string
	bucket     string
	adminToken string
	options    func() *influxdb2.Options
}

// NewV2Client creates a client for token mode. The configured database is
// used as the bucket name. A nil tlsConfig uses the system defaults.
func NewV2Client(cfg config.InfluxConfig, timeout time.Duration, tlsConfig *tls.Config) *V2Client {
	options := func() *influxdb2.Options {
		opts := influxdb2.DefaultOptions().
			SetMaxRetries(0).
			SetHTTPRequestTimeout(uint(timeout / time.Second))
		if tlsConfig != nil {
			opts.SetTLSConfig(tlsConfig)
		}
		return opts
	}

	serverURL := strings.TrimRight(cfg.ServerURL, "/")
	client := influxdb2.NewClientWithOptions(serverURL, cfg.Token, options())

	return &V2Client{
		client:     client,
		writeAPI:   client.WriteAPIBlocking(cfg.Org, cfg.Database),
		serverURL:  serverURL,
		org:        cfg.Org,
		bucket:     cfg.Database,
		adminToken: cfg.AdminToken,
		options:    options,
	}
}

// Write posts one payload and classifies the outcome.
func (c *V2Client) Write(ctx context.Context, p lineproto.Payload) Result {
	err := c.writeAPI.WriteRecord(ctx, p.Body)
	if err == nil {
		return ok(http.StatusNoContent)
	}
	return classifyError(err)
}

// classifyError maps an error from the client library to a Result.
func classifyError(err error) Result {
	var herr *ihttp.Error
	if !errors.As(err, &herr) {
		return transient(0, fmt.Errorf("influx: write: %w", err))
	}

	switch herr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return permanent(herr.StatusCode, fmt.Errorf("%w: %s", ErrUnauthorized, herr.Error()))
	case http.StatusNotFound:
		return permanent(herr.StatusCode, fmt.Errorf("%w: %s", ErrNotFound, herr.Error()))
	default:
		if herr.StatusCode == 0 {
			return transient(0, fmt.Errorf("influx: write: %w", err))
		}
		return transient(herr.StatusCode, fmt.Errorf("%w: HTTP %d: %s", ErrUnexpectedResponse, herr.StatusCode, herr.Error()))
	}
}

// EnsureDatabase creates the bucket in the configured organization when it
// does not exist yet. The admin token is used when configured.
func (c *V2Client) EnsureDatabase(ctx context.Context) error {
	client := c.client
	if c.adminToken != "" {
		client = influxdb2.NewClientWithOptions(c.serverURL, c.adminToken, c.options())
		defer client.Close()
	}

	if _, err := client.BucketsAPI().FindBucketByName(ctx, c.bucket); err == nil {
		return nil
	}

	org, err := client.OrganizationsAPI().FindOrganizationByName(ctx, c.org)
	if err != nil {
		return fmt.Errorf("%w: find organization %q: %w", ErrCreateFailed, c.org, err)
	}
	if _, err := client.BucketsAPI().CreateBucketWithName(ctx, org, c.bucket); err != nil {
		return fmt.Errorf("%w: create bucket %q: %w", ErrCreateFailed, c.bucket, err)
	}
	return nil
}

// Close releases the underlying client.
func (c *V2Client) Close() {
	c.client.Close()
}
