package influx

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"influxrelay/internal/config"
	"influxrelay/internal/lineproto"
	"influxrelay/internal/tlsutil"
)

// Client is a write endpoint on an InfluxDB-compatible server.
type Client interface {
	// Write posts one payload. It never panics and always classifies the
	// outcome; the caller decides whether to retry.
	Write(ctx context.Context, p lineproto.Payload) Result
	// EnsureDatabase creates the target database or bucket if needed.
	EnsureDatabase(ctx context.Context) error
	Close()
}

var (
	_ Client = (*V1Client)(nil)
	_ Client = (*V2Client)(nil)
)

// New selects the client for the configured credential mode: token mode
// uses the 2.x API, otherwise the 1.x API with optional Basic auth.
func New(cfg config.InfluxConfig, timeout time.Duration, userAgent string) (Client, error) {
	var tlsConfig *tls.Config
	if tlsutil.Configured(cfg.TLS) {
		var err error
		tlsConfig, err = tlsutil.NewConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("influx: configure TLS: %w", err)
		}
	}

	if cfg.TokenMode() {
		return NewV2Client(cfg, timeout, tlsConfig), nil
	}
	return NewV1Client(cfg, timeout, userAgent, tlsConfig), nil
}

// CreateDatabase runs c.EnsureDatabase bounded by timeout. A zero timeout
// means no deadline, matching the write path.
func CreateDatabase(ctx context.Context, c Client, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.EnsureDatabase(ctx)
}
