package uploader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"influxrelay/internal/influx"
	"influxrelay/internal/lineproto"
	"influxrelay/internal/logger"
	"influxrelay/internal/metrics"
	"influxrelay/internal/queue"
	"influxrelay/internal/record"
	"influxrelay/internal/units"
)

// Augmenter fills a record with observations the source did not provide,
// typically from the station database.
type Augmenter interface {
	Augment(ctx context.Context, rec *record.Record) (*record.Record, error)
}

// Option customizes a Worker.
type Option func(*Worker)

// WithBreaker guards every delivery attempt with cb.
func WithBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(w *Worker) { w.breaker = cb }
}

// WithAugmenter sets the augmenter used when record augmentation is on.
func WithAugmenter(a Augmenter) Option {
	return func(w *Worker) { w.augmenter = a }
}

func withClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(w *Worker) {
		w.now = now
		w.sleep = sleep
	}
}

// Worker drains the queue and delivers one record at a time.
//
// Thread Safety: Run must be called from a single goroutine. The worker
// owns its template cache and post history.
type Worker struct {
	cfg       WorkerConfig
	queue     *queue.Queue
	client    influx.Client
	breaker   *gobreaker.CircuitBreaker
	augmenter Augmenter
	metrics   *metrics.Metrics
	logger    *logger.Logger

	// templates caches resolved templates per unit system.
	templates map[units.System]lineproto.Templates

	// lastPost is the timestamp of the last record that passed the
	// throttle, whether or not its delivery succeeded.
	lastPost int64
	posted   bool

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewWorker creates a worker reading from q and writing through client.
func NewWorker(cfg WorkerConfig, q *queue.Queue, client influx.Client, m *metrics.Metrics, log *logger.Logger, opts ...Option) *Worker {
	if cfg.MaxTries < 1 {
		cfg.MaxTries = 1
	}
	w := &Worker{
		cfg:       cfg,
		queue:     q,
		client:    client,
		metrics:   m,
		logger:    log.With("protocol", "influx"),
		templates: make(map[units.System]lineproto.Templates),
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes records until the stop sentinel is dequeued, which
// returns nil, or ctx is done, which returns the context error.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("upload worker started",
		"format", w.cfg.LineFormat,
		"selection", w.cfg.Selection,
		"maxTries", w.cfg.MaxTries)
	if w.cfg.AugmentRecord && w.augmenter == nil {
		w.logger.Info("record augmentation enabled but no augmenter configured, records are uploaded as received")
	}

	for {
		if w.cfg.MaxBacklog > 0 {
			if dropped := w.queue.TrimOldest(w.cfg.MaxBacklog); len(dropped) > 0 {
				w.logger.Debug("backlog exceeded, discarding oldest records",
					"dropped", len(dropped),
					"maxBacklog", w.cfg.MaxBacklog)
				w.metrics.RecordDropped(metrics.DropBacklog, len(dropped))
			}
		}

		rec, err := w.queue.Pop(ctx)
		if errors.Is(err, queue.ErrStopped) {
			w.logger.Info("upload worker stopped")
			return nil
		}
		if err != nil {
			w.logger.Info("upload worker cancelled", "error", err)
			return err
		}
		w.metrics.SetQueueDepth(w.queue.Len())

		w.process(ctx, rec)
	}
}

// process applies the delivery policy to one record and posts it.
func (w *Worker) process(ctx context.Context, rec *record.Record) {
	log := w.logger.With("dateTime", rec.DateTime, "origin", rec.Origin)

	if w.cfg.Stale > 0 {
		age := w.now().Sub(time.Unix(rec.DateTime, 0))
		if age > w.cfg.Stale {
			log.Debug("record is stale, skipping", "age", age)
			w.metrics.RecordDropped(metrics.DropStale, 1)
			return
		}
	}

	if w.cfg.PostInterval > 0 && w.posted {
		since := time.Duration(rec.DateTime-w.lastPost) * time.Second
		if since < w.cfg.PostInterval {
			log.Debug("wait interval has not passed, skipping", "sinceLastPost", since)
			w.metrics.RecordDropped(metrics.DropThrottled, 1)
			return
		}
	}
	w.lastPost = rec.DateTime
	w.posted = true

	if w.cfg.AugmentRecord && w.augmenter != nil {
		augmented, err := w.augmenter.Augment(ctx, rec)
		if err != nil {
			log.Warn("failed to augment record", "error", err)
		} else if augmented != nil {
			rec = augmented
		}
	}

	if w.cfg.UnitSystem != 0 {
		rec = rec.ToSystem(w.cfg.UnitSystem)
	}

	payload, err := lineproto.Encode(rec, w.templatesFor(rec), w.tagsFor(rec), w.cfg.Measurement, w.cfg.LineFormat)
	if err != nil {
		log.Error("failed to encode record", "error", err)
		w.metrics.RecordFailed("encode")
		return
	}
	for key, reason := range payload.Skipped {
		log.Debug("observation not uploaded", "observation", key, "reason", reason)
	}
	if payload.Empty() {
		log.Debug("no observations to upload")
		w.metrics.RecordDropped(metrics.DropEmpty, 1)
		return
	}

	if w.cfg.SkipUpload {
		log.Info("upload skipped", "data", payload.Body)
		w.metrics.RecordDropped(metrics.DropSkipped, 1)
		return
	}

	w.post(ctx, log, rec, payload)
}

// post delivers a payload with bounded retries. Permanent failures end
// the attempts at once.
func (w *Worker) post(ctx context.Context, log *logger.Logger, rec *record.Record, payload lineproto.Payload) {
	start := w.now()

	var res influx.Result
	attempts := 0
	for attempts < w.cfg.MaxTries {
		if ctx.Err() != nil {
			break
		}
		attempts++
		res = w.attempt(ctx, payload)
		w.metrics.RecordAttempt(res.Kind.String())

		if res.OK() {
			w.metrics.RecordPosted(len(payload.Body), w.now().Sub(start))
			if w.cfg.LogSuccess {
				log.Info("published record", "fields", payload.Fields, "attempts", attempts)
			}
			return
		}
		if res.Kind == influx.Permanent {
			break
		}

		log.Debug("upload attempt failed",
			"attempt", attempts,
			"status", res.StatusCode,
			"error", res.Err)
		if attempts < w.cfg.MaxTries {
			if err := w.sleep(ctx, w.cfg.RetryWait); err != nil {
				break
			}
		}
	}

	if res.Err == nil {
		res = influx.Result{Kind: influx.Transient, Err: ctx.Err()}
	}
	w.metrics.RecordFailed(res.Kind.String())
	if w.cfg.LogFailure {
		log.Error("failed to upload record",
			"attempts", attempts,
			"kind", res.Kind.String(),
			"status", res.StatusCode,
			"error", res.Err)
	}
}

// attempt performs one write, through the breaker when configured. Only
// transient failures count against the breaker.
func (w *Worker) attempt(ctx context.Context, payload lineproto.Payload) influx.Result {
	if w.breaker == nil {
		return w.client.Write(ctx, payload)
	}

	var res influx.Result
	_, err := w.breaker.Execute(func() (interface{}, error) {
		res = w.client.Write(ctx, payload)
		if res.Kind == influx.Transient {
			return nil, res.Err
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return influx.Result{Kind: influx.Transient, Err: fmt.Errorf("influx: circuit breaker: %w", err)}
	}
	return res
}

// templatesFor returns the templates for rec, resolving any observation
// not seen before. With SelectNone the templates come from the inputs only
// and are built once.
func (w *Worker) templatesFor(rec *record.Record) lineproto.Templates {
	tmpls, ok := w.templates[rec.UnitSystem]
	if !ok {
		tmpls = make(lineproto.Templates)
		w.templates[rec.UnitSystem] = tmpls
		if w.cfg.Selection == SelectNone {
			for key, ov := range w.cfg.Inputs {
				tmpls[key] = lineproto.Resolve(key, ov, w.cfg.AppendUnitsLabel, rec.UnitSystem)
			}
		}
	}
	if w.cfg.Selection == SelectNone {
		return tmpls
	}

	for key := range rec.Values {
		if _, seen := tmpls[key]; seen {
			continue
		}
		ov, explicit := w.cfg.Inputs[key]
		if w.cfg.Selection == SelectMost && !explicit && housekeeping(key) {
			continue
		}
		tmpls[key] = lineproto.Resolve(key, ov, w.cfg.AppendUnitsLabel, rec.UnitSystem)
	}
	return tmpls
}

func (w *Worker) tagsFor(rec *record.Record) string {
	if w.cfg.TagBinding && rec.Origin != "" {
		return lineproto.JoinTags(w.cfg.Tags, "binding="+string(rec.Origin))
	}
	return lineproto.JoinTags(w.cfg.Tags)
}

// housekeeping reports whether an observation describes the station
// hardware rather than the weather.
func housekeeping(key string) bool {
	switch key {
	case "interval", "rxCheckPercent":
		return true
	}
	return strings.HasSuffix(key, "BatteryStatus") ||
		strings.HasSuffix(key, "Voltage") ||
		strings.HasPrefix(key, "signal")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
