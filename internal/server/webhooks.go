package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"hrdesign/internal/config"
	"hrdesign/internal/domain"
	"hrdesign/internal/engine"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// hookTarget is one enabled webhook with its own delivery cursor.
type hookTarget struct {
	url    string
	secret string
	types  map[string]bool // nil accepts every event type
	client *http.Client

	started bool
	cursor  int64
}

func (h *hookTarget) wants(eventType string) bool {
	return h.types == nil || h.types[eventType]
}

type webhookDispatcher struct {
	engine  engine.Engine
	logger  *slog.Logger
	mu      sync.Mutex
	targets []*hookTarget
}

// StartWebhooks posts every new audit event to the configured webhooks until ctx is done.
// Each hook starts from the newest event at startup; history is not replayed.
func StartWebhooks(ctx context.Context, e engine.Engine, logger *slog.Logger) {
	d := newWebhookDispatcher(e, logger)
	if d == nil {
		return
	}
	go d.run(ctx, defaultWebhookInterval)
}

// newWebhookDispatcher returns nil when no webhook is enabled.
func newWebhookDispatcher(e engine.Engine, logger *slog.Logger) *webhookDispatcher {
	if e.Config == nil {
		return nil
	}
	targets := buildTargets(e.Config.Webhooks)
	if len(targets) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &webhookDispatcher{engine: e, logger: logger.With("component", "webhooks"), targets: targets}
}

func buildTargets(hooks []config.WebhookConfig) []*hookTarget {
	shared := &http.Client{Timeout: defaultWebhookTimeout}
	var out []*hookTarget
	for _, hook := range hooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		u := strings.TrimSpace(hook.URL)
		if u == "" {
			continue
		}
		t := &hookTarget{url: u, secret: strings.TrimSpace(hook.Secret), client: shared}
		if hook.TimeoutSeconds > 0 {
			t.client = &http.Client{Timeout: time.Duration(hook.TimeoutSeconds) * time.Second}
		}
		for _, evt := range hook.Events {
			if evt = strings.TrimSpace(evt); evt != "" {
				if t.types == nil {
					t.types = map[string]bool{}
				}
				t.types[evt] = true
			}
		}
		out = append(out, t)
	}
	return out
}

func (d *webhookDispatcher) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		d.dispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *webhookDispatcher) dispatchAll(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.targets {
		if !t.started {
			latest, err := d.engine.Repo.LatestEventID(ctx, "")
			if err != nil {
				d.logger.Error("init cursor failed", "url", t.url, "error", err)
				continue
			}
			t.cursor, t.started = latest, true
		}
		d.deliver(ctx, t)
	}
}

// deliver sends events after the target's cursor in order and stops at the first failure,
// so the failed event is retried on the next tick.
func (d *webhookDispatcher) deliver(ctx context.Context, t *hookTarget) {
	batch, err := d.engine.Repo.EventsAfter(ctx, defaultWebhookBatch, t.cursor, "")
	if err != nil {
		d.logger.Error("fetch events failed", "error", err)
		return
	}
	for _, evt := range batch {
		if t.wants(evt.Type) {
			if err := d.post(ctx, t, evt); err != nil {
				d.logger.Warn("delivery failed", "url", t.url, "event_id", evt.ID, "error", err)
				return
			}
			d.logger.Debug("delivered", "url", t.url, "event_id", evt.ID, "type", evt.Type)
		}
		t.cursor = evt.ID
	}
}

func (d *webhookDispatcher) post(ctx context.Context, t *hookTarget, evt domain.Event) error {
	data, err := json.Marshal(eventResponse(evt))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hrdesign-Event", evt.Type)
	req.Header.Set("X-Hrdesign-Delivery", strconv.FormatInt(evt.ID, 10))
	if evt.ProjectID != "" {
		req.Header.Set("X-Hrdesign-Project", evt.ProjectID)
	}
	if t.secret != "" {
		req.Header.Set("X-Hrdesign-Secret", t.secret)
	}
	res, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
