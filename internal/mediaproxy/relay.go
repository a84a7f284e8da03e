package mediaproxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"copyengine/internal/config"
	"copyengine/internal/logging"
	"copyengine/internal/services"
)

// RoutePrefix is the path under which relay URLs are served.
const RoutePrefix = "/api/media-proxy/"

const (
	defaultTTL        = 10 * time.Minute
	defaultMaxRecords = 200
	mobileUserAgent   = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	errorBodyLimit    = 300
)

// HTTPDoer describes the HTTP client used to fetch upstream media.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type record struct {
	source    string
	createdAt time.Time
	expiresAt time.Time
}

// Relay maps tokens to upstream media URLs and streams them on request.
type Relay struct {
	mu         sync.Mutex
	records    map[string]record
	ttl        time.Duration
	maxRecords int
	client     HTTPDoer
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes a Relay.
type Option func(*Relay)

// WithHTTPClient overrides the upstream client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(r *Relay) {
		if client != nil {
			r.client = client
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRelay builds a relay using the media_proxy section of cfg.
func NewRelay(cfg *config.Config, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		records:    make(map[string]record),
		ttl:        defaultTTL,
		maxRecords: defaultMaxRecords,
		client:     http.DefaultClient,
		logger:     logging.NewComponentLogger(logger, "media-proxy"),
		now:        time.Now,
	}
	if cfg != nil {
		if cfg.MediaProxy.TTLSeconds > 0 {
			r.ttl = time.Duration(cfg.MediaProxy.TTLSeconds) * time.Second
		}
		if cfg.MediaProxy.MaxRecords > 0 {
			r.maxRecords = cfg.MediaProxy.MaxRecords
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateProxyURL registers source and returns its relay URL under baseURL.
// It returns false when baseURL is not publicly reachable, since a remote
// consumer could not fetch the relay anyway.
func (r *Relay) CreateProxyURL(source, baseURL string) (string, bool) {
	base := NormalizeBaseURL(baseURL)
	if base == "" || !IsPublicBaseURL(base) {
		return "", false
	}
	now := r.now()
	token := uuid.NewString()

	r.mu.Lock()
	r.sweepLocked(now)
	if len(r.records) >= r.maxRecords {
		r.evictOldestLocked()
	}
	r.records[token] = record{source: source, createdAt: now, expiresAt: now.Add(r.ttl)}
	r.mu.Unlock()

	return base + RoutePrefix + token, true
}

// Len reports how many live tokens are held.
func (r *Relay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Sweep drops expired tokens every interval until ctx is done.
func (r *Relay) Sweep(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.mu.Lock()
			removed := r.sweepLocked(r.now())
			r.mu.Unlock()
			if removed > 0 {
				r.logger.Debug("expired relay tokens dropped", logging.Int("removed", removed))
			}
		}
	}
}

func (r *Relay) lookup(token string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweepLocked(now)
	rec, ok := r.records[token]
	if !ok {
		return "", false
	}
	return rec.source, true
}

func (r *Relay) sweepLocked(now time.Time) int {
	removed := 0
	for token, rec := range r.records {
		if !rec.expiresAt.After(now) {
			delete(r.records, token)
			removed++
		}
	}
	return removed
}

func (r *Relay) evictOldestLocked() {
	var oldest string
	var oldestAt time.Time
	for token, rec := range r.records {
		if oldest == "" || rec.createdAt.Before(oldestAt) {
			oldest, oldestAt = token, rec.createdAt
		}
	}
	if oldest != "" {
		delete(r.records, oldest)
	}
}

// ServeHTTP streams the media behind the {token} path value. Range requests
// are passed through so players can seek.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	token := strings.TrimSpace(req.PathValue("token"))
	if token == "" {
		token = strings.Trim(strings.TrimPrefix(req.URL.Path, RoutePrefix), "/")
	}
	if token == "" {
		writeError(w, http.StatusBadRequest, services.CodeInvalidInput, "missing token")
		return
	}
	source, ok := r.lookup(token)
	if !ok {
		writeError(w, http.StatusNotFound, services.CodeNotFound, "media token expired or not found")
		return
	}

	upstreamReq, err := http.NewRequestWithContext(req.Context(), http.MethodGet, source, nil)
	if err != nil {
		writeError(w, http.StatusBadGateway, codeUpstreamFetchFailed, err.Error())
		return
	}
	upstreamReq.Header.Set("User-Agent", mobileUserAgent)
	upstreamReq.Header.Set("Accept", "*/*")
	if needsDouyinReferer(source) {
		upstreamReq.Header.Set("Referer", "https://www.douyin.com/")
		upstreamReq.Header.Set("Origin", "https://www.douyin.com")
	}
	if rangeHeader := strings.TrimSpace(req.Header.Get("Range")); rangeHeader != "" {
		upstreamReq.Header.Set("Range", rangeHeader)
	}

	resp, err := r.client.Do(upstreamReq)
	if err != nil {
		if errors.Is(req.Context().Err(), context.Canceled) {
			return
		}
		logging.WarnWithContext(r.logger, "media relay fetch failed", "media_proxy_fetch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "upstream media URL may have expired"),
			logging.String(logging.FieldImpact, "remote consumer cannot download media"),
		)
		writeError(w, http.StatusBadGateway, codeUpstreamFetchFailed, err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		text := strings.TrimSpace(string(body))
		if text == "" {
			text = "empty"
		}
		writeError(w, http.StatusBadGateway, codeUpstreamFetchFailed, fmt.Sprintf("status=%d, body=%s", resp.StatusCode, text))
		return
	}

	header := w.Header()
	header.Set("Content-Type", headerOr(resp.Header, "Content-Type", "application/octet-stream"))
	header.Set("Accept-Ranges", headerOr(resp.Header, "Accept-Ranges", "bytes"))
	header.Set("Cache-Control", "private, max-age=60")
	if v := resp.Header.Get("Content-Length"); v != "" {
		header.Set("Content-Length", v)
	}
	if v := resp.Header.Get("Content-Range"); v != "" {
		header.Set("Content-Range", v)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil && req.Context().Err() == nil {
		r.logger.Debug("media relay stream interrupted", logging.Error(err))
	}
}

const codeUpstreamFetchFailed services.ErrorCode = "UPSTREAM_FETCH_FAILED"

func needsDouyinReferer(source string) bool {
	lower := strings.ToLower(source)
	for _, marker := range []string{"douyin", "aweme.snssdk.com", "douyinvod.com", "bytecdn.cn"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func headerOr(h http.Header, key, fallback string) string {
	if v := strings.TrimSpace(h.Get(key)); v != "" {
		return v
	}
	return fallback
}

func writeError(w http.ResponseWriter, status int, code services.ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"errorCode":    string(code),
		"errorMessage": message,
	})
}
