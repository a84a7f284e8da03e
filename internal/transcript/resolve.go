package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"copyengine/internal/config"
	"copyengine/internal/fieldpath"
	"copyengine/internal/logging"
	"copyengine/internal/services"
)

const (
	mobileUserAgent     = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	playableLookupLimit = 10 * time.Second
	responseSnippet     = 500
)

var routerDataPattern = regexp.MustCompile(`(?is)window\._ROUTER_DATA\s*=\s*(.*?)</script>`)

var resolverURLPaths = []string{
	"videoUrl",
	"video_url",
	"url",
	"data.videoUrl",
	"data.video_url",
	"data.url",
	"result.videoUrl",
	"result.video_url",
	"result.url",
}

var routerVideoPaths = []string{
	"loaderData.video_(id)/page.videoInfoRes.item_list.0.video.play_addr.url_list.0",
	"loaderData.video_(id)/page.videoInfoRes.item_list.0.video.play_addr_h264.url_list.0",
	"loaderData.video_(id)/page.videoInfoRes.item_list.0.video.download_addr.url_list.0",
	"loaderData.video_(id)/page.videoInfoRes.item_list.0.video.bit_rate.0.play_addr.url_list.0",
	"loaderData.video_layout.videoInfoRes.item_list.0.video.play_addr.url_list.0",
	"loaderData.video_layout.videoInfoRes.item_list.0.video.download_addr.url_list.0",
	"data.videoUrl",
	"videoUrl",
}

// Resolver turns a share link into a media URL a speech service can fetch.
type Resolver struct {
	apiURL     string
	apiKey     string
	fieldPath  string
	timeout    time.Duration
	client     *http.Client
	noRedirect *http.Client
	logger     *slog.Logger
}

// NewResolver builds a resolver from the resolver section of cfg. A nil client
// uses http.DefaultClient's transport.
func NewResolver(cfg *config.Config, client *http.Client, logger *slog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{}
	}
	noRedirect := *client
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	r := &Resolver{
		timeout:    config.Millis(15000),
		client:     client,
		noRedirect: &noRedirect,
		logger:     logging.NewComponentLogger(logger, "resolver"),
	}
	if cfg != nil {
		r.apiURL = cfg.Resolver.APIURL
		r.apiKey = cfg.Resolver.APIKey
		r.fieldPath = cfg.Resolver.VideoURLFieldPath
		if cfg.Resolver.TimeoutMS > 0 {
			r.timeout = config.Millis(cfg.Resolver.TimeoutMS)
		}
	}
	return r
}

// Resolve returns the media URL behind rawURL. Direct media links are used as
// they are; otherwise the external resolver is tried first and the built-in
// share-page reader second. When both fail the error carries both reasons.
func (r *Resolver) Resolve(ctx context.Context, rawURL, shareText string) (string, error) {
	if IsDirectMediaURL(rawURL) {
		return r.normalizeMediaURL(ctx, rawURL), nil
	}

	logger := logging.WithContext(ctx, r.logger)
	var resolverReason string
	if r.apiURL != "" {
		videoURL, err := r.resolveViaAPI(ctx, rawURL, shareText)
		if err == nil {
			logger.Info("share link resolved by resolver service",
				logging.String(logging.FieldEventType, "resolve_api_succeeded"),
			)
			return r.normalizeMediaURL(ctx, videoURL), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		resolverReason = services.Message(err)
		logging.WarnWithContext(logger, "resolver service failed", "resolve_api_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check resolver.api_url and resolver.api_key"),
			logging.String(logging.FieldImpact, "falling back to the built-in share page reader"),
		)
	}

	videoURL, reason := r.resolveViaPage(ctx, rawURL)
	if videoURL != "" {
		logger.Info("share link resolved from share page",
			logging.String(logging.FieldEventType, "resolve_page_succeeded"),
		)
		return r.normalizeMediaURL(ctx, videoURL), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if reason == "" {
		reason = "built-in resolver found no video url"
	}
	if resolverReason != "" {
		return "", services.Fail(services.ErrResolveFailed, resolverReason+"; and "+reason, nil)
	}
	return "", services.Fail(services.ErrResolveFailed, fmt.Sprintf(
		"share link is a page, not a direct media link. %s. configure resolver api_url to resolve share links, or pass a direct media url.",
		reason,
	), nil)
}

func (r *Resolver) resolveViaAPI(ctx context.Context, rawURL, shareText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"shareText": shareText, "url": rawURL})
	if err != nil {
		return "", services.Fail(services.ErrResolveFailed, "encode resolver request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", services.Fail(services.ErrResolveFailed, "build resolver request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", services.Fail(services.ErrResolveFailed, fmt.Sprintf("resolver request failed: %v", err), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Fail(services.ErrResolveFailed, fmt.Sprintf("read resolver response: %v", err), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", services.Fail(services.ErrResolveFailed, fmt.Sprintf(
			"resolver returned status %d, response: %s", resp.StatusCode, snippet(body, responseSnippet),
		), nil)
	}
	if !fieldpath.Valid(body) {
		return "", services.Fail(services.ErrResolveFailed, "resolver returned invalid json", nil)
	}
	videoURL, ok := fieldpath.First(body, r.fieldPath, resolverURLPaths...)
	if !ok {
		return "", services.Fail(services.ErrResolveFailed, "resolver returned no video url", nil)
	}
	return videoURL, nil
}

// resolveViaPage reads the share page's embedded router data. It never fails;
// an empty URL comes with the reason the page could not be used.
func (r *Resolver) resolveViaPage(ctx context.Context, rawURL string) (string, string) {
	if !IsSharePageURL(rawURL) {
		return "", "link is not a douyin share page"
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Sprintf("built-in resolver error: %v", err)
	}
	req.Header.Set("User-Agent", mobileUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Referer", "https://www.douyin.com/")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || services.IsTimeout(err) {
			return "", "built-in resolver timed out"
		}
		return "", fmt.Sprintf("built-in resolver error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Sprintf("built-in resolver request failed with status %d", resp.StatusCode)
	}
	html, err := io.ReadAll(resp.Body)
	if err != nil {
		if services.IsTimeout(err) {
			return "", "built-in resolver timed out"
		}
		return "", fmt.Sprintf("built-in resolver error: %v", err)
	}
	routerData, ok := extractRouterData(html)
	if !ok {
		return "", "built-in resolver found no _ROUTER_DATA on the page"
	}
	if !fieldpath.Valid(routerData) {
		return "", "built-in resolver could not parse _ROUTER_DATA"
	}
	videoURL, ok := VideoURLFromRouterData(routerData)
	if !ok {
		return "", "built-in resolver found no video url in _ROUTER_DATA"
	}
	return videoURL, ""
}

func extractRouterData(html []byte) ([]byte, bool) {
	match := routerDataPattern.FindSubmatch(html)
	if match == nil {
		return nil, false
	}
	data := bytes.TrimSpace(match[1])
	data = bytes.TrimSpace(bytes.TrimSuffix(data, []byte(";")))
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// VideoURLFromRouterData probes the known locations of the playable URL inside
// a share page's router data document.
func VideoURLFromRouterData(doc []byte) (string, bool) {
	return fieldpath.First(doc, "", routerVideoPaths...)
}

// normalizeMediaURL swaps a playable-API URL for the CDN address it redirects
// to. Any failure keeps the original URL.
func (r *Resolver) normalizeMediaURL(ctx context.Context, mediaURL string) string {
	if !isPlayableAPIURL(mediaURL) {
		return mediaURL
	}
	ctx, cancel := context.WithTimeout(ctx, playableLookupLimit)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return mediaURL
	}
	req.Header.Set("User-Agent", mobileUserAgent)
	resp, err := r.noRedirect.Do(req)
	if err != nil {
		return mediaURL
	}
	_ = resp.Body.Close()
	location := strings.TrimSpace(resp.Header.Get("Location"))
	if location == "" {
		return mediaURL
	}
	if cleaned := sanitizeURL(location); cleaned != "" {
		return cleaned
	}
	return mediaURL
}

func snippet(body []byte, limit int) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty"
	}
	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return text
}
