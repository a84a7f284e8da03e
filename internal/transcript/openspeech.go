package transcript

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"copyengine/internal/fieldpath"
	"copyengine/internal/logging"
	"copyengine/internal/services"
)

const (
	defaultFlashResource  = "volc.bigasr.auc_turbo"
	defaultSubmitResource = "volc.seedasr.auc"
	defaultSpeechModel    = "bigmodel"
	singleKeyUser         = "single-key-user"
	querySnippet          = 2000

	statusDone       = "20000000"
	statusProcessing = "20000001"
	statusQueued     = "20000002"
)

var (
	fallbackResources = []string{"volc.seedasr.auc", "volc.bigasr.auc", "volc.bigasr.auc_turbo"}
	denialMarkers     = []string{"requested grant not found", "is not allowed", "45000010", "45000000"}
	submitSuffix      = regexp.MustCompile(`(?i)/submit/?$`)
)

func newRequestID() string {
	return uuid.NewString()
}

// isDenied reports whether an OpenSpeech failure means the account has no
// grant for the resource, as opposed to a real request error.
func isDenied(message string) bool {
	return containsAny(strings.ToLower(message), denialMarkers)
}

func (t *Transcriber) hasSpeechCredentials() bool {
	return t.apiKey != "" || (t.appKey != "" && t.accessKey != "")
}

func (t *Transcriber) resourceCandidates(fallback string) []string {
	first := t.resourceID
	if first == "" {
		first = fallback
	}
	candidates := []string{first}
	for _, resource := range fallbackResources {
		if !slices.Contains(candidates, resource) {
			candidates = append(candidates, resource)
		}
	}
	return candidates
}

func (t *Transcriber) speechBody(mediaURL string) ([]byte, error) {
	uid := t.appKey
	if uid == "" {
		uid = singleKeyUser
	}
	model := t.model
	if model == "" {
		model = defaultSpeechModel
	}
	doc := []byte(`{}`)
	var err error
	for _, field := range []struct{ path, value string }{
		{"user.uid", uid},
		{"audio.url", mediaURL},
		{"request.model_name", model},
	} {
		if doc, err = sjson.SetBytes(doc, field.path, field.value); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func entitlementError(candidates []string) error {
	return services.Fail(services.ErrASRFailed, fmt.Sprintf(
		"openspeech entitlement insufficient: no grant for resources %s. enable one in the volcengine console or configure a granted asr resource_id",
		strings.Join(candidates, ", "),
	), nil)
}

func (t *Transcriber) logDenied(ctx context.Context, resource string, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, t.logger), "openspeech resource not granted", "asr_resource_denied",
		logging.String("resource_id", resource),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "enable the resource in the volcengine console"),
		logging.String(logging.FieldImpact, "trying the next resource"),
	)
}

// transcribeFlash calls the one-shot recognize endpoint, walking resource
// candidates while the account is denied access.
func (t *Transcriber) transcribeFlash(ctx context.Context, mediaURL string) (string, error) {
	if !t.hasSpeechCredentials() {
		return "", services.Fail(services.ErrASRFailed,
			"openspeech flash needs asr api_key, or app_key and access_key", nil)
	}
	body, err := t.speechBody(mediaURL)
	if err != nil {
		return "", services.Fail(services.ErrASRFailed, "encode openspeech request", err)
	}
	candidates := t.resourceCandidates(defaultFlashResource)
	for _, resource := range candidates {
		text, denied, err := t.flashOnce(ctx, resource, body)
		if err == nil {
			return text, nil
		}
		if !denied {
			return "", err
		}
		t.logDenied(ctx, resource, err)
	}
	return "", entitlementError(candidates)
}

func (t *Transcriber) flashOnce(ctx context.Context, resource string, payload []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", false, services.Fail(services.ErrASRFailed, "build openspeech request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Resource-Id", resource)
	req.Header.Set("X-Api-Request-Id", t.newID())
	req.Header.Set("X-Api-Sequence", "-1")
	if t.appKey != "" {
		req.Header.Set("X-Api-App-Key", t.appKey)
	}
	if t.accessKey != "" {
		req.Header.Set("X-Api-Access-Key", t.accessKey)
	}
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
		if t.accessKey == "" {
			req.Header.Set("X-Api-Access-Key", t.apiKey)
		}
		if t.appKey == "" {
			req.Header.Set("X-Api-App-Key", t.apiKey)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", false, services.Fail(services.ErrASRFailed, fmt.Sprintf("openspeech flash request failed: %v", err), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, services.Fail(services.ErrASRFailed, fmt.Sprintf("read openspeech response: %v", err), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := fmt.Sprintf("openspeech flash returned status %d, response: %s, resource_id=%s",
			resp.StatusCode, snippet(body, responseSnippet), resource)
		return "", isDenied(string(body)), services.Fail(services.ErrASRFailed, message, nil)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte(`{}`)
	}
	if !fieldpath.Valid(body) {
		return "", false, services.Fail(services.ErrASRFailed,
			"openspeech flash response is not json, resource_id="+resource, nil)
	}
	if code, ok := fieldpath.Int(body, "header.code"); ok && code != 0 {
		headerMessage, _ := fieldpath.String(body, "header.message")
		message := fmt.Sprintf("openspeech flash failed code=%d message=%s, resource_id=%s",
			code, orUnknown(headerMessage), resource)
		denied := isDenied(headerMessage) || isDenied(strconv.FormatInt(code, 10))
		return "", denied, services.Fail(services.ErrASRFailed, message, nil)
	}
	text, ok := fieldpath.First(body, t.textPath, "result.text")
	if !ok {
		return "", false, services.Fail(services.ErrASRFailed,
			"openspeech flash returned no result.text; check asr text_field_path, resource_id="+resource, nil)
	}
	return text, false, nil
}

// transcribeSubmit submits a recognition task and polls the sibling query
// endpoint until it finishes.
func (t *Transcriber) transcribeSubmit(ctx context.Context, mediaURL string) (string, error) {
	if !t.hasSpeechCredentials() {
		return "", services.Fail(services.ErrASRFailed,
			"openspeech submit needs asr api_key, or app_key and access_key", nil)
	}
	body, err := t.speechBody(mediaURL)
	if err != nil {
		return "", services.Fail(services.ErrASRFailed, "encode openspeech request", err)
	}
	queryURL := submitSuffix.ReplaceAllString(t.apiURL, "/query")
	candidates := t.resourceCandidates(defaultSubmitResource)
	for _, resource := range candidates {
		requestID := t.newID()
		logID, denied, err := t.submitOnce(ctx, resource, requestID, body)
		if err != nil {
			if !denied {
				return "", err
			}
			t.logDenied(ctx, resource, err)
			continue
		}
		text, denied, err := t.pollQuery(ctx, queryURL, resource, requestID, logID)
		if err == nil {
			return text, nil
		}
		if !denied {
			return "", err
		}
		t.logDenied(ctx, resource, err)
	}
	return "", entitlementError(candidates)
}

func (t *Transcriber) submitHeaders(h http.Header, resource, requestID, logID string) {
	h.Set("Content-Type", "application/json")
	h.Set("X-Api-Resource-Id", resource)
	h.Set("X-Api-Request-Id", requestID)
	h.Set("X-Api-Sequence", "-1")
	if t.appKey != "" {
		h.Set("X-Api-App-Key", t.appKey)
	}
	if t.accessKey != "" {
		h.Set("X-Api-Access-Key", t.accessKey)
	}
	if t.apiKey != "" {
		h.Set("X-Api-Key", t.apiKey)
	}
	if logID != "" {
		h.Set("X-Tt-Logid", logID)
	}
}

func (t *Transcriber) submitOnce(ctx context.Context, resource, requestID string, payload []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", false, services.Fail(services.ErrASRFailed, "build openspeech submit request", err)
	}
	t.submitHeaders(req.Header, resource, requestID, "")
	resp, err := t.client.Do(req)
	if err != nil {
		return "", false, services.Fail(services.ErrASRFailed, fmt.Sprintf("openspeech submit request failed: %v", err), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, services.Fail(services.ErrASRFailed, fmt.Sprintf("read openspeech submit response: %v", err), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := fmt.Sprintf("openspeech submit returned status %d, response: %s, resource_id=%s",
			resp.StatusCode, snippet(body, responseSnippet), resource)
		return "", isDenied(string(body)), services.Fail(services.ErrASRFailed, message, nil)
	}
	if code := resp.Header.Get("X-Api-Status-Code"); code != "" && code != statusDone && code != statusProcessing && code != statusQueued {
		message := fmt.Sprintf("openspeech submit failed code=%s message=%s, resource_id=%s",
			code, orUnknown(resp.Header.Get("X-Api-Message")), resource)
		return "", isDenied(message), services.Fail(services.ErrASRFailed, message, nil)
	}
	return resp.Header.Get("X-Tt-Logid"), false, nil
}

func (t *Transcriber) pollQuery(ctx context.Context, queryURL, resource, requestID, logID string) (string, bool, error) {
	logger := logging.WithContext(ctx, t.logger)
	for i := 0; i < t.maxPolls; i++ {
		last := i == t.maxPolls-1
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, queryURL, strings.NewReader(`{}`))
		if err != nil {
			return "", false, services.Fail(services.ErrASRFailed, "build openspeech query request", err)
		}
		t.submitHeaders(req.Header, resource, requestID, logID)
		resp, err := t.client.Do(req)
		if err != nil {
			return "", false, services.Fail(services.ErrASRFailed, fmt.Sprintf("openspeech query request failed: %v", err), err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", false, services.Fail(services.ErrASRFailed, fmt.Sprintf("read openspeech query response: %v", err), err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			message := fmt.Sprintf("openspeech query returned status %d, response: %s, resource_id=%s",
				resp.StatusCode, snippet(body, querySnippet), resource)
			return "", isDenied(message), services.Fail(services.ErrASRFailed, message, nil)
		}
		statusCode := resp.Header.Get("X-Api-Status-Code")
		if statusCode == statusProcessing || statusCode == statusQueued {
			logger.Debug("openspeech task pending", logging.Int(logging.FieldAttempt, i+1), logging.String("status_code", statusCode))
			if err := t.sleep(ctx, t.pollInterval); err != nil {
				return "", false, err
			}
			continue
		}
		if statusCode != "" && statusCode != statusDone {
			message := fmt.Sprintf("openspeech query failed code=%s message=%s, resource_id=%s",
				statusCode, orUnknown(resp.Header.Get("X-Api-Message")), resource)
			return "", isDenied(message), services.Fail(services.ErrASRFailed, message, nil)
		}

		if len(bytes.TrimSpace(body)) == 0 || !fieldpath.Valid(body) {
			if !last {
				if err := t.sleep(ctx, t.pollInterval); err != nil {
					return "", false, err
				}
				continue
			}
			if len(bytes.TrimSpace(body)) == 0 {
				return "", false, services.Fail(services.ErrASRFailed, "openspeech query returned an empty response", nil)
			}
			return "", false, services.Fail(services.ErrASRFailed, "openspeech query response is not json", nil)
		}

		if code, ok := fieldpath.Int(body, "header.code"); ok && code != 0 {
			headerMessage, _ := fieldpath.String(body, "header.message")
			if headerMessage == "" {
				headerMessage = resp.Header.Get("X-Api-Message")
			}
			message := fmt.Sprintf("openspeech query failed code=%d message=%s, resource_id=%s",
				code, orUnknown(headerMessage), resource)
			return "", isDenied(message), services.Fail(services.ErrASRFailed, message, nil)
		}
		if text, ok := fieldpath.First(body, t.textPath, "result.text"); ok {
			return text, false, nil
		}
		return "", false, services.Fail(services.ErrASRFailed,
			"openspeech query finished without text; check asr text_field_path, resource_id="+resource, nil)
	}
	return "", false, services.Fail(services.ErrASRFailed,
		fmt.Sprintf("openspeech query still pending after %d polls, resource_id=%s", t.maxPolls, resource), nil)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
