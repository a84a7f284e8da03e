package transcript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/tidwall/sjson"

	"copyengine/internal/config"
	"copyengine/internal/fieldpath"
	"copyengine/internal/logging"
	"copyengine/internal/services"
)

var (
	chatEndpointPattern   = regexp.MustCompile(`(?i)/chat/completions/?$`)
	flashEndpointPattern  = regexp.MustCompile(`(?i)openspeech\.bytedance\.com/api/v3/auc/bigmodel/recognize/flash/?$`)
	submitEndpointPattern = regexp.MustCompile(`(?i)openspeech\.bytedance\.com/api/v3/auc/bigmodel/submit/?$`)
)

var transcriptTextPaths = []string{
	"transcriptText",
	"text",
	"result",
	"data.transcriptText",
	"data.text",
	"data.result",
	"payload.text",
	"payload.result",
}

// HTTPDoer describes the HTTP client used by the speech endpoints.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Transcriber sends media to the configured speech recognition endpoint. The
// endpoint URL decides the protocol: OpenSpeech flash, OpenSpeech
// submit/query, or a generic JSON service.
type Transcriber struct {
	apiURL       string
	apiKey       string
	appKey       string
	accessKey    string
	resourceID   string
	model        string
	textPath     string
	timeout      time.Duration
	pollInterval time.Duration
	maxPolls     int
	allowMock    bool
	client       HTTPDoer
	sleep        func(context.Context, time.Duration) error
	newID        func() string
	logger       *slog.Logger
}

// TranscriberOption customizes a Transcriber.
type TranscriberOption func(*Transcriber)

// WithASRClient overrides the HTTP client.
func WithASRClient(client HTTPDoer) TranscriberOption {
	return func(t *Transcriber) {
		if client != nil {
			t.client = client
		}
	}
}

// WithPollSleeper overrides how the submit/query protocol waits between polls.
func WithPollSleeper(sleep func(context.Context, time.Duration) error) TranscriberOption {
	return func(t *Transcriber) {
		if sleep != nil {
			t.sleep = sleep
		}
	}
}

// NewTranscriber builds a transcriber from the asr section of cfg.
func NewTranscriber(cfg *config.Config, logger *slog.Logger, opts ...TranscriberOption) *Transcriber {
	defaults := config.Default()
	if cfg == nil {
		cfg = &defaults
	}
	t := &Transcriber{
		apiURL:       cfg.ASR.APIURL,
		apiKey:       cfg.ASR.APIKey,
		appKey:       cfg.ASR.AppKey,
		accessKey:    cfg.ASR.AccessKey,
		resourceID:   cfg.ASR.ResourceID,
		model:        cfg.ASR.Model,
		textPath:     cfg.ASR.TextFieldPath,
		timeout:      config.Millis(positiveOr(cfg.ASR.TimeoutMS, defaults.ASR.TimeoutMS)),
		pollInterval: config.Millis(positiveOr(cfg.ASR.PollIntervalMS, defaults.ASR.PollIntervalMS)),
		maxPolls:     positiveOr(cfg.ASR.MaxPolls, defaults.ASR.MaxPolls),
		allowMock:    cfg.ASR.AllowMock,
		client:       http.DefaultClient,
		sleep:        sleepContext,
		newID:        newRequestID,
		logger:       logging.NewComponentLogger(logger, "asr"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe returns the transcript of the media at mediaURL. Every protocol
// runs under the configured asr timeout; running out of time is reported as
// ASR_TIMEOUT and any other failure as ASR_FAILED.
func (t *Transcriber) Transcribe(ctx context.Context, mediaURL, shareText string) (string, error) {
	if t.apiURL == "" {
		if t.allowMock {
			logging.WithContext(ctx, t.logger).Info("asr endpoint not configured; using placeholder transcript",
				logging.String(logging.FieldEventType, "asr_mock_transcript"),
			)
			return fmt.Sprintf("这是根据抖音链接生成的模拟旁白转写文本。原始分享内容：%s。视频地址：%s。", shareText, mediaURL), nil
		}
		return "", services.Fail(services.ErrASRFailed,
			"asr endpoint not configured. set asr api_url and api_key, or enable asr allow_mock", nil)
	}
	if chatEndpointPattern.MatchString(t.apiURL) {
		return "", services.Fail(services.ErrASRFailed,
			"asr api_url points at a chat completions endpoint; configure a speech transcription endpoint", nil)
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var (
		text string
		err  error
	)
	switch {
	case flashEndpointPattern.MatchString(t.apiURL):
		text, err = t.transcribeFlash(ctx, mediaURL)
	case submitEndpointPattern.MatchString(t.apiURL):
		text, err = t.transcribeSubmit(ctx, mediaURL)
	default:
		text, err = t.transcribeGeneric(ctx, mediaURL)
	}
	if err == nil {
		return text, nil
	}
	if parentErr := parent.Err(); parentErr != nil {
		return "", parentErr
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || services.IsTimeout(err) {
		return "", services.Fail(services.ErrASRTimeout, fmt.Sprintf("asr timed out after %s", t.timeout), err)
	}
	if services.Code(err) == services.CodeInternal {
		return "", services.Fail(services.ErrASRFailed, err.Error(), err)
	}
	return "", err
}

func (t *Transcriber) transcribeGeneric(ctx context.Context, mediaURL string) (string, error) {
	payload, err := genericPayload(mediaURL, t.model)
	if err != nil {
		return "", services.Fail(services.ErrASRFailed, "encode asr request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", services.Fail(services.ErrASRFailed, "build asr request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", services.Fail(services.ErrASRFailed, fmt.Sprintf("asr request failed: %v", err), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Fail(services.ErrASRFailed, fmt.Sprintf("read asr response: %v", err), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", services.Fail(services.ErrASRFailed, fmt.Sprintf(
			"asr returned status %d, response: %s", resp.StatusCode, snippet(body, responseSnippet),
		), nil)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte(`{}`)
	}
	if !fieldpath.Valid(body) {
		return "", services.Fail(services.ErrASRFailed, "asr response is not json", nil)
	}
	text, ok := fieldpath.First(body, t.textPath, transcriptTextPaths...)
	if !ok {
		return "", services.Fail(services.ErrASRFailed, "asr returned no transcript text", nil)
	}
	return text, nil
}

// genericPayload repeats the media URL under every key common speech services
// read it from.
func genericPayload(mediaURL, model string) ([]byte, error) {
	doc := []byte(`{}`)
	var err error
	for _, key := range []string{"videoUrl", "video_url", "url", "audioUrl"} {
		if doc, err = sjson.SetBytes(doc, key, mediaURL); err != nil {
			return nil, err
		}
	}
	if doc, err = sjson.SetBytes(doc, "language", "zh"); err != nil {
		return nil, err
	}
	if model != "" {
		if doc, err = sjson.SetBytes(doc, "model", model); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
