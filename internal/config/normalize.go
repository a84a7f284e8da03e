package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// applyEnvironment layers environment variables over the defaults. Load calls
// it before decoding the file so that keys present in the file still win.
func (c *Config) applyEnvironment() {
	envInt(&c.Server.Port, "PORT")
	envString(&c.Server.APIToken, "COPYENGINE_API_TOKEN")

	envString(&c.Resolver.APIURL, "VOLCENGINE_RESOLVER_API_URL", "RESOLVER_API_URL")
	envString(&c.Resolver.APIKey, "VOLCENGINE_RESOLVER_API_KEY", "RESOLVER_API_KEY")
	envString(&c.Resolver.VideoURLFieldPath, "VOLCENGINE_RESOLVER_VIDEO_URL_FIELD_PATH", "RESOLVER_VIDEO_URL_FIELD_PATH")
	envInt(&c.Resolver.TimeoutMS, "RESOLVER_TIMEOUT_MS")

	envString(&c.ASR.APIURL, "VOLCENGINE_ASR_API_URL", "ASR_API_URL")
	envString(&c.ASR.APIKey, "VOLCENGINE_ASR_API_KEY", "ASR_API_KEY")
	envString(&c.ASR.AppKey, "VOLCENGINE_ASR_APP_KEY")
	envString(&c.ASR.AccessKey, "VOLCENGINE_ASR_ACCESS_KEY")
	envString(&c.ASR.ResourceID, "VOLCENGINE_ASR_RESOURCE_ID")
	envString(&c.ASR.Model, "VOLCENGINE_ASR_MODEL")
	envString(&c.ASR.TextFieldPath, "VOLCENGINE_ASR_TEXT_FIELD_PATH", "ASR_TEXT_FIELD_PATH")
	envInt(&c.ASR.TimeoutMS, "ASR_TIMEOUT_MS")
	envInt(&c.ASR.PollIntervalMS, "ASR_POLL_INTERVAL_MS")
	envInt(&c.ASR.MaxPolls, "ASR_QUERY_MAX_POLLS")
	if value, ok := os.LookupEnv("ALLOW_MOCK_TRANSCRIPT"); ok {
		c.ASR.AllowMock = strings.EqualFold(strings.TrimSpace(value), "true")
	}

	envString(&c.LLM.APIKey, "VOLCENGINE_LLM_API_KEY")
	envString(&c.LLM.Model, "VOLCENGINE_LLM_MODEL")
	envString(&c.LLM.BaseURL, "VOLCENGINE_LLM_BASE_URL")
	envInt(&c.LLM.TimeoutMS, "VOLCENGINE_LLM_TIMEOUT_MS")

	envFloat(&c.Quality.StyleSimilarityThreshold, "STYLE_SIMILARITY_THRESHOLD")

	envString(&c.MediaProxy.PublicBaseURL, "MEDIA_PROXY_PUBLIC_BASE_URL", "PUBLIC_BASE_URL")
	envString(&c.Notifications.NtfyTopic, "NTFY_TOPIC")
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeStore()
	c.normalizeResolver()
	c.normalizeASR()
	c.normalizeLLM()
	c.normalizeQuality()
	c.normalizeMediaProxy()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RuntimeDir) == "" {
		c.Paths.RuntimeDir = defaultRuntimeDir()
	}
	if c.Paths.RuntimeDir, err = expandPath(c.Paths.RuntimeDir); err != nil {
		return fmt.Errorf("paths.runtime_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.Host == "" {
		c.Server.Host = defaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultServerPort
	}
	if c.Server.ShutdownGraceSeconds < 0 {
		c.Server.ShutdownGraceSeconds = 0
	}
}

func (c *Config) normalizeStore() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = defaultStoreDriver
	}
}

func (c *Config) normalizeResolver() {
	c.Resolver.APIURL = strings.TrimSpace(c.Resolver.APIURL)
	c.Resolver.APIKey = strings.TrimSpace(c.Resolver.APIKey)
	c.Resolver.VideoURLFieldPath = strings.TrimSpace(c.Resolver.VideoURLFieldPath)
	if c.Resolver.TimeoutMS <= 0 {
		c.Resolver.TimeoutMS = defaultResolverTimeoutMS
	}
}

func (c *Config) normalizeASR() {
	c.ASR.APIURL = strings.TrimSpace(c.ASR.APIURL)
	c.ASR.APIKey = strings.TrimSpace(c.ASR.APIKey)
	c.ASR.AppKey = strings.TrimSpace(c.ASR.AppKey)
	c.ASR.AccessKey = strings.TrimSpace(c.ASR.AccessKey)
	c.ASR.ResourceID = strings.TrimSpace(c.ASR.ResourceID)
	c.ASR.Model = strings.TrimSpace(c.ASR.Model)
	c.ASR.TextFieldPath = strings.TrimSpace(c.ASR.TextFieldPath)
	if c.ASR.TimeoutMS <= 0 {
		c.ASR.TimeoutMS = defaultASRTimeoutMS
	}
	if c.ASR.PollIntervalMS <= 0 {
		c.ASR.PollIntervalMS = defaultASRPollIntervalMS
	}
	if c.ASR.MaxPolls <= 0 {
		c.ASR.MaxPolls = defaultASRMaxPolls
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if c.LLM.TimeoutMS <= 0 {
		c.LLM.TimeoutMS = defaultLLMTimeoutMS
	}
	if c.LLM.RetryAttempts <= 0 {
		c.LLM.RetryAttempts = defaultLLMRetryAttempts
	}
}

func (c *Config) normalizeQuality() {
	if c.Quality.StyleSimilarityThreshold <= 0 {
		c.Quality.StyleSimilarityThreshold = defaultStyleSimilarity
	}
	if c.Quality.LengthMinRatio <= 0 {
		c.Quality.LengthMinRatio = defaultLengthMinRatio
	}
	if c.Quality.LengthMaxRatio <= 0 {
		c.Quality.LengthMaxRatio = defaultLengthMaxRatio
	}
	if c.Quality.StructureMatchThreshold <= 0 {
		c.Quality.StructureMatchThreshold = defaultStructureMatch
	}
	if c.Quality.MinSellingPointsPerDraft <= 0 {
		c.Quality.MinSellingPointsPerDraft = defaultMinSellingPoints
	}
	if c.Quality.MaxRegenerate < 0 {
		c.Quality.MaxRegenerate = 0
	}
}

func (c *Config) normalizeMediaProxy() {
	c.MediaProxy.PublicBaseURL = strings.TrimSpace(c.MediaProxy.PublicBaseURL)
	if c.MediaProxy.TTLSeconds <= 0 {
		c.MediaProxy.TTLSeconds = defaultMediaProxyTTLSeconds
	}
	if c.MediaProxy.MaxRecords <= 0 {
		c.MediaProxy.MaxRecords = defaultMediaProxyMaxRecords
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// envString stores the first non-blank value among the named variables.
func envString(target *string, names ...string) {
	for _, name := range names {
		if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
			return
		}
	}
}

// envInt stores a positive integer from the named variable; anything else is ignored.
func envInt(target *int, name string) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return
	}
	*target = parsed
}

func envFloat(target *float64, name string) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || parsed <= 0 {
		return
	}
	*target = parsed
}
