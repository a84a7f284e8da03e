package testsupport

import (
	"path/filepath"
	"testing"

	"copyengine/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Outbound integrations are left unconfigured, the listener binds to a free
// loopback port and the chat model key is cleared so copy jobs use heuristic
// drafts.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RuntimeDir = filepath.Join(base, "run")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.Host = "127.0.0.1"
	cfgVal.Server.Port = 0
	cfgVal.Server.ShutdownGraceSeconds = 2
	cfgVal.LLM.APIKey = ""
	cfgVal.LLM.Model = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithMockASR lets transcription fall back to the placeholder transcript.
func WithMockASR() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ASR.AllowMock = true
	}
}

// WithAPIToken requires a bearer token on the job routes.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.APIToken = token
	}
}

// WithPublicBaseURL sets the base URL used to build media relay links.
func WithPublicBaseURL(base string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MediaProxy.PublicBaseURL = base
	}
}

// WithResolverURL points share-link resolution at an external resolver.
func WithResolverURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Resolver.APIURL = url
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.RuntimeDir)
}
