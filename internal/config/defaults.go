package config

const (
	defaultConfigPath           = "~/.config/copyengine/config.toml"
	projectConfigName           = "copyengine.toml"
	defaultLogDir               = "~/.local/share/copyengine/logs"
	defaultServerHost           = "0.0.0.0"
	defaultServerPort           = 3000
	defaultShutdownGraceSeconds = 10
	defaultStoreDriver          = "memory"
	defaultResolverTimeoutMS    = 15000
	defaultASRTimeoutMS         = 120000
	defaultASRPollIntervalMS    = 1500
	defaultASRMaxPolls          = 40
	defaultLLMBaseURL           = "https://ark.cn-beijing.volces.com/api/v3"
	defaultLLMTemperature       = 0.3
	defaultLLMTimeoutMS         = 30000
	defaultLLMRetryAttempts     = 1
	defaultStyleSimilarity      = 0.82
	defaultLengthMinRatio       = 0.9
	defaultLengthMaxRatio       = 1.1
	defaultStructureMatch       = 0.8
	defaultMinSellingPoints     = 2
	defaultMaxRegenerate        = 2
	defaultMediaProxyTTLSeconds = 600
	defaultMediaProxyMaxRecords = 200
	defaultNtfyTimeoutSeconds   = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

var dotEnvFiles = []string{".env.local", ".env.example"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RuntimeDir: defaultRuntimeDir(),
			LogDir:     defaultLogDir,
		},
		Server: Server{
			Host:                 defaultServerHost,
			Port:                 defaultServerPort,
			ShutdownGraceSeconds: defaultShutdownGraceSeconds,
		},
		Store: Store{
			Driver: defaultStoreDriver,
		},
		Resolver: Resolver{
			TimeoutMS: defaultResolverTimeoutMS,
		},
		ASR: ASR{
			TimeoutMS:      defaultASRTimeoutMS,
			PollIntervalMS: defaultASRPollIntervalMS,
			MaxPolls:       defaultASRMaxPolls,
		},
		LLM: LLM{
			BaseURL:       defaultLLMBaseURL,
			Temperature:   defaultLLMTemperature,
			TimeoutMS:     defaultLLMTimeoutMS,
			RetryAttempts: defaultLLMRetryAttempts,
		},
		Quality: Quality{
			StyleSimilarityThreshold: defaultStyleSimilarity,
			LengthMinRatio:           defaultLengthMinRatio,
			LengthMaxRatio:           defaultLengthMaxRatio,
			StructureMatchThreshold:  defaultStructureMatch,
			MinSellingPointsPerDraft: defaultMinSellingPoints,
			MaxRegenerate:            defaultMaxRegenerate,
		},
		MediaProxy: MediaProxy{
			TTLSeconds: defaultMediaProxyTTLSeconds,
			MaxRecords: defaultMediaProxyMaxRecords,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
