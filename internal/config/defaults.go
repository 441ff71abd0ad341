package config

const (
	defaultDataDir             = "~/.local/share/hashreview/data"
	defaultLogDir              = "~/.local/share/hashreview/logs"
	defaultAPIBind             = "127.0.0.1:7311"
	defaultHasherBaseURL       = "http://127.0.0.1:8000"
	defaultHasherTimeout       = 15
	defaultSimilarityThreshold = 30
	defaultSimilarLimit        = 20
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

func defaultContentCategories() []string {
	return []string{"adult", "violence", "hate_speech", "terrorism", "self_harm", "spam", "other"}
}

func defaultHashAlgorithms() []string {
	return []string{"pdq", "md5", "sha1", "photodna", "netclean", "manual"}
}

func defaultConfidenceLevels() []string {
	return []string{"high", "medium", "low"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Hasher: Hasher{
			BaseURL:        defaultHasherBaseURL,
			TimeoutSeconds: defaultHasherTimeout,
		},
		Queues: Queues{
			ContentCategories: defaultContentCategories(),
			HashAlgorithms:    defaultHashAlgorithms(),
			ConfidenceLevels:  defaultConfidenceLevels(),
		},
		Review: Review{
			SimilarityThreshold: defaultSimilarityThreshold,
			SimilarLimit:        defaultSimilarLimit,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
