package config

// Config holds the configuration of the application
// Use config.LoadConfig to create a new instance
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Lexicon  LexiconConfig  `mapstructure:"lexicon"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Callback CallbackConfig `mapstructure:"callback"`
	Data     DataConfig     `mapstructure:"data"`
}

type StoreConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ExtractConfig holds the configuration for all mention sources and the
// downstream consolidation steps.
type ExtractConfig struct {
	Pattern    PatternSourceConfig   `mapstructure:"pattern"`
	Gazetteer  GazetteerSourceConfig `mapstructure:"gazetteer"`
	NER        NERSourceConfig       `mapstructure:"ner"`
	Ranges     RangesConfig          `mapstructure:"ranges"`
	TokenCount TokenCountConfig      `mapstructure:"token_count"`
}

type PatternSourceConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type GazetteerSourceConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type NERSourceConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ServerURL string `mapstructure:"server_url"`
	// Timeout for a single NER server call, in seconds.
	Timeout int `mapstructure:"timeout"`
}

type RangesConfig struct {
	// MaxGap is the widest gap, in bytes, between two numeric mentions that
	// can still be bridged by a range indicator.
	MaxGap int `mapstructure:"max_gap"`
}

type TokenCountConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Encoding string `mapstructure:"encoding"`
}

type LexiconConfig struct {
	// Paths are directories or files with additional lexicon packs, loaded
	// after the embedded defaults.
	Paths []string `mapstructure:"paths"`
	// URL of a remote lexicon pack fetched at startup. Optional.
	URL string `mapstructure:"url"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// MaxRequestSize is the maximum size of a request body, in bytes.
	MaxRequestSize int64 `mapstructure:"max_request_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	// Secret is loaded from ENV not config file.
	Secret   string `mapstructure:"secret"`
	Required bool   `mapstructure:"required"`
}

type CallbackConfig struct {
	URL string `mapstructure:"url"`
	// Timeout for a single callback delivery, in seconds.
	Timeout int `mapstructure:"timeout"`
	// APIKey is loaded from ENV not config file.
	APIKey string `mapstructure:"api_key"`
}

type DataConfig struct {
	// PurgeEvery is the period between hard deletes of soft-deleted rows,
	// in minutes. If set to 0, hard deletes will not be performed.
	PurgeEvery int `mapstructure:"purge_every"`
}
