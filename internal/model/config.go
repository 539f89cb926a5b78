package model

// Config is the complete incidentlens configuration.
// Loaded by viper from defaults, config file, INCIDENTLENS_* env vars and flags.
type Config struct {
	Dataset     DatasetConfig     `yaml:"dataset" mapstructure:"dataset"`
	Columns     ColumnsConfig     `yaml:"columns" mapstructure:"columns"`
	Filter      FilterConfig      `yaml:"filter" mapstructure:"filter"`
	Analysis    AnalysisConfig    `yaml:"analysis" mapstructure:"analysis"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
}

// DatasetConfig locates the incident spreadsheet
type DatasetConfig struct {
	Path  string `yaml:"path" mapstructure:"path"`   // .xlsx, .csv or .sqlite file
	Sheet string `yaml:"sheet" mapstructure:"sheet"` // xlsx sheet, "" = first sheet
	Table string `yaml:"table" mapstructure:"table"` // sqlite table name
}

// ColumnsConfig lists candidate headers for each semantic column role.
// The first candidate present in the dataset (case-insensitive) wins.
type ColumnsConfig struct {
	Location    []string `yaml:"location" mapstructure:"location"`
	Description []string `yaml:"description" mapstructure:"description"`
	Category    []string `yaml:"category" mapstructure:"category"`
	Value       []string `yaml:"value" mapstructure:"value"`
}

// FilterConfig holds fuzzy filter defaults and the synonym table
type FilterConfig struct {
	DefaultThreshold float64 `yaml:"default_threshold" mapstructure:"default_threshold"`
	DefaultLimit     int     `yaml:"default_limit" mapstructure:"default_limit"`

	// Synonyms maps a canonical term to the spellings that normalize to it
	Synonyms map[string][]string `yaml:"synonyms" mapstructure:"synonyms"`
}

// AnalysisConfig bounds the inputs sent to the language model
type AnalysisConfig struct {
	Default         []Analysis `yaml:"default" mapstructure:"default"` // Applied when a request omits "analysis"
	MaxDescriptions int        `yaml:"max_descriptions" mapstructure:"max_descriptions"`
	MaxReports      int        `yaml:"max_reports" mapstructure:"max_reports"`
	MaxLocations    int        `yaml:"max_locations" mapstructure:"max_locations"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr           string          `yaml:"addr" mapstructure:"addr"`
	MaxConnections int             `yaml:"max_connections" mapstructure:"max_connections"` // 0 = unlimited
	ReadTimeout    int             `yaml:"read_timeout" mapstructure:"read_timeout"`       // seconds
	WriteTimeout   int             `yaml:"write_timeout" mapstructure:"write_timeout"`     // seconds, 0 = none (AI calls can be slow)
	AIRateLimit    RateLimitConfig `yaml:"ai_rate_limit" mapstructure:"ai_rate_limit"`
}

// RateLimitConfig configures per-client limiting of AI-backed endpoints
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 = disabled
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// LLMConfig configures the language model provider
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" = disabled
	Model       string  `yaml:"model" mapstructure:"model"` // empty picks the provider default
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	HTTPProxy   string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy  string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy     string  `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig controls the in-memory response cache for column metadata
type CacheConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// ConcurrencyConfig controls batch evaluation
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Path:  "data/FY20.xlsx",
			Table: "incidents",
		},
		Columns: ColumnsConfig{
			Location:    []string{"where did it happened", "where did it happen", "location", "factory"},
			Description: []string{"what happened", "description", "incident description"},
			Category:    []string{"category"},
			Value:       []string{"value"},
		},
		Filter: FilterConfig{
			DefaultThreshold: 60,
			DefaultLimit:     100,
			Synonyms: map[string][]string{
				"lavatory": {"wc", "washroom", "toilet", "restroom"},
			},
		},
		Analysis: AnalysisConfig{
			MaxDescriptions: 100,
			MaxReports:      50,
			MaxLocations:    50,
		},
		Server: ServerConfig{
			Addr:        ":8000",
			ReadTimeout: 15,
			AIRateLimit: RateLimitConfig{
				BurstSize: 5,
			},
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Timeout:     600,
			Temperature: 0.5,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
	}
}
