package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Crawl      CrawlConfig      `yaml:"crawl"`
	Dictionary DictionaryConfig `yaml:"dictionary"`
	AI         AIConfig         `yaml:"ai"`
	Vocab      VocabConfig      `yaml:"vocab"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"10m"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

// DatabaseConfig selects the SQLite file and the article store backend.
type DatabaseConfig struct {
	Path           string `yaml:"path"            env:"DATABASE_PATH"            env-default:"newsword.db"`
	ArticleBackend string `yaml:"article_backend" env:"DATABASE_ARTICLE_BACKEND" env-default:"sqlite"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// CrawlConfig bounds crawl volume and pacing.
type CrawlConfig struct {
	MaxPages     int           `yaml:"max_pages"     env:"CRAWL_MAX_PAGES"     env-default:"5"`
	FlushEvery   int           `yaml:"flush_every"   env:"CRAWL_FLUSH_EVERY"   env-default:"10"`
	ArticleDelay time.Duration `yaml:"article_delay" env:"CRAWL_ARTICLE_DELAY" env-default:"1s"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"CRAWL_FETCH_TIMEOUT" env-default:"15s"`
	Workers      int           `yaml:"workers"       env:"CRAWL_WORKERS"       env-default:"1"`
	UserAgent    string        `yaml:"user_agent"    env:"CRAWL_USER_AGENT"    env-default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
	HankyungURL  string        `yaml:"hankyung_url"  env:"CRAWL_HANKYUNG_URL"  env-default:"https://www.hankyung.com"`
	ScienceURL   string        `yaml:"science_url"   env:"CRAWL_SCIENCE_URL"   env-default:"https://www.sciencetimes.co.kr"`
}

// DictionaryConfig configures the Standard Korean Language Dictionary API.
type DictionaryConfig struct {
	BaseURL string        `yaml:"base_url" env:"DICT_BASE_URL" env-default:"https://stdict.korean.go.kr/api"`
	Key     string        `yaml:"key"      env:"DICT_KEY"`
	Timeout time.Duration `yaml:"timeout"  env:"DICT_TIMEOUT"  env-default:"5s"`
	Num     int           `yaml:"num"      env:"DICT_NUM"      env-default:"10"`
}

// AIConfig configures the chat-completions disambiguator. Empty APIKey disables it.
type AIConfig struct {
	BaseURL       string        `yaml:"base_url"       env:"AI_BASE_URL"       env-default:"https://api.openai.com"`
	APIKey        string        `yaml:"api_key"        env:"AI_API_KEY"`
	Model         string        `yaml:"model"          env:"AI_MODEL"          env-default:"gpt-4o-mini"`
	Timeout       time.Duration `yaml:"timeout"        env:"AI_TIMEOUT"        env-default:"5s"`
	MinConfidence float64       `yaml:"min_confidence" env:"AI_MIN_CONFIDENCE" env-default:"0.5"`
}

// VocabConfig holds the column length caps for stored words.
type VocabConfig struct {
	WordNameMax    int `yaml:"word_name_max"    env:"VOCAB_WORD_NAME_MAX"    env-default:"100"`
	ListElementMax int `yaml:"list_element_max" env:"VOCAB_LIST_ELEMENT_MAX" env-default:"50"`
	ListMax        int `yaml:"list_max"         env:"VOCAB_LIST_MAX"         env-default:"500"`
	DefinitionMax  int `yaml:"definition_max"   env:"VOCAB_DEFINITION_MAX"   env-default:"1000"`
	CategoryMax    int `yaml:"category_max"     env:"VOCAB_CATEGORY_MAX"     env-default:"255"`
	ExampleMax     int `yaml:"example_max"      env:"VOCAB_EXAMPLE_MAX"      env-default:"1000"`
}

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults. An explicit path that does not exist is an error;
// the implicit ./config.yaml is optional.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	explicitPath := path != ""
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// maxCrawlPages bounds listing pages per section.
const maxCrawlPages = 5

// Validate checks value ranges that tags cannot express.
func (c *Config) Validate() error {
	switch c.Database.ArticleBackend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("database.article_backend must be sqlite or memory, got %q", c.Database.ArticleBackend)
	}
	if c.Crawl.MaxPages <= 0 || c.Crawl.MaxPages > maxCrawlPages {
		return fmt.Errorf("crawl.max_pages must be within [1,%d], got %d", maxCrawlPages, c.Crawl.MaxPages)
	}
	if c.Crawl.FlushEvery <= 0 {
		return fmt.Errorf("crawl.flush_every must be positive")
	}
	if c.Crawl.ArticleDelay < 0 {
		return fmt.Errorf("crawl.article_delay must not be negative")
	}
	if c.Crawl.Workers <= 0 {
		return fmt.Errorf("crawl.workers must be positive")
	}
	if c.Vocab.WordNameMax <= 0 || c.Vocab.ListElementMax <= 0 || c.Vocab.ListMax <= 0 {
		return fmt.Errorf("vocab limits must be positive")
	}
	if c.AI.MinConfidence < 0 || c.AI.MinConfidence > 1 {
		return fmt.Errorf("ai.min_confidence must be within [0,1]")
	}
	return nil
}
