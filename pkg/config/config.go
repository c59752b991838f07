package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Backend is the remote API the client talks to.
	Backend struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
		Timeout string `yaml:"timeout"`
		// Outbound request rate limit; zero disables.
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"backend"`
	Poll struct {
		Interval string `yaml:"interval"`
		// Messages fetched per reconciling fetch (newest window).
		PageLimit int `yaml:"page_limit"`
	} `yaml:"poll"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text|json
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`
	// DevServer configures the bundled development backend.
	DevServer struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
		DBPath  string `yaml:"db_path"`
		// Token, when set, is required as a bearer token on API requests.
		Token string `yaml:"token"`
		RateLimit struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
		Retention struct {
			Enabled bool   `yaml:"enabled"`
			Cron    string `yaml:"cron"`
			TTL     string `yaml:"ttl"`
		} `yaml:"retention"`
	} `yaml:"devserver"`
}

const (
	defaultPollInterval = 3 * time.Second
	defaultPageLimit    = 500
	defaultTimeout      = 10 * time.Second
	defaultRetentionTTL = 30 * 24 * time.Hour
)

// PollInterval returns the configured poll period, defaulting to 3s.
func (c *Config) PollInterval() time.Duration {
	return parseDuration(c.Poll.Interval, defaultPollInterval)
}

// PageLimit returns the configured fetch window size.
func (c *Config) PageLimit() int {
	if c.Poll.PageLimit > 0 {
		return c.Poll.PageLimit
	}
	return defaultPageLimit
}

// BackendTimeout returns the per-request HTTP timeout.
func (c *Config) BackendTimeout() time.Duration {
	return parseDuration(c.Backend.Timeout, defaultTimeout)
}

// RetentionTTL returns how long the dev server keeps tombstoned messages.
func (c *Config) RetentionTTL() time.Duration {
	return parseDuration(c.DevServer.Retention.TTL, defaultRetentionTTL)
}

// DevAddr returns host:port for the dev server.
func (c *Config) DevAddr() string {
	addr := c.DevServer.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.DevServer.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags shared by the
// binaries and returns their values along with a map indicating which flags
// were explicitly set.
func ParseCommandFlags() (serverURL string, project string, author string, cfgPath string, setFlags map[string]bool) {
	urlPtr := flag.String("server", "http://127.0.0.1:8080", "Backend base URL")
	projectPtr := flag.String("project", "", "Project (conversation) to open")
	authorPtr := flag.String("author", "", "Author id for sent messages")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *urlPtr, *projectPtr, *authorPtr, *cfgPtr, setFlags
}

// LoadEnvOverrides applies environment overrides onto the provided cfg and
// reports whether any env vars were used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false

	if v := os.Getenv("TASKCHAT_SERVER_URL"); v != "" {
		envUsed = true
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("TASKCHAT_TOKEN"); v != "" {
		envUsed = true
		cfg.Backend.Token = v
	}
	if v := os.Getenv("TASKCHAT_TIMEOUT"); v != "" {
		envUsed = true
		cfg.Backend.Timeout = v
	}
	if v := os.Getenv("TASKCHAT_POLL_INTERVAL"); v != "" {
		envUsed = true
		cfg.Poll.Interval = v
	}
	if v := os.Getenv("TASKCHAT_PAGE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Poll.PageLimit = n
		}
	}
	if v := os.Getenv("TASKCHAT_METRICS_ADDR"); v != "" {
		envUsed = true
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = v
	}

	if v := os.Getenv("TASKCHAT_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.DevServer.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.DevServer.Port = pi
			}
		} else {
			cfg.DevServer.Address = v
		}
	}
	if v := os.Getenv("TASKCHAT_DB_PATH"); v != "" {
		envUsed = true
		cfg.DevServer.DBPath = v
	}
	if v := os.Getenv("TASKCHAT_SERVER_TOKEN"); v != "" {
		envUsed = true
		cfg.DevServer.Token = v
	}
	if v := os.Getenv("TASKCHAT_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.DevServer.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("TASKCHAT_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.DevServer.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("TASKCHAT_RETENTION_CRON"); v != "" {
		envUsed = true
		cfg.DevServer.Retention.Enabled = true
		cfg.DevServer.Retention.Cron = v
	}
	if v := os.Getenv("TASKCHAT_RETENTION_TTL"); v != "" {
		envUsed = true
		cfg.DevServer.Retention.TTL = v
	}
	if v := os.Getenv("TASKCHAT_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = v
	}
	return envUsed
}

// LoadEffective loads config from the given path and applies environment
// overrides. A missing file yields a zero config plus env overrides.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	envUsed := LoadEnvOverrides(cfg)
	return cfg, envUsed, nil
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and the TASKCHAT_CONFIG env var when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("TASKCHAT_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
