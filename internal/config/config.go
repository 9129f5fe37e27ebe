package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Upstream holds explicit timeouts for every outbound dependency. A zero
// value is rejected by the clients so a hanging upstream can never hold a
// request open indefinitely.
type Upstream struct {
	LLM    time.Duration `yaml:"llm"`
	News   time.Duration `yaml:"news"`
	DBPing time.Duration `yaml:"db_ping"`
}

// Rate carries the limiter ceilings shared by the IP and user windows.
type Rate struct {
	IPLimit   int           `yaml:"ip_limit"`
	UserLimit int           `yaml:"user_limit"`
	Window    time.Duration `yaml:"window"`
}

type Config struct {
	Env  string `yaml:"env"`
	Addr string `yaml:"addr"`

	PGDSN string `yaml:"pg_dsn"`

	SessionSecret  string   `yaml:"session_secret"`
	IdPSecret      string   `yaml:"idp_secret"`
	IdPIssuer      string   `yaml:"idp_issuer"`
	AllowedDomains []string `yaml:"allowed_domains"`

	OpenAIKey     string `yaml:"openai_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`
	NewsAPIKey    string `yaml:"news_api_key"`
	NewsBaseURL   string `yaml:"news_base_url"`

	Rate         Rate     `yaml:"rate"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
	Upstream     Upstream `yaml:"upstream"`
}

// Default returns the baseline configuration before file and env overlays.
func Default() Config {
	return Config{
		Env:           EnvDevelopment,
		Addr:          ":8080",
		IdPIssuer:     "agencydesk-idp",
		OpenAIBaseURL: "https://api.openai.com",
		OpenAIModel:   "gpt-4o-mini",
		NewsBaseURL:   "https://newsapi.org",
		Rate: Rate{
			IPLimit:   10,
			UserLimit: 15,
			Window:    15 * time.Minute,
		},
		MaxBodyBytes: 10 << 20,
		Upstream: Upstream{
			LLM:    60 * time.Second,
			News:   15 * time.Second,
			DBPing: 5 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file
// (AGENCYDESK_CONFIG_FILE), and environment variables, in that order.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("AGENCYDESK_CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Env, "AGENCYDESK_ENV")
	setString(&cfg.Addr, "AGENCYDESK_ADDR")
	setString(&cfg.PGDSN, "AGENCYDESK_PG_DSN")
	setString(&cfg.SessionSecret, "AGENCYDESK_SESSION_SECRET")
	setString(&cfg.IdPSecret, "AGENCYDESK_IDP_SECRET")
	setString(&cfg.IdPIssuer, "AGENCYDESK_IDP_ISSUER")
	setString(&cfg.OpenAIKey, "AGENCYDESK_OPENAI_API_KEY")
	setString(&cfg.OpenAIBaseURL, "AGENCYDESK_OPENAI_BASE_URL")
	setString(&cfg.OpenAIModel, "AGENCYDESK_OPENAI_MODEL")
	setString(&cfg.NewsAPIKey, "AGENCYDESK_NEWS_API_KEY")
	setString(&cfg.NewsBaseURL, "AGENCYDESK_NEWS_BASE_URL")

	if v := strings.TrimSpace(os.Getenv("AGENCYDESK_ALLOWED_DOMAINS")); v != "" {
		var domains []string
		for _, d := range strings.Split(v, ",") {
			d = strings.TrimSpace(strings.ToLower(d))
			if d != "" {
				domains = append(domains, d)
			}
		}
		cfg.AllowedDomains = domains
	}

	setInt(&cfg.Rate.IPLimit, "AGENCYDESK_RATE_IP_LIMIT")
	setInt(&cfg.Rate.UserLimit, "AGENCYDESK_RATE_USER_LIMIT")
	setDuration(&cfg.Rate.Window, "AGENCYDESK_RATE_WINDOW")
	setInt64(&cfg.MaxBodyBytes, "AGENCYDESK_MAX_BODY_BYTES")
	setDuration(&cfg.Upstream.LLM, "AGENCYDESK_LLM_TIMEOUT")
	setDuration(&cfg.Upstream.News, "AGENCYDESK_NEWS_TIMEOUT")
	setDuration(&cfg.Upstream.DBPing, "AGENCYDESK_DB_PING_TIMEOUT")
}

// Validate fails closed: missing secrets stop the process at startup rather
// than surfacing as per-request authentication failures.
func (c Config) Validate() error {
	if strings.TrimSpace(c.SessionSecret) == "" {
		return errors.New("config: session secret is required")
	}
	if strings.TrimSpace(c.IdPSecret) == "" {
		return errors.New("config: identity provider secret is required")
	}
	if len(c.AllowedDomains) == 0 {
		return errors.New("config: at least one allowed email domain is required")
	}
	if c.Rate.IPLimit <= 0 || c.Rate.UserLimit <= 0 || c.Rate.Window <= 0 {
		return errors.New("config: rate limits and window must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("config: max body bytes must be positive")
	}
	if c.Upstream.LLM <= 0 || c.Upstream.News <= 0 || c.Upstream.DBPing <= 0 {
		return errors.New("config: upstream timeouts must be positive")
	}
	return nil
}

// Production reports whether the service runs in production mode. Error
// detail echoing and the loopback rate-limit exemption key off this.
func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), EnvProduction)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
