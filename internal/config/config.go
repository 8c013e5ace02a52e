package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Twilio    TwilioConfig
	Templates TemplatesConfig
	Outreach  OutreachConfig
	Scheduler SchedulerConfig
	Campaign  CampaignConfig
	Redis     RedisConfig
	AMQP      AMQPConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address        string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver string
	URL    string
}

type TwilioConfig struct {
	AccountSID     string
	AuthToken      string
	From           string
	BaseURL        string
	StatusCallback string
	Timeout        time.Duration
}

type TemplatesConfig struct {
	File             string
	SandboxPrefix    string
	InterestFallback string
}

type OutreachConfig struct {
	FirstFollowUpDelay  time.Duration
	SecondFollowUpDelay time.Duration
	MinCoolingPeriod    time.Duration
	RecentUpdateGuard   time.Duration
}

type SchedulerConfig struct {
	FirstInterval   time.Duration
	SecondInterval  time.Duration
	RefreshInterval time.Duration
	AutoFollowUp    bool
}

type CampaignConfig struct {
	Workers    int
	LeaseTTL   time.Duration
	ContentMax int
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type AMQPConfig struct {
	Enabled bool
	URL     string
	Queue   string
}

type LogConfig struct {
	Level  string
	Format string
}

const defaultSandboxPrefix = "Hello! This is BorderPlus."

// LoadAll reads the environment. Every problem found is reported in the
// returned error, not only the first one.
func LoadAll() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	duration := func(key string, def time.Duration) time.Duration {
		v, err := getEnvDuration(key, def)
		collect(err)
		return v
	}
	integer := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		collect(err)
		return v
	}
	boolean := func(key string, def bool) bool {
		v, err := getEnvBool(key, def)
		collect(err)
		return v
	}

	cfg := &Config{
		Server: ServerConfig{
			Address:        getEnv("SERVER_ADDRESS", ":8080"),
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Twilio: TwilioConfig{
			AccountSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
			From:           os.Getenv("TWILIO_WHATSAPP_FROM"),
			BaseURL:        getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
			StatusCallback: os.Getenv("STATUS_CALLBACK_URL"),
			Timeout:        time.Duration(integer("TRANSPORT_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Templates: TemplatesConfig{
			File:             os.Getenv("TEMPLATES_FILE"),
			SandboxPrefix:    lookupEnv("SANDBOX_PREFIX", defaultSandboxPrefix),
			InterestFallback: getEnv("INTEREST_FALLBACK", "healthcare abroad"),
		},
		Outreach: OutreachConfig{
			FirstFollowUpDelay:  duration("FIRST_FOLLOW_UP_DELAY", 24*time.Hour),
			SecondFollowUpDelay: duration("SECOND_FOLLOW_UP_DELAY", 48*time.Hour),
			MinCoolingPeriod:    duration("MIN_COOLING_PERIOD", 5*time.Second),
			RecentUpdateGuard:   duration("RECENT_UPDATE_GUARD", 5*time.Second),
		},
		Scheduler: SchedulerConfig{
			FirstInterval:   duration("SWEEP_FIRST_INTERVAL", time.Hour),
			SecondInterval:  duration("SWEEP_SECOND_INTERVAL", 2*time.Hour),
			RefreshInterval: duration("REFRESH_INTERVAL", 30*time.Second),
			AutoFollowUp:    boolean("AUTO_FOLLOW_UP", true),
		},
		Campaign: CampaignConfig{
			Workers:    integer("CAMPAIGN_WORKERS", 1),
			LeaseTTL:   duration("LEASE_TTL", 2*time.Minute),
			ContentMax: integer("CONTENT_MAX", 1600),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	db, err := loadDatabaseConfig()
	collect(err)
	cfg.Database = db

	redis, err := loadRedisConfig()
	collect(err)
	cfg.Redis = redis

	cfg.AMQP = loadAMQPConfig()

	collect(validate(cfg))
	return cfg, joinErrors(errs)
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	driver := strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite"))
	switch driver {
	case "sqlite":
		return DatabaseConfig{Driver: driver, URL: getEnv("DATABASE_URL", "outreach.db")}, nil
	case "pgx":
		url, err := requireEnv("DATABASE_URL")
		return DatabaseConfig{Driver: driver, URL: url}, err
	default:
		return DatabaseConfig{Driver: driver}, fmt.Errorf("DATABASE_DRIVER must be sqlite or pgx, got %q", driver)
	}
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	db, dbErr := getEnvInt("REDIS_DB", 0)
	ttl, ttlErr := getEnvInt("REDIS_TTL_SECONDS", 86400)

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, errors.Join(dbErr, ttlErr)
}

func loadAMQPConfig() AMQPConfig {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		return AMQPConfig{Enabled: false}
	}
	return AMQPConfig{
		Enabled: true,
		URL:     url,
		Queue:   getEnv("AMQP_QUEUE", "q.provider-events"),
	}
}

func validate(cfg *Config) error {
	var errs []error
	positive := map[string]time.Duration{
		"FIRST_FOLLOW_UP_DELAY":     cfg.Outreach.FirstFollowUpDelay,
		"SECOND_FOLLOW_UP_DELAY":    cfg.Outreach.SecondFollowUpDelay,
		"SWEEP_FIRST_INTERVAL":      cfg.Scheduler.FirstInterval,
		"SWEEP_SECOND_INTERVAL":     cfg.Scheduler.SecondInterval,
		"REFRESH_INTERVAL":          cfg.Scheduler.RefreshInterval,
		"LEASE_TTL":                 cfg.Campaign.LeaseTTL,
		"TRANSPORT_TIMEOUT_SECONDS": cfg.Twilio.Timeout,
	}
	for key, v := range positive {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", key))
		}
	}
	if cfg.Outreach.MinCoolingPeriod < 0 {
		errs = append(errs, errors.New("MIN_COOLING_PERIOD must be >= 0"))
	}
	if cfg.Outreach.RecentUpdateGuard < 0 {
		errs = append(errs, errors.New("RECENT_UPDATE_GUARD must be >= 0"))
	}
	if cfg.Campaign.Workers < 1 {
		errs = append(errs, errors.New("CAMPAIGN_WORKERS must be >= 1"))
	}
	if cfg.Campaign.ContentMax <= 0 {
		errs = append(errs, errors.New("CONTENT_MAX must be > 0"))
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.Log.Format))
	}
	return joinErrors(errs)
}

// RequireTwilio reports the transport settings a sending command cannot do
// without.
func (c *Config) RequireTwilio() error {
	var errs []error
	for key, v := range map[string]string{
		"TWILIO_ACCOUNT_SID":   c.Twilio.AccountSID,
		"TWILIO_AUTH_TOKEN":    c.Twilio.AuthToken,
		"TWILIO_WHATSAPP_FROM": c.Twilio.From,
	} {
		if v == "" {
			errs = append(errs, fmt.Errorf("missing required env var: %s", key))
		}
	}
	return joinErrors(errs)
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// lookupEnv is getEnv for keys where an explicit empty value is meaningful.
func lookupEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid duration for env %s: %s", key, v)
	}
	return d, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid bool for env %s: %s", key, v)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
