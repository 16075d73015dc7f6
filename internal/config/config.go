package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process and grcctl.
// All values must come from env (or an .env file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
	Auth  AuthConfig
	AI    AIConfig
	Audit AuditConfig
	Kafka KafkaConfig
}

type AppConfig struct {
	Env  string
	Port int
	// LogLevel overrides the env-derived level: debug, info, warn or error.
	LogLevel string

	// MigrationsSource is a golang-migrate source URL, e.g. file://migrations.
	MigrationsSource string
	MigrateOnStart   bool

	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// AIConfig points at an OpenAI-compatible chat completions gateway.
// An empty APIKey disables the AI endpoints instead of failing startup.
type AIConfig struct {
	GatewayURL    string
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxConcurrent int
}

type AuditConfig struct {
	DefaultLimit int
	MaxLimit     int
	// Channel is the Redis pub/sub channel used to fan out inserts across instances.
	Channel string
}

// KafkaConfig is optional; no brokers means no audit export.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

const (
	defaultAIGatewayURL = "https://ai.gateway.lovable.dev/v1/chat/completions"
	defaultAIModel      = "google/gemini-2.5-flash"
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.LogLevel = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	c.App.MigrationsSource = strings.TrimSpace(os.Getenv("MIGRATIONS_SOURCE"))
	c.App.MigrateOnStart = optionalBool("MIGRATE_ON_START")
	c.App.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	{
		n, err := optionalInt("REDIS_DB")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.DB = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.AI.GatewayURL = strings.TrimSpace(os.Getenv("AI_GATEWAY_URL"))
	c.AI.APIKey = os.Getenv("AI_GATEWAY_API_KEY")
	c.AI.Model = strings.TrimSpace(os.Getenv("AI_MODEL"))
	c.AI.Timeout = mustDuration("AI_TIMEOUT")
	{
		n, err := optionalInt("AI_MAX_CONCURRENT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.AI.MaxConcurrent = n
	}

	{
		n, err := optionalInt("AUDIT_DEFAULT_LIMIT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Audit.DefaultLimit = n
	}
	{
		n, err := optionalInt("AUDIT_MAX_LIMIT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Audit.MaxLimit = n
	}
	c.Audit.Channel = strings.TrimSpace(os.Getenv("AUDIT_CHANNEL"))

	c.Kafka.Brokers = splitList(os.Getenv("AUDIT_KAFKA_BROKERS"))
	c.Kafka.AuditTopic = strings.TrimSpace(os.Getenv("AUDIT_KAFKA_TOPIC"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ApplyDefaults fills optional values. Production-sensitive values are left
// empty so Validate can reject them.
func (c *Config) ApplyDefaults() {
	if c.App.MigrationsSource == "" {
		c.App.MigrationsSource = "file://migrations"
	}
	if c.DB.SSLMode == "" && !c.IsProduction() {
		c.DB.SSLMode = "disable"
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.AI.GatewayURL == "" {
		c.AI.GatewayURL = defaultAIGatewayURL
	}
	if c.AI.Model == "" {
		c.AI.Model = defaultAIModel
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 60 * time.Second
	}
	if c.AI.MaxConcurrent <= 0 {
		c.AI.MaxConcurrent = 2
	}
	if c.Audit.DefaultLimit <= 0 {
		c.Audit.DefaultLimit = 50
	}
	if c.Audit.MaxLimit <= 0 {
		c.Audit.MaxLimit = 100
	}
	if c.Audit.Channel == "" {
		c.Audit.Channel = "grc:audit_logs"
	}
	if c.Kafka.AuditTopic == "" {
		c.Kafka.AuditTopic = "grc.audit_logs"
	}
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	switch c.App.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.App.LogLevel))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		errs = append(errs, errors.New("DB_SSLMODE is required in production"))
	} else if !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		errs = append(errs, fmt.Errorf("REDIS_DB must be 0-15, got %d", c.Redis.DB))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.AI.GatewayURL != "" {
		if u, err := url.Parse(c.AI.GatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("AI_GATEWAY_URL must be an absolute URL, got %q", c.AI.GatewayURL))
		}
	}

	if c.Audit.DefaultLimit > c.Audit.MaxLimit {
		errs = append(errs, fmt.Errorf("AUDIT_DEFAULT_LIMIT (%d) must not exceed AUDIT_MAX_LIMIT (%d)", c.Audit.DefaultLimit, c.Audit.MaxLimit))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// PostgresURL is the URL form golang-migrate expects.
func (c Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: url.Values{"sslmode": []string{c.DB.SSLMode}}.Encode(),
	}
	return u.String()
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// AIEnabled reports whether the gateway credentials are present.
func (c Config) AIEnabled() bool {
	return c.AI.APIKey != ""
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalBool(key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return b
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
