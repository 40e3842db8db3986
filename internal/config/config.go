// Package config provides centralized configuration management for the site server.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
	_ "time/tzdata" // SITE_TIMEZONE must resolve on hosts without zoneinfo
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server     ServerConfig
	Site       SiteConfig
	Database   DatabaseConfig
	Attachment AttachmentConfig
	Storage    StorageConfig
	Mail       MailConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Logging    LoggingConfig
	Ledger     LedgerConfig
	Redis      RedisConfig
	Portal     PortalConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing the response (default: 90s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"90s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// SiteConfig holds content and branding settings.
type SiteConfig struct {
	// Name is shown in page titles (default: Divina Healthcare)
	Name string `env:"SITE_NAME" default:"Divina Healthcare"`

	// Timezone is the IANA zone used for submission timestamps (default: America/New_York)
	Timezone string `env:"SITE_TIMEZONE" default:"America/New_York"`

	// ContentFile overrides the embedded catalog with a YAML file on disk
	ContentFile string `env:"CONTENT_FILE"`

	// CareersEmail is the fallback address shown when an application cannot be delivered
	CareersEmail string `env:"SITE_CAREERS_EMAIL" default:"careers@divina.com"`

	// InboxEmail is the general fallback address and the mailto target for applications
	InboxEmail string `env:"SITE_INBOX_EMAIL" default:"DivinaHealthcare@outlook.com"`

	// Phone is the support number shown in the footer and on the contact page
	Phone string `env:"SITE_PHONE" default:"09023265024"`
}

// DatabaseConfig holds database connection settings.
// The database is optional; the submission ledger and the portal need it.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// AttachmentConfig holds résumé attachment limits.
type AttachmentConfig struct {
	// MaxFileSize is the maximum allowed attachment size in bytes (default: 5MiB)
	MaxFileSize int64 `env:"ATTACHMENT_MAX_SIZE" default:"5242880"`

	// AllowedExtensions is a comma-separated list of accepted extensions
	AllowedExtensions []string `env:"ATTACHMENT_EXTENSIONS" default:".pdf,.doc,.docx"`

	// MaxConcurrent is the maximum number of parallel uploads (default: 5)
	MaxConcurrent int `env:"ATTACHMENT_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an upload slot (default: 30s)
	MaxWaitTime time.Duration `env:"ATTACHMENT_MAX_WAIT_TIME" default:"30s"`
}

// StorageConfig holds object storage settings for attachments.
type StorageConfig struct {
	// Provider selects the object store: s3 or none (default: none)
	Provider string `env:"STORAGE_PROVIDER" default:"none"`

	// Bucket is the destination bucket
	Bucket string `env:"STORAGE_BUCKET"`

	// Region is the bucket region (default: us-east-1)
	Region string `env:"STORAGE_REGION" envAlt:"AWS_REGION" default:"us-east-1"`

	// Endpoint points at an S3-compatible service instead of AWS
	Endpoint string `env:"STORAGE_ENDPOINT"`

	// AccessKeyID and SecretAccessKey are static credentials; the default AWS chain is used when empty
	AccessKeyID     string `env:"STORAGE_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"STORAGE_SECRET_ACCESS_KEY"`

	// PublicBaseURL is prefixed to object keys to build links (default: derived from bucket)
	PublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL"`

	// Prefix is prepended to every object key (default: resumes)
	Prefix string `env:"STORAGE_PREFIX" default:"resumes"`
}

// MailConfig holds message transport settings.
type MailConfig struct {
	// Provider selects the transport: emailjs, ses or log (default: log)
	Provider string `env:"MAIL_PROVIDER" default:"log"`

	// Endpoint is the EmailJS send endpoint
	Endpoint string `env:"EMAILJS_ENDPOINT" default:"https://api.emailjs.com/api/v1.0/email/send"`

	// ServiceID, PublicKey and PrivateKey authenticate against EmailJS
	ServiceID  string `env:"EMAILJS_SERVICE_ID"`
	PublicKey  string `env:"EMAILJS_PUBLIC_KEY"`
	PrivateKey string `env:"EMAILJS_PRIVATE_KEY"`

	// TemplateID is the default template for contact, careers and order forms
	TemplateID string `env:"EMAILJS_TEMPLATE_ID" default:"template_default"`

	// ApplicationTemplateID is the template for job applications (default: template_qwaepkc)
	ApplicationTemplateID string `env:"EMAILJS_APPLICATION_TEMPLATE_ID" default:"template_qwaepkc"`

	// SESRegion, SESFrom and SESTo configure the SES transport
	SESRegion string `env:"SES_REGION" default:"us-east-1"`
	SESFrom   string `env:"SES_FROM"`
	SESTo     string `env:"SES_TO"`

	// AlertTopicARN receives an SNS notice for every failed delivery when set
	AlertTopicARN string `env:"ALERT_TOPIC_ARN"`

	// Timeout bounds a single send call (default: 15s)
	Timeout time.Duration `env:"MAIL_TIMEOUT" default:"15s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// SubmitLimit is requests per minute for form submissions (default: 10)
	SubmitLimit int `env:"RATE_LIMIT_SUBMIT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects operational endpoints such as /metrics (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted X-API-Key values
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// LedgerConfig holds submission ledger retention settings.
type LedgerConfig struct {
	// RetentionDays is how long ledger rows are kept (default: 180)
	RetentionDays int `env:"LEDGER_RETENTION_DAYS" default:"180"`

	// CheckInterval is how often the purge job runs (default: 24h)
	CheckInterval time.Duration `env:"LEDGER_CHECK_INTERVAL" default:"24h"`
}

// RedisConfig holds the optional Redis connection used for the in-flight guard.
type RedisConfig struct {
	// URL is a redis:// connection string; an in-process guard is used when empty
	URL string `env:"REDIS_URL"`

	// GuardTTL bounds how long a submission may hold its in-flight lock (default: 2m)
	GuardTTL time.Duration `env:"REDIS_GUARD_TTL" default:"2m"`
}

// PortalConfig holds settings for the residents portal.
type PortalConfig struct {
	// Enabled mounts the /portal routes (default: false)
	Enabled bool `env:"PORTAL_ENABLED" default:"false"`

	// SessionTTL is how long a login stays valid (default: 24h)
	SessionTTL time.Duration `env:"PORTAL_SESSION_TTL" default:"24h"`

	// CleanupInterval is how often expired sessions are deleted (default: 1h)
	CleanupInterval time.Duration `env:"PORTAL_SESSION_CLEANUP_INTERVAL" default:"1h"`

	// CookieName is the session cookie name (default: divina_session)
	CookieName string `env:"PORTAL_COOKIE_NAME" default:"divina_session"`

	// SecureCookie marks the session cookie Secure (default: true)
	SecureCookie bool `env:"PORTAL_SECURE_COOKIE" default:"true"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + strconv.Itoa(c.Port)
	}
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Location resolves the configured timezone, falling back to UTC.
func (c *SiteConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
