package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Beacon   BeaconConfig            `mapstructure:"beacon"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Mail     MailConfig              `mapstructure:"mail"`
	Events   EventsConfig            `mapstructure:"events"`
	Search   SearchConfig            `mapstructure:"search"`
	Dedup    DedupConfig             `mapstructure:"dedup"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Metrics  MetricsConfig           `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BeaconConfig holds the domain rules that vary per deployment.
type BeaconConfig struct {
	// DisplayTimezone is the IANA zone every date-only comparison is made in.
	DisplayTimezone string `mapstructure:"display_timezone"`
	BaseURL         string `mapstructure:"base_url"`

	// Roles that receive "needs review" notices.
	ReviewRoles []string `mapstructure:"review_roles"`
	// Roles allowed to publish, archive and edit public opportunities.
	ApproverRoles []string `mapstructure:"approver_roles"`
	// Roles notified when a new vendor signs up.
	AdminRoles []string `mapstructure:"admin_roles"`

	StrictDateOrder          bool `mapstructure:"strict_date_order"`
	IncludeDirectSubscribers bool `mapstructure:"include_direct_subscribers"`
}

// Location resolves DisplayTimezone, falling back to UTC.
func (b BeaconConfig) Location() *time.Location {
	if b.DisplayTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type CamundaConfig struct {
	BrokerAddress string `mapstructure:"broker_address"`
	MaxJobsActive int    `mapstructure:"max_jobs_active"`
	MailProcessID string `mapstructure:"mail_process_id"`
	MailJobType   string `mapstructure:"mail_job_type"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	MaxRetries int      `mapstructure:"max_retries"`
}

type RedisConfig struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// MailConfig selects and configures the outbound mail transport.
type MailConfig struct {
	Transport string `mapstructure:"transport"` // ses | smtp | zeebe | log
	// Delivery is what the send-mail worker uses when Transport is zeebe.
	Delivery      string `mapstructure:"delivery"` // ses | smtp | log
	FromEmail     string `mapstructure:"from_email"`
	ReplyTo       string `mapstructure:"reply_to"`
	SubjectPrefix string `mapstructure:"subject_prefix"`

	SES struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"ses"`

	SMTP struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		UseTLS   bool   `mapstructure:"use_tls"`
	} `mapstructure:"smtp"`
}

type EventsConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

type SearchConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

// DedupConfig controls the per-recipient send ledger in Redis.
type DedupConfig struct {
	Enabled bool `mapstructure:"enabled"`
	TTL     int  `mapstructure:"ttl"` // seconds
}

// WorkerConfig holds the settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// DeliveryConfig returns the settings a process that delivers mail itself
// should use.
func (m MailConfig) DeliveryConfig() MailConfig {
	if m.Transport == TransportZeebe {
		m.Transport = m.Delivery
	}
	return m
}
