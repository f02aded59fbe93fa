package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: localhost
    database: beacon
    user: beacon
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "beacon", cfg.App.Name)
	assert.Equal(t, "America/New_York", cfg.Beacon.DisplayTimezone)
	assert.Equal(t, []string{"conductor", "admin", "superadmin"}, cfg.Beacon.ReviewRoles)
	assert.Equal(t, TransportLog, cfg.Mail.Transport)
	assert.Equal(t, "[Beacon] ", cfg.Mail.SubjectPrefix)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, 10, cfg.Database.Redis.PoolSize)
	assert.Equal(t, 2, cfg.Database.Redis.MinIdleConns)
	assert.Equal(t, 3, cfg.Database.Elasticsearch.MaxRetries)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.False(t, cfg.Beacon.StrictDateOrder)
	assert.False(t, cfg.Beacon.IncludeDirectSubscribers)
	assert.Equal(t, "beacon-send-mail", cfg.Camunda.MailJobType)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("BEACON_TEST_DB_PASSWORD", "s3cret")
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+"    password: ${BEACON_TEST_DB_PASSWORD}\n"))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "password=s3cret")
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing postgres host",
			body:    "database:\n  postgres:\n    database: beacon\n    user: beacon\n",
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "ses transport needs region",
			body:    minimalConfig + "mail:\n  transport: ses\n  from_email: noreply@example.gov\n",
			wantErr: "mail.ses.region is required",
		},
		{
			name:    "zeebe transport needs broker",
			body:    minimalConfig + "mail:\n  transport: zeebe\n  from_email: noreply@example.gov\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name:    "zeebe transport with unknown delivery",
			body:    minimalConfig + "camunda:\n  broker_address: localhost:26500\nmail:\n  transport: zeebe\n  delivery: zeebe\n  from_email: noreply@example.gov\n",
			wantErr: "mail.delivery",
		},
		{
			name:    "unknown transport",
			body:    minimalConfig + "mail:\n  transport: pigeon\n",
			wantErr: "is not one of",
		},
		{
			name:    "bad timezone",
			body:    minimalConfig + "beacon:\n  display_timezone: Mars/Olympus\n",
			wantErr: "beacon.display_timezone",
		},
		{
			name:    "events enabled without topic",
			body:    minimalConfig + "events:\n  sns:\n    enabled: true\n",
			wantErr: "events.sns.topic_arn is required",
		},
		{
			name:    "dedup without redis",
			body:    minimalConfig + "dedup:\n  enabled: true\n",
			wantErr: "database.redis.address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBeaconConfig_Location(t *testing.T) {
	assert.Equal(t, "UTC", BeaconConfig{}.Location().String())
	assert.Equal(t, "UTC", BeaconConfig{DisplayTimezone: "Nowhere/Land"}.Location().String())
	assert.Equal(t, "America/Chicago", BeaconConfig{DisplayTimezone: "America/Chicago"}.Location().String())
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"beacon-send-mail": {Enabled: false, MaxJobsActive: 2}}}

	assert.False(t, GetWorkerConfig(cfg, "beacon-send-mail").Enabled)
	fallback := GetWorkerConfig(cfg, "other")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, 3, fallback.MaxRetries)
}

func TestMailConfig_DeliveryConfig(t *testing.T) {
	direct := MailConfig{Transport: TransportSES, Delivery: TransportSMTP}
	assert.Equal(t, TransportSES, direct.DeliveryConfig().Transport)

	queued := MailConfig{Transport: TransportZeebe, Delivery: TransportSMTP, FromEmail: "noreply@example.gov"}
	got := queued.DeliveryConfig()
	assert.Equal(t, TransportSMTP, got.Transport)
	assert.Equal(t, "noreply@example.gov", got.FromEmail)
}
