package config

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigDefaults(t *testing.T) {
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432/payments"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
		Gateways: []GatewayConfig{
			{Type: "card", Endpoint: "https://cards.example.com", APIKey: "k", WebhookSecret: "s"},
		},
	}
	f, err := os.CreateTemp("", "payments-*.json")
	require.NoError(t, err)
	defer func() {
		_ = os.Remove(f.Name())
	}()
	require.NoError(t, json.NewEncoder(f).Encode(&cnf))
	require.NoError(t, f.Close())

	require.NoError(t, InitConfig(f.Name()))

	loaded, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, DEFAULT_PORT, loaded.Server.Port)
	assert.Equal(t, "10", loaded.Orchestrator.PlatformFeePercent)
	assert.Equal(t, 3, loaded.Escalation.WarnAfterDays)
	assert.Equal(t, 7, loaded.Escalation.PauseAfterDays)
	assert.Equal(t, 14, loaded.Escalation.EscalateAfterDays)
	assert.Equal(t, 5, loaded.Retry.MaxAttempts)
	assert.Equal(t, 30, loaded.Reconciliation.GraceWindowMins)
}

func TestInitConfigRequiresDataSource(t *testing.T) {
	t.Setenv("PAYMENTS_DATA_SOURCE_DNS", "")
	t.Setenv("PAYMENTS_REDIS_DNS", "")
	err := InitConfig("does-not-exist.json")
	assert.Error(t, err)
}

func TestGatewayByType(t *testing.T) {
	cnf := &Configuration{
		Gateways: []GatewayConfig{
			{Type: "card", Endpoint: "https://cards.example.com"},
			{Type: "crypto", Endpoint: "https://chain.example.com"},
		},
	}
	g, ok := cnf.GatewayByType("crypto")
	assert.True(t, ok)
	assert.Equal(t, "https://chain.example.com", g.Endpoint)

	_, ok = cnf.GatewayByType("bank_transfer")
	assert.False(t, ok)
}
