package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MemoryDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, LockLocal, cfg.Lock.Driver)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, 4, cfg.Payroll.Workers)
	assert.True(t, cfg.Payroll.PFRate.Equal(decimal.RequireFromString("0.12")))
	assert.True(t, cfg.Payroll.ESICeiling.Equal(decimal.NewFromInt(21000)))
}

func TestLoad_Rejections(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{"STORE_DRIVER": "memory"}, "JWT_SECRET_KEY is required"},
		{"postgres without password", map[string]string{"JWT_SECRET_KEY": "s"}, "DB_PASSWORD is required"},
		{"valkey without address", map[string]string{"JWT_SECRET_KEY": "s", "STORE_DRIVER": "memory", "RUN_LOCK_DRIVER": "valkey"}, "VALKEY_ADDR is required"},
		{"unknown store", map[string]string{"JWT_SECRET_KEY": "s", "STORE_DRIVER": "sqlite"}, "STORE_DRIVER must be"},
		{"bad rate", map[string]string{"JWT_SECRET_KEY": "s", "STORE_DRIVER": "memory", "PAYROLL_PF_RATE": "twelve"}, "invalid PAYROLL_PF_RATE"},
		{"bad workers", map[string]string{"JWT_SECRET_KEY": "s", "STORE_DRIVER": "memory", "PAYROLL_WORKERS": "0"}, "PAYROLL_WORKERS must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET_KEY", "")
			t.Setenv("DB_PASSWORD", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, Name: "payroll", SSLMode: "disable"}}
	assert.Equal(t, "postgres://u:p@h:5432/payroll?sslmode=disable", cfg.DatabaseURL())
}
