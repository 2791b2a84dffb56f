package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 50, cfg.Approval.SafetyStock)

	ceiling, err := cfg.Approval.Ceiling()
	require.NoError(t, err)
	assert.Equal(t, "100000", ceiling.String())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wms.yaml")
	data := `
server:
  http_addr: ":18080"
approval:
  default_approver: "boss"
  procurement_ceiling: "5000.50"
catalog:
  products:
    - id: 1
      sku: "SKU-1"
      name: "Widget"
      price: "12.50"
      initial_stock: 100
  locations:
    - id: 10
      code: "A-01"
      active: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":18080", cfg.Server.HTTPAddr)
	assert.Equal(t, ":9090", cfg.Server.GRPCAddr, "unset keys keep defaults")
	assert.Equal(t, "boss", cfg.Approval.DefaultApprover)
	require.Len(t, cfg.Catalog.Products, 1)
	assert.Equal(t, 100, cfg.Catalog.Products[0].InitialStock)
	require.Len(t, cfg.Catalog.Locations, 1)
	assert.True(t, cfg.Catalog.Locations[0].Active)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("WMS_STORAGE_DRIVER", "mysql")
	t.Setenv("MYSQL_DSN", "root:root@tcp(db:3306)/wms?parseTime=true")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DriverMySQL, cfg.Storage.Driver)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestStorageConfig_MySQLDSNForcesParseTime(t *testing.T) {
	dsn, err := StorageConfig{DSN: "root:root@tcp(db:3306)/wms?charset=utf8mb4"}.MySQLDSN()
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, "wms", parsed.DBName)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "utf8mb4", parsed.Params["charset"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }},
		{"mysql without dsn", func(c *Config) { c.Storage.Driver = DriverMySQL }},
		{"malformed dsn", func(c *Config) { c.Storage.Driver, c.Storage.DSN = DriverMySQL, "root:root@tcp(db:3306/wms" }},
		{"initial stock too large", func(c *Config) {
			c.Catalog.Products = []ProductConfig{{ID: 1, InitialStock: math.MaxInt}}
		}},
		{"no listeners", func(c *Config) { c.Server.HTTPAddr, c.Server.GRPCAddr = "", "" }},
		{"no approver", func(c *Config) { c.Approval.DefaultApprover = "" }},
		{"negative safety", func(c *Config) { c.Approval.SafetyStock = -1 }},
		{"bad ceiling", func(c *Config) { c.Approval.ProcurementCeiling = "lots" }},
		{"zero ceiling", func(c *Config) { c.Approval.ProcurementCeiling = "0" }},
		{"bad price", func(c *Config) {
			c.Catalog.Products = []ProductConfig{{ID: 1, Price: "x"}}
		}},
		{"duplicate product", func(c *Config) {
			c.Catalog.Products = []ProductConfig{{ID: 1}, {ID: 1}}
		}},
		{"location without code", func(c *Config) {
			c.Catalog.Locations = []LocationConfig{{ID: 1}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
