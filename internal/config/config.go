// Package config loads the service configuration from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rl1809/wms-approval/internal/core/domain"
)

const (
	ServiceName    = "wms-approval"
	ServiceVersion = "0.1.0"
)

const (
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
)

const (
	LogsPath      = "/otlp/v1/logs"
	TracesPath    = "/otlp/v1/traces"
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Otel     OtelConfig     `yaml:"otel"`
	Approval ApprovalConfig `yaml:"approval"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	// Driver is "memory" or "mysql"
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig enables the idempotency guard and the audit stream when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Broker     string `yaml:"broker"`
	AuditTopic string `yaml:"audit_topic"`
}

type OtelConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AuthHeader string `yaml:"auth_header"`
}

type ApprovalConfig struct {
	// DefaultApprover receives every new flow
	DefaultApprover string `yaml:"default_approver"`
	SafetyStock     int    `yaml:"safety_stock"`
	// ProcurementCeiling is a decimal string, e.g. "100000.00"
	ProcurementCeiling string `yaml:"procurement_ceiling"`
}

// CatalogConfig seeds the static catalog used by the memory deployment and
// the mysql reference tables on migrate.
type CatalogConfig struct {
	Products  []ProductConfig  `yaml:"products"`
	Locations []LocationConfig `yaml:"locations"`
}

type ProductConfig struct {
	ID    int64  `yaml:"id"`
	SKU   string `yaml:"sku"`
	Name  string `yaml:"name"`
	Unit  string `yaml:"unit"`
	Price string `yaml:"price"`
	// InitialStock seeds the memory ledger
	InitialStock int `yaml:"initial_stock"`
}

type LocationConfig struct {
	ID     int64  `yaml:"id"`
	Code   string `yaml:"code"`
	Name   string `yaml:"name"`
	Active bool   `yaml:"active"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":9090",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:       DriverMemory,
			MaxOpenConns: 20,
			MaxIdleConns: 10,
		},
		Kafka: KafkaConfig{
			AuditTopic: "wms.audit",
		},
		Approval: ApprovalConfig{
			DefaultApprover:    "manager",
			SafetyStock:        50,
			ProcurementCeiling: "100000",
		},
	}
}

func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Load reads path when it is non-empty, applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ApplyEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"WMS_HTTP_ADDR", &c.Server.HTTPAddr},
		{"WMS_GRPC_ADDR", &c.Server.GRPCAddr},
		{"WMS_STORAGE_DRIVER", &c.Storage.Driver},
		{"MYSQL_DSN", &c.Storage.DSN},
		{"REDIS_ADDR", &c.Redis.Addr},
		{"KAFKA_BROKER", &c.Kafka.Broker},
		{"OTEL_ENDPOINT", &c.Otel.Endpoint},
		{"OTEL_AUTH_HEADER", &c.Otel.AuthHeader},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverMySQL:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the mysql driver")
		}
		if _, err := c.Storage.MySQLDSN(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverMemory, DriverMySQL, c.Storage.Driver)
	}
	if c.Server.HTTPAddr == "" && c.Server.GRPCAddr == "" {
		return fmt.Errorf("at least one of server.http_addr and server.grpc_addr is required")
	}
	if c.Approval.DefaultApprover == "" {
		return fmt.Errorf("approval.default_approver is required")
	}
	if c.Approval.SafetyStock < 0 {
		return fmt.Errorf("approval.safety_stock must not be negative")
	}
	if _, err := c.Approval.Ceiling(); err != nil {
		return err
	}

	seen := make(map[int64]struct{}, len(c.Catalog.Products))
	for _, p := range c.Catalog.Products {
		if p.ID <= 0 {
			return fmt.Errorf("catalog product id must be positive, got %d", p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("catalog product %d listed twice", p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.Price != "" {
			if _, err := decimal.NewFromString(p.Price); err != nil {
				return fmt.Errorf("catalog product %d price: %w", p.ID, err)
			}
		}
		if p.InitialStock < 0 || p.InitialStock > domain.MaxStockQuantity {
			return fmt.Errorf("catalog product %d initial_stock must be between 0 and %d", p.ID, domain.MaxStockQuantity)
		}
	}
	for _, l := range c.Catalog.Locations {
		if l.ID <= 0 || l.Code == "" {
			return fmt.Errorf("catalog location needs a positive id and a code")
		}
	}
	return nil
}

// MySQLDSN returns DSN with parseTime forced on, which DATETIME scans need.
func (s StorageConfig) MySQLDSN() (string, error) {
	dsn, err := mysql.ParseDSN(s.DSN)
	if err != nil {
		return "", fmt.Errorf("storage.dsn: %w", err)
	}
	dsn.ParseTime = true
	return dsn.FormatDSN(), nil
}

// Ceiling parses ProcurementCeiling. An empty value means the engine default.
func (a ApprovalConfig) Ceiling() (decimal.Decimal, error) {
	if a.ProcurementCeiling == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(a.ProcurementCeiling)
	if err != nil {
		return decimal.Zero, fmt.Errorf("approval.procurement_ceiling: %w", err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("approval.procurement_ceiling must be positive")
	}
	return d, nil
}
