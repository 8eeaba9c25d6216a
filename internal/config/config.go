// Package config handles configuration loading, validation, and
// persistence for the Bellhop gateway and inventory node daemons.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"

	// Default deployment ports. The gateway listens for clients on TCP
	// and exchanges datagrams with inventory nodes on UDP; each partition
	// node binds its own UDP port.
	DefaultClientPort  = 45902
	DefaultBackendPort = 44902
	DefaultAPIPort     = 5000
)

// Config is the root configuration structure for Bellhop.
type Config struct {
	mu   sync.RWMutex
	path string

	Gateway         GatewayData     `json:"gateway"`
	ApplicationData ApplicationData `json:"application_data"`
}

// GatewayData contains the network layout of the deployment: where the
// gateway listens and which inventory node owns each partition.
type GatewayData struct {
	Host        string `json:"host"`
	ClientPort  int    `json:"client_tcp_port"`
	BackendPort int    `json:"backend_udp_port"`
	APIPort     int    `json:"api_port"`

	// MemberFile is the line-oriented "username, password" directory
	// loaded once at startup. Credentials in it are stored obscured.
	MemberFile string `json:"member_file"`

	// ReplyTimeoutSec bounds how long a connection handler waits for an
	// inventory node's reply before answering the client with not-found.
	ReplyTimeoutSec int `json:"reply_timeout_sec"`

	Partitions []PartitionData `json:"partitions"`
}

// PartitionData describes one inventory node: the partition identifier
// (the first character of every room code it owns), its UDP address, and
// the room table file it loads at startup.
type PartitionData struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	UDPPort  int    `json:"udp_port"`
	DataFile string `json:"data_file"`
}

// Addr returns the partition node's UDP address in host:port form.
func (p PartitionData) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.UDPPort))
}

// ApplicationData contains gateway application configuration.
type ApplicationData struct {
	MQTT     MQTTConfig     `json:"mqtt"`
	Audit    AuditConfig    `json:"audit"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled   bool   `json:"enabled"`
	BrokerURL string `json:"broker_url"`
	Port      int    `json:"port"`
	UseTLS    bool   `json:"use_tls"`
	CertFile  string `json:"cert_file"`
	KeyFile   string `json:"key_file"`
	ClientID  string `json:"client_id"`
}

// AuditConfig holds activity-log settings.
type AuditConfig struct {
	Enabled       bool   `json:"enabled"`
	Path          string `json:"path"`
	RetentionDays int    `json:"retention_days"`
}

// SecurityConfig holds admin API security settings.
type SecurityConfig struct {
	TLSEnabled     bool     `json:"tls_enabled"`
	TLSCertFile    string   `json:"tls_cert_file"`
	TLSKeyFile     string   `json:"tls_key_file"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration matching the reference
// deployment: one gateway and three partition nodes on loopback.
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayData{
			Host:            "127.0.0.1",
			ClientPort:      DefaultClientPort,
			BackendPort:     DefaultBackendPort,
			APIPort:         DefaultAPIPort,
			MemberFile:      "member.txt",
			ReplyTimeoutSec: 5,
			Partitions: []PartitionData{
				{Name: "S", Host: "127.0.0.1", UDPPort: 41902, DataFile: "single.txt"},
				{Name: "D", Host: "127.0.0.1", UDPPort: 42902, DataFile: "double.txt"},
				{Name: "U", Host: "127.0.0.1", UDPPort: 43902, DataFile: "suite.txt"},
			},
		},
		ApplicationData: ApplicationData{
			MQTT: MQTTConfig{
				Enabled:   false,
				BrokerURL: "localhost",
				Port:      8883,
				UseTLS:    true,
			},
			Audit: AuditConfig{
				Enabled:       true,
				Path:          filepath.Join(DefaultConfigDir, "audit.db"),
				RetentionDays: 30,
			},
			Security: SecurityConfig{
				RateLimitRPS: 100,
			},
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxBackups: 5,
			},
		},
	}
}

// Load reads configuration from a JSON file, creating a default one if
// none exists. Defaults are applied first and then overlaid, so fields
// added in code updates keep their defaults in older config files.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save so config.json always reflects the complete set of options.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetGateway returns a copy of the gateway configuration.
func (c *Config) GetGateway() GatewayData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Gateway
}

// SetGateway updates the gateway configuration.
func (c *Config) SetGateway(data GatewayData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gateway = data
}

// GetApplicationData returns a copy of the application configuration.
func (c *Config) GetApplicationData() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ApplicationData
}

// Partition returns the configuration of a named partition.
func (c *Config) Partition(name string) (PartitionData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.Gateway.Partitions {
		if p.Name == name {
			return p, true
		}
	}
	return PartitionData{}, false
}

// PartitionAddrs returns the partition name to UDP address mapping
// the router uses for forwarding.
func (c *Config) PartitionAddrs() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	addrs := make(map[string]string, len(c.Gateway.Partitions))
	for _, p := range c.Gateway.Partitions {
		addrs[p.Name] = p.Addr()
	}
	return addrs
}

// UpdateAppField updates a field in application data by its dotted JSON
// key, e.g. "logging.level". The JSON round trip keeps the mutation
// consistent with the struct tags.
func (c *Config) UpdateAppField(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, _ := json.Marshal(c.ApplicationData)
	m := make(map[string]interface{})
	json.Unmarshal(data, &m)

	parts := strings.Split(key, ".")
	cursor := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := cursor[part].(map[string]interface{})
		if !ok {
			return fmt.Errorf("unknown config section %q in key %s", part, key)
		}
		cursor = next
	}
	leaf := parts[len(parts)-1]
	if _, ok := cursor[leaf]; !ok {
		return fmt.Errorf("unknown config field %s", key)
	}
	cursor[leaf] = value

	updated, _ := json.Marshal(m)
	if err := json.Unmarshal(updated, &c.ApplicationData); err != nil {
		return fmt.Errorf("failed to update field %s: %w", key, err)
	}

	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}
