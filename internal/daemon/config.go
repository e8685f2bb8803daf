package daemon

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"snmpfs/internal/artifacts"
	"snmpfs/internal/oid"
	"snmpfs/internal/schema"
	"snmpfs/internal/snmp"
)

// getConfigDir returns the config directory path.
// Uses SNMPFS_CONFIG_DIR env var if set, otherwise defaults to ~/.snmpfs.
// This is computed dynamically to support test isolation.
func getConfigDir() string {
	if dir := os.Getenv("SNMPFS_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".snmpfs")
}

// daemonName returns the fixed daemon name "daemon".
func daemonName() string {
	return "daemon"
}

// ConfigDir returns the configuration directory path
func ConfigDir() string {
	return getConfigDir()
}

// ConfigPath returns the default config file path
func ConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// PidPath returns the PID file path
func PidPath() string {
	return filepath.Join(getConfigDir(), daemonName()+".pid")
}

// LogPath returns the default log file path.
// Uses SNMPFS_DAEMON_LOG env var if set, otherwise defaults to config_dir/daemon.log.
func LogPath() string {
	if envPath := os.Getenv("SNMPFS_DAEMON_LOG"); envPath != "" {
		return envPath
	}
	return filepath.Join(getConfigDir(), daemonName()+".log")
}

// LockPath returns the lock file path
func LockPath() string {
	return filepath.Join(getConfigDir(), daemonName()+".lock")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(getConfigDir(), 0700)
}

// InitConfigDir creates the config directory and writes the default
// config file unless one exists. It returns the config file path.
func InitConfigDir() (string, error) {
	if err := EnsureConfigDir(); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := ConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, artifacts.DefaultConfig, 0600); err != nil {
			return "", fmt.Errorf("failed to create default config: %w", err)
		}
	}
	return configPath, nil
}

// AgentSection is the remote agent to export.
type AgentSection struct {
	Address    string        `yaml:"address"`
	Port       uint16        `yaml:"port"`
	Version    string        `yaml:"version"` // 1, 2c or 3
	Community  string        `yaml:"community"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries"`
	Username   string        `yaml:"username"`
	AuthProto  string        `yaml:"auth_proto"`
	AuthPhrase string        `yaml:"auth_phrase"`
	PrivProto  string        `yaml:"priv_proto"`
	PrivPhrase string        `yaml:"priv_phrase"`
}

// ExportSection is the part of the tree served and where.
type ExportSection struct {
	Root       string `yaml:"root"`        // dotted OID exported as "/"
	Listen     string `yaml:"listen"`      // NFS listen address
	MountPoint string `yaml:"mount_point"` // mounted after start when set
}

// SchemaSection selects the MIB files to load.
type SchemaSection struct {
	Dirs   []string `yaml:"dirs"`
	Files  []string `yaml:"files"`
	Ignore []string `yaml:"ignore"` // gitignore patterns relative to each dir
}

// HandleCacheSection tunes the path to handle cache of the NFS front end.
type HandleCacheSection struct {
	TTL  time.Duration `yaml:"ttl"`
	Size int           `yaml:"size"`
}

// Config is the daemon configuration, read from config.yaml.
type Config struct {
	Agent        AgentSection       `yaml:"agent"`
	Export       ExportSection      `yaml:"export"`
	Schema       SchemaSection      `yaml:"schema"`
	HandleCache  HandleCacheSection `yaml:"handle_cache"`
	Sessions     int                `yaml:"sessions"`      // idle sessions kept open
	MaxInFlight  int                `yaml:"max_in_flight"` // 0 = unbounded
	ReaddirChunk int                `yaml:"readdir_chunk"` // 0 = whole directory per call
	LogLevel     string             `yaml:"log_level"`     // trace, debug, info, warn, error, off
	LogFile      string             `yaml:"log_file"`      // default: config_dir/daemon.log
}

// ApplyDefaults fills zero-value fields with their defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.Agent.Address == "" {
		cfg.Agent.Address = "127.0.0.1"
	}
	if cfg.Agent.Port == 0 {
		cfg.Agent.Port = 161
	}
	if cfg.Agent.Version == "" {
		cfg.Agent.Version = "2c"
	}
	if cfg.Agent.Community == "" && cfg.Agent.Version != "3" {
		cfg.Agent.Community = "public"
	}
	if cfg.Agent.Timeout == 0 {
		cfg.Agent.Timeout = 2 * time.Second
	}
	if cfg.Export.Listen == "" {
		cfg.Export.Listen = "127.0.0.1:12049"
	}
	if cfg.HandleCache.TTL == 0 {
		cfg.HandleCache.TTL = 30 * time.Second
	}
	if cfg.Sessions == 0 {
		cfg.Sessions = 4
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFile == "" {
		cfg.LogFile = LogPath()
	}
}

// Validate reports the first setting that cannot work.
func (cfg *Config) Validate() error {
	switch strings.ToLower(cfg.Agent.Version) {
	case "1", "2c":
	case "3":
		if cfg.Agent.Username == "" {
			return fmt.Errorf("agent.username is required for version 3")
		}
		if cfg.Agent.PrivProto != "" && cfg.Agent.AuthProto == "" {
			return fmt.Errorf("agent.priv_proto needs agent.auth_proto")
		}
	default:
		return fmt.Errorf("agent.version %q: want 1, 2c or 3", cfg.Agent.Version)
	}
	if cfg.Agent.Timeout < 0 || cfg.Agent.Retries < 0 {
		return fmt.Errorf("agent.timeout and agent.retries must not be negative")
	}
	if _, err := cfg.ExportRoot(); err != nil {
		return fmt.Errorf("export.root: %w", err)
	}
	if _, _, err := net.SplitHostPort(cfg.Export.Listen); err != nil {
		return fmt.Errorf("export.listen: %w", err)
	}
	if cfg.Sessions < 1 {
		return fmt.Errorf("sessions must be at least 1")
	}
	if cfg.MaxInFlight < 0 || cfg.ReaddirChunk < 0 || cfg.HandleCache.Size < 0 {
		return fmt.Errorf("max_in_flight, readdir_chunk and handle_cache.size must not be negative")
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

// ExportRoot parses export.root. An empty root exports the whole tree.
func (cfg *Config) ExportRoot() (oid.Path, error) {
	return oid.Parse(cfg.Export.Root)
}

// AgentConfig returns the session parameters.
func (cfg *Config) AgentConfig() snmp.AgentConfig {
	a := cfg.Agent
	return snmp.AgentConfig{
		Address:    a.Address,
		Port:       a.Port,
		Version:    a.Version,
		Community:  a.Community,
		Timeout:    a.Timeout,
		Retries:    a.Retries,
		Username:   a.Username,
		AuthProto:  a.AuthProto,
		AuthPhrase: a.AuthPhrase,
		PrivProto:  a.PrivProto,
		PrivPhrase: a.PrivPhrase,
	}
}

// SchemaOptions returns the MIB loading options.
func (cfg *Config) SchemaOptions() schema.LoadOptions {
	return schema.LoadOptions{
		Dirs:   cfg.Schema.Dirs,
		Files:  cfg.Schema.Files,
		Ignore: cfg.Schema.Ignore,
	}
}

// ServerOptions returns the NFS front end options.
func (cfg *Config) ServerOptions() ServerOptions {
	return ServerOptions{
		HandleTTL:       cfg.HandleCache.TTL,
		HandleCacheSize: cfg.HandleCache.Size,
		ReaddirChunk:    cfg.ReaddirChunk,
	}
}

// ParseLogLevel maps a config log level to a logrus level. "off" and ""
// map to PanicLevel, which the daemon treats as discarding output.
func ParseLogLevel(level string) (log.Level, error) {
	switch strings.ToLower(level) {
	case "", "off", "none":
		return log.PanicLevel, nil
	case "trace":
		return log.TraceLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	}
	return log.PanicLevel, fmt.Errorf("log_level %q: want trace, debug, info, warn, error or off", level)
}

// loadDefaultConfig parses defaults from embedded artifact.
func loadDefaultConfig() Config {
	var cfg Config
	if err := yaml.Unmarshal(artifacts.DefaultConfig, &cfg); err != nil {
		panic("failed to parse embedded default config: " + err.Error())
	}
	return cfg
}

// LoadConfig reads the config file at configPath over the embedded
// defaults. An empty path means ConfigPath(); a missing file yields the
// defaults.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = ConfigPath()
	}
	cfg := loadDefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		log.Debugf("config: %s not found, using defaults", configPath)
	case err != nil:
		return nil, err
	default:
		// Lists in the file replace the defaults rather than merging.
		cfg.Schema = SchemaSection{}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg to configPath.
func SaveConfig(configPath string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	header := []byte("# snmpfs configuration\n# See: snmpfs init --help\n\n")
	return os.WriteFile(configPath, append(header, data...), 0600)
}
