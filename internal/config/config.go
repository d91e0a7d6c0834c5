// Package config provides centralized configuration management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/twinaos/installer/internal/hooks"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values for the installer.
type Config struct {
	NATSURL         string        `mapstructure:"nats_url" yaml:"nats_url"`
	DataDir         string        `mapstructure:"data_dir" yaml:"data_dir"`
	Install         string        `mapstructure:"install" yaml:"install"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	LogFile         string        `mapstructure:"log_file" yaml:"log_file"`
	SettleDelay     time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	DefaultHostname string        `mapstructure:"default_hostname" yaml:"default_hostname"`
	RebootDelay     time.Duration `mapstructure:"reboot_delay" yaml:"reboot_delay"`
	RebootCommand   string        `mapstructure:"reboot_command" yaml:"reboot_command"`
	Simulation      Simulation    `mapstructure:"simulation" yaml:"simulation"`
	// PostInstall commands run in DataDir once the system is installed.
	PostInstall []hooks.Hook `mapstructure:"post_install" yaml:"post_install,omitempty"`
	Inventory   Inventory    `mapstructure:"inventory" yaml:"inventory"`
}

// Simulation tunes the built-in provisioning simulator.
type Simulation struct {
	StageDelay time.Duration `mapstructure:"stage_delay" yaml:"stage_delay"`
	// FailAt names a phase (partition, system, user-create, finalize) at
	// which the simulated run reports an error. Empty means never.
	FailAt string `mapstructure:"fail_at" yaml:"fail_at"`
}

// Inventory is the hardware the backend reports to the wizard.
type Inventory struct {
	Disks    []Disk    `mapstructure:"disks" yaml:"disks"`
	Networks []Network `mapstructure:"networks" yaml:"networks"`
}

type Disk struct {
	Name      string `mapstructure:"name" yaml:"name"`
	Path      string `mapstructure:"path" yaml:"path"`
	Model     string `mapstructure:"model" yaml:"model"`
	SizeBytes uint64 `mapstructure:"size_bytes" yaml:"size_bytes"`
}

type Network struct {
	SSID     string `mapstructure:"ssid" yaml:"ssid"`
	Signal   int    `mapstructure:"signal" yaml:"signal"`
	Security string `mapstructure:"security" yaml:"security,omitempty"`
	// Password is what the simulated backend accepts for secured networks.
	Password string `mapstructure:"password" yaml:"password,omitempty"`
}

// FailPhases lists the accepted values of simulation.fail_at.
var FailPhases = []string{"partition", "system", "user-create", "finalize"}

var envKeys = []string{
	"nats_url",
	"data_dir",
	"install",
	"log_level",
	"log_file",
	"settle_delay",
	"request_timeout",
	"default_hostname",
	"reboot_delay",
	"reboot_command",
	"simulation.stage_delay",
	"simulation.fail_at",
}

// Load loads configuration with full precedence:
// CLI flags > ENV vars > project config > XDG global config > defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("installer")

	v.SetDefault("nats_url", "")
	v.SetDefault("data_dir", ".twinaos")
	v.SetDefault("install", "default")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("settle_delay", 2*time.Second)
	v.SetDefault("request_timeout", 5*time.Second)
	v.SetDefault("default_hostname", "twinaos")
	v.SetDefault("reboot_delay", 3*time.Second)
	v.SetDefault("reboot_command", "")
	v.SetDefault("simulation.stage_delay", 1500*time.Millisecond)
	v.SetDefault("simulation.fail_at", "")

	v.SetEnvPrefix("TWINAOS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range envKeys {
		env := "TWINAOS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if len(cfg.Inventory.Disks) == 0 && len(cfg.Inventory.Networks) == 0 {
		cfg.Inventory = DefaultInventory()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration Load produces when no file or
// environment override is present.
func Default() *Config {
	return &Config{
		DataDir:         ".twinaos",
		Install:         "default",
		LogLevel:        "info",
		SettleDelay:     2 * time.Second,
		RequestTimeout:  5 * time.Second,
		DefaultHostname: "twinaos",
		RebootDelay:     3 * time.Second,
		Simulation:      Simulation{StageDelay: 1500 * time.Millisecond},
		Inventory:       DefaultInventory(),
	}
}

// DefaultInventory is a small fixture machine: two disks, three networks.
func DefaultInventory() Inventory {
	return Inventory{
		Disks: []Disk{
			{Name: "nvme0n1", Path: "/dev/nvme0n1", Model: "Samsung SSD 980", SizeBytes: 512110190592},
			{Name: "sda", Path: "/dev/sda", Model: "WDC WD10EZEX", SizeBytes: 1000204886016},
		},
		Networks: []Network{
			{SSID: "twina-lab", Signal: 82, Security: "WPA2", Password: "twinaos123"},
			{SSID: "guest", Signal: 64},
			{SSID: "neighbour-5G", Signal: 31, Security: "WPA3", Password: "unknown"},
		},
	}
}

// Validate rejects values the installer cannot run with.
func (c *Config) Validate() error {
	if c.Install == "" || strings.ContainsAny(c.Install, ".*> ") {
		return fmt.Errorf("invalid install name %q", c.Install)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.SettleDelay < 0 || c.RebootDelay < 0 || c.Simulation.StageDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.Simulation.FailAt != "" && !slices.Contains(FailPhases, c.Simulation.FailAt) {
		return fmt.Errorf("simulation.fail_at must be one of %s, got %q",
			strings.Join(FailPhases, ", "), c.Simulation.FailAt)
	}
	for i, h := range c.PostInstall {
		if strings.TrimSpace(h.Command) == "" {
			return fmt.Errorf("post_install[%d] has no command", i)
		}
	}
	for _, d := range c.Inventory.Disks {
		if d.Path == "" {
			return fmt.Errorf("inventory disk %q has no path", d.Name)
		}
	}
	return nil
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns ~/.config/twinaos/installer.yml or
// $XDG_CONFIG_HOME/twinaos/installer.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "twinaos", "installer.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "twinaos", "installer.yml")
}

// ProjectPath returns the config path in the current working directory.
func ProjectPath() string {
	return "twinaos-installer.yml"
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return write(path, cfg)
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	return write(ProjectPath(), cfg)
}

func write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
