package installer

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/twinaos/installer/internal/wizard"
	"gopkg.in/yaml.v3"
)

// Answers pre-fills every user-driven step for an unattended run.
type Answers struct {
	Language     string         `yaml:"language"`
	Keyboard     string         `yaml:"keyboard"`
	Timezone     string         `yaml:"timezone"`
	Network      *NetworkAnswer `yaml:"network,omitempty"`
	Disk         string         `yaml:"disk"`
	Partitioning string         `yaml:"partitioning"`
	User         UserAnswer     `yaml:"user"`
	// Reboot requests a restart once installation completes.
	Reboot bool `yaml:"reboot"`
}

type NetworkAnswer struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password,omitempty"`
}

type UserAnswer struct {
	FullName string `yaml:"fullname"`
	// Username defaults to the one suggested from FullName.
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password"`
	Hostname string `yaml:"hostname,omitempty"`
}

// LoadAnswers reads an answers file and fills defaults.
func LoadAnswers(path string) (*Answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading answers: %w", err)
	}
	return ParseAnswers(data)
}

func ParseAnswers(data []byte) (*Answers, error) {
	var a Answers
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing answers: %w", err)
	}
	a.applyDefaults()
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

func (a *Answers) applyDefaults() {
	if a.Language == "" {
		a.Language = "en"
	}
	if a.Keyboard == "" {
		a.Keyboard = "us"
	}
	if a.Timezone == "" {
		a.Timezone = "UTC"
	}
	if a.Partitioning == "" {
		a.Partitioning = string(wizard.PartitionAuto)
	}
}

// Validate checks what can be checked without the backend.
func (a *Answers) Validate() error {
	var result *multierror.Error
	if a.Disk == "" {
		result = multierror.Append(result, errors.New("disk is required"))
	}
	switch wizard.PartitionMode(a.Partitioning) {
	case wizard.PartitionAuto, wizard.PartitionManual:
	default:
		result = multierror.Append(result, fmt.Errorf("partitioning must be auto or manual, got %q", a.Partitioning))
	}
	if a.User.FullName == "" {
		result = multierror.Append(result, errors.New("user.fullname is required"))
	}
	if a.User.Username != "" && !wizard.ValidUsername(a.User.Username) {
		result = multierror.Append(result, fmt.Errorf("user.username %q is not a valid username", a.User.Username))
	}
	if a.User.Hostname != "" && !wizard.ValidHostname(a.User.Hostname) {
		result = multierror.Append(result, fmt.Errorf("user.hostname %q is not a valid hostname", a.User.Hostname))
	}
	if !wizard.ValidPassword(a.User.Password) {
		result = multierror.Append(result, errors.New("user.password is too weak"))
	}
	if a.Network != nil && a.Network.SSID == "" {
		result = multierror.Append(result, errors.New("network.ssid is required when network is set"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid answers: %w", err)
	}
	return nil
}
