// Copyright 2025 vArmor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/opencontainers/runtime-spec/specs-go"
	"gopkg.in/yaml.v3"

	"github.com/bytedance/seccompsynth/internal/workload"
	"github.com/bytedance/seccompsynth/pkg/syscalls"
	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

var (
	// DefaultCommand starts the reference service
	DefaultCommand = []string{"python3", "app.py"}

	// DefaultEndpoint is the address the reference service listens on
	DefaultEndpoint = "127.0.0.1:5000"

	// DefaultConfigPath is read when it exists and no config file is given
	DefaultConfigPath = "seccompsynth.yaml"

	// DefaultOutputPath is the path of the generated seccomp profile
	DefaultOutputPath = "seccomp.json"

	// DefaultReportPath is the path of the session report
	DefaultReportPath = "seccomp-report.json"

	// DefaultTimeout bounds a whole session
	DefaultTimeout time.Duration = 5 * time.Minute

	// DefaultReadinessTimeout bounds the wait for the service to accept connections
	DefaultReadinessTimeout time.Duration = 60 * time.Second

	// DefaultInteractionTimeout bounds a single interaction
	DefaultInteractionTimeout time.Duration = 10 * time.Second

	// DefaultStopGracePeriod is the time between SIGTERM and SIGKILL
	DefaultStopGracePeriod = synthtypes.DefaultStopGracePeriod

	// DefaultAuditLogPaths are the candidate locations of the kernel audit
	// records, separated by |
	DefaultAuditLogPaths = "/var/log/audit/audit.log|/var/log/kern.log"

	// DefaultDataDirectory saves the raw syscall records in debug mode
	DefaultDataDirectory = "seccompsynth-data"
)

// ArchitectureConfig selects the architecture tags of the profile.
type ArchitectureConfig struct {
	Mode       synthtypes.ArchMode `yaml:"mode"`
	Configured []string            `yaml:"configured,omitempty"`
}

// BaselineConfig extends the built-in baseline syscalls.
type BaselineConfig struct {
	Extra []string `yaml:"extra,omitempty"`
}

// Config is the configuration of a session. Defaults are overridden by the
// config file, which is overridden by the command line.
type Config struct {
	Command            []string               `yaml:"command"`
	Dir                string                 `yaml:"dir,omitempty"`
	Env                []string               `yaml:"env,omitempty"`
	Endpoint           string                 `yaml:"endpoint"`
	Output             string                 `yaml:"output"`
	Report             string                 `yaml:"report"`
	Timeout            time.Duration          `yaml:"timeout"`
	ReadinessTimeout   time.Duration          `yaml:"readinessTimeout"`
	InteractionTimeout time.Duration          `yaml:"interactionTimeout"`
	StopGracePeriod    time.Duration          `yaml:"stopGracePeriod"`
	Architectures      ArchitectureConfig     `yaml:"architectures"`
	Baseline           BaselineConfig         `yaml:"baseline"`
	Workload           []workload.Interaction `yaml:"workload,omitempty"`
	// SyscallTables override the built-in syscall tables, keyed by architecture
	SyscallTables map[string]map[uint64]string `yaml:"syscallTables,omitempty"`
	AuditLogPaths string                       `yaml:"auditLogPaths"`
	DataDirectory string                       `yaml:"dataDirectory"`
	MetricsAddr   string                       `yaml:"metricsAddr,omitempty"`
	AuditTrail    string                       `yaml:"auditTrail,omitempty"`
	Debug         bool                         `yaml:"debug,omitempty"`
	Strict        bool                         `yaml:"strict,omitempty"`
}

// Default returns the configuration that needs no flag and no file.
func Default() *Config {
	return &Config{
		Command:            append([]string{}, DefaultCommand...),
		Endpoint:           DefaultEndpoint,
		Output:             DefaultOutputPath,
		Report:             DefaultReportPath,
		Timeout:            DefaultTimeout,
		ReadinessTimeout:   DefaultReadinessTimeout,
		InteractionTimeout: DefaultInteractionTimeout,
		StopGracePeriod:    DefaultStopGracePeriod,
		Architectures: ArchitectureConfig{
			Mode: synthtypes.ObservedArches,
		},
		Workload:      workload.DefaultInteractions(),
		AuditLogPaths: DefaultAuditLogPaths,
		DataDirectory: DefaultDataDirectory,
	}
}

// Load reads the config file on top of the defaults. A missing file is only
// an error when it was asked for explicitly.
func Load(path string, explicit bool) (*Config, error) {
	c := Default()

	if path == "" {
		return c, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	}

	if err := yaml.Unmarshal(content, c); err != nil {
		return nil, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	return c, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if len(c.Command) == 0 || strings.TrimSpace(c.Command[0]) == "" {
		return fmt.Errorf("the command of the target is empty")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("the endpoint of the target is empty")
	}
	if c.Output == "" {
		return fmt.Errorf("the output path is empty")
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"timeout", c.Timeout},
		{"readinessTimeout", c.ReadinessTimeout},
		{"interactionTimeout", c.InteractionTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	if c.StopGracePeriod < 0 {
		return fmt.Errorf("stopGracePeriod must not be negative, got %s", c.StopGracePeriod)
	}

	switch c.Architectures.Mode {
	case synthtypes.ObservedArches, synthtypes.ConfiguredArches:
	default:
		return fmt.Errorf("unknown architecture mode %q", c.Architectures.Mode)
	}
	if _, err := c.ConfiguredArches(); err != nil {
		return err
	}
	if _, err := c.Tables(); err != nil {
		return err
	}

	for i := range c.Workload {
		if err := c.Workload[i].Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ConfiguredArches parses the configured architecture names.
func (c *Config) ConfiguredArches() ([]specs.Arch, error) {
	arches := make([]specs.Arch, 0, len(c.Architectures.Configured))
	for _, name := range c.Architectures.Configured {
		arch, err := syscalls.ParseArch(name)
		if err != nil {
			return nil, err
		}
		arches = append(arches, arch)
	}
	return arches, nil
}

// Tables parses the syscall table overrides.
func (c *Config) Tables() (map[specs.Arch]syscalls.MapTable, error) {
	tables := make(map[specs.Arch]syscalls.MapTable, len(c.SyscallTables))
	for name, table := range c.SyscallTables {
		arch, err := syscalls.ParseArch(name)
		if err != nil {
			return nil, fmt.Errorf("invalid syscall table: %w", err)
		}
		tables[arch] = syscalls.MapTable(table)
	}
	return tables, nil
}
