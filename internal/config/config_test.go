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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opencontainers/runtime-spec/specs-go"
	"gotest.tools/assert"

	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

func Test_DefaultIsValid(t *testing.T) {
	c := Default()
	assert.NilError(t, c.Validate())
	assert.DeepEqual(t, c.Command, []string{"python3", "app.py"})
	assert.Equal(t, c.Output, "seccomp.json")
	assert.Equal(t, len(c.Workload), 4)
}

func Test_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seccompsynth.yaml")
	content := `
command: ["node", "server.js"]
endpoint: 127.0.0.1:8080
timeout: 90s
readinessTimeout: 15s
architectures:
  mode: configured
  configured: [amd64, SCMP_ARCH_X86]
baseline:
  extra: [uname]
syscallTables:
  SCMP_ARCH_X86_64:
    1000: future_syscall
workload:
  - name: health
    path: /healthz
  - name: ws
    kind: websocket
    path: /ws
    send: ["ping"]
    receive: 1
`
	assert.NilError(t, os.WriteFile(path, []byte(content), 0644))

	c, err := Load(path, true)
	assert.NilError(t, err)
	assert.NilError(t, c.Validate())

	assert.DeepEqual(t, c.Command, []string{"node", "server.js"})
	assert.Equal(t, c.Endpoint, "127.0.0.1:8080")
	assert.Equal(t, c.Timeout, 90*time.Second)
	assert.Equal(t, c.ReadinessTimeout, 15*time.Second)
	// Untouched settings keep their defaults
	assert.Equal(t, c.InteractionTimeout, DefaultInteractionTimeout)
	assert.Equal(t, c.Output, DefaultOutputPath)

	assert.Equal(t, c.Architectures.Mode, synthtypes.ConfiguredArches)
	arches, err := c.ConfiguredArches()
	assert.NilError(t, err)
	assert.DeepEqual(t, arches, []specs.Arch{specs.ArchX86_64, specs.ArchX86})

	tables, err := c.Tables()
	assert.NilError(t, err)
	name, ok := tables[specs.ArchX86_64].Lookup(1000)
	assert.Assert(t, ok)
	assert.Equal(t, name, "future_syscall")

	assert.Equal(t, len(c.Workload), 2)
	assert.Equal(t, c.Workload[1].Kind, synthtypes.WebsocketInteraction)
}

func Test_LoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	c, err := Load(path, false)
	assert.NilError(t, err)
	assert.DeepEqual(t, c, Default())

	_, err = Load(path, true)
	assert.Assert(t, err != nil)
}

func Test_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(c *Config)
	}{
		{name: "empty command", modify: func(c *Config) { c.Command = nil }},
		{name: "blank command", modify: func(c *Config) { c.Command = []string{" "} }},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }},
		{name: "negative grace period", modify: func(c *Config) { c.StopGracePeriod = -time.Second }},
		{name: "unknown mode", modify: func(c *Config) { c.Architectures.Mode = "all" }},
		{name: "unknown arch", modify: func(c *Config) { c.Architectures.Configured = []string{"sparc"} }},
		{name: "unknown table arch", modify: func(c *Config) {
			c.SyscallTables = map[string]map[uint64]string{"mips": {0: "read"}}
		}},
		{name: "bad interaction", modify: func(c *Config) { c.Workload[0].Kind = "grpc" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.modify(c)
			assert.Assert(t, c.Validate() != nil)
		})
	}
}
