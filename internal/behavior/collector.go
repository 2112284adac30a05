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

// Package behavior traces a target, drives its workload and turns the observed
// syscalls into a seccomp profile.
package behavior

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/opencontainers/runtime-spec/specs-go"

	"github.com/bytedance/seccompsynth/internal/behavior/synthesizer"
	"github.com/bytedance/seccompsynth/pkg/metrics"
	tracer "github.com/bytedance/seccompsynth/pkg/processtracer"
	"github.com/bytedance/seccompsynth/pkg/syscalls"
)

// Collector resolves syscall events and folds them into a synthesizer. It is
// not safe for concurrent use, the session loop is its only caller.
type Collector struct {
	resolver *syscalls.Resolver
	synth    *synthesizer.Synthesizer
	metrics  *metrics.SessionMetrics
	events   uint64
	log      logr.Logger
}

func NewCollector(resolver *syscalls.Resolver, synth *synthesizer.Synthesizer, sessionMetrics *metrics.SessionMetrics, log logr.Logger) *Collector {
	return &Collector{
		resolver: resolver,
		synth:    synth,
		metrics:  sessionMetrics,
		log:      log,
	}
}

// Collect folds one syscall entry.
func (c *Collector) Collect(event tracer.SyscallEvent) {
	c.events++

	arch, ok := syscalls.ArchFromAudit(event.AuditArch, event.Nr)
	if !ok {
		arch = specs.Arch(fmt.Sprintf("AUDIT_ARCH_0x%08x", event.AuditArch))
		c.metrics.SyscallEvent(string(arch))
		c.unresolved(arch, event)
		return
	}
	c.metrics.SyscallEvent(string(arch))

	name, err := c.resolver.Resolve(arch, event.Nr)
	if err != nil {
		c.synth.ObserveArch(arch)
		c.unresolved(arch, event)
		return
	}

	if c.synth.Observe(arch, name) {
		c.metrics.SyscallObserved(string(arch))
		c.log.V(2).Info("new syscall", "pid", event.Pid, "arch", arch, "syscall", name)
	}
}

func (c *Collector) unresolved(arch specs.Arch, event tracer.SyscallEvent) {
	c.synth.Unresolved(arch, event.Nr)
	c.metrics.Unresolved(string(arch))
	c.log.V(1).Info("WARNING: the syscall can't be resolved, it is excluded from the profile and the result will be partial",
		"pid", event.Pid, "arch", arch, "nr", event.Nr)
}

// Events returns the number of syscall entries collected.
func (c *Collector) Events() uint64 {
	return c.events
}

func (c *Collector) Synthesizer() *synthesizer.Synthesizer {
	return c.synth
}
