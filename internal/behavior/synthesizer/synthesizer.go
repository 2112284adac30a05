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

// Package synthesizer folds the resolved syscalls of a session into a
// default-deny seccomp policy.
package synthesizer

import (
	"sort"
	"strings"

	"github.com/opencontainers/runtime-spec/specs-go"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/bytedance/seccompsynth/pkg/syscalls"
	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

type unresolvedKey struct {
	arch specs.Arch
	nr   uint64
}

// Synthesizer accumulates the syscall set of a session. It has a single
// writer and is not safe for concurrent use.
type Synthesizer struct {
	syscalls   sets.Set[string]
	baseline   sets.Set[string]
	arches     sets.Set[specs.Arch]
	unresolved map[unresolvedKey]uint64
}

// NewSynthesizer creates a synthesizer whose baseline is the built-in one
// plus the extra names.
func NewSynthesizer(extraBaseline []string) *Synthesizer {
	s := Synthesizer{
		syscalls:   sets.New[string](),
		baseline:   sets.New[string](baselineSyscalls...),
		arches:     sets.New[specs.Arch](),
		unresolved: make(map[unresolvedKey]uint64),
	}

	for _, name := range extraBaseline {
		name = strings.TrimSpace(name)
		if name != "" {
			s.baseline.Insert(name)
		}
	}

	return &s
}

// Observe records a syscall made under the architecture. It reports whether
// the name was new to the set.
func (s *Synthesizer) Observe(arch specs.Arch, name string) bool {
	s.arches.Insert(arch)
	if s.syscalls.Has(name) {
		return false
	}
	s.syscalls.Insert(name)
	return true
}

// ObserveArch records an architecture without a syscall name.
func (s *Synthesizer) ObserveArch(arch specs.Arch) {
	s.arches.Insert(arch)
}

// Unresolved records a syscall number that could not be named. It is kept
// out of the policy and reported.
func (s *Synthesizer) Unresolved(arch specs.Arch, nr uint64) {
	s.unresolved[unresolvedKey{arch: arch, nr: nr}]++
}

// UnresolvedSyscalls returns the unresolved syscall numbers sorted by
// architecture and number.
func (s *Synthesizer) UnresolvedSyscalls() []synthtypes.UnresolvedSyscall {
	unresolved := make([]synthtypes.UnresolvedSyscall, 0, len(s.unresolved))
	for key, count := range s.unresolved {
		unresolved = append(unresolved, synthtypes.UnresolvedSyscall{
			Arch:  string(key.arch),
			Nr:    key.nr,
			Count: count,
		})
	}
	sort.Slice(unresolved, func(i, j int) bool {
		if unresolved[i].Arch != unresolved[j].Arch {
			return unresolved[i].Arch < unresolved[j].Arch
		}
		return unresolved[i].Nr < unresolved[j].Nr
	})
	return unresolved
}

// Syscalls returns the observed syscall names, sorted.
func (s *Synthesizer) Syscalls() []string {
	return sets.List(s.syscalls)
}

// Len returns the number of unique syscall names observed.
func (s *Synthesizer) Len() int {
	return s.syscalls.Len()
}

// Finalize builds the policy. The allow-list is the observed set plus the
// baseline, sorted. With ObservedArches the policy lists the observed
// architectures, or the native ones when nothing was observed. With
// ConfiguredArches it lists the configured architectures plus the observed.
func (s *Synthesizer) Finalize(mode synthtypes.ArchMode, configured []specs.Arch) *Policy {
	arches := s.arches.Clone()

	switch mode {
	case synthtypes.ConfiguredArches:
		arches.Insert(configured...)
	default:
		if arches.Len() == 0 {
			arches.Insert(syscalls.NativeArches()...)
		}
	}

	return &Policy{
		defaultAction: specs.ActErrno,
		architectures: sets.List(arches),
		allowList:     sets.List(s.syscalls.Union(s.baseline)),
	}
}
