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

// Package syscalls resolves raw syscall numbers into canonical syscall names.
//
// The number-to-name mapping is data: a Table per architecture is injected into
// the Resolver, so a new platform or kernel only needs a new table.
package syscalls

import (
	"github.com/opencontainers/runtime-spec/specs-go"

	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

// Resolver is a pure (architecture, number) -> name lookup.
type Resolver struct {
	tables map[specs.Arch]Table
}

// NewResolver creates a resolver over the given tables.
func NewResolver(tables map[specs.Arch]Table) *Resolver {
	r := Resolver{
		tables: make(map[specs.Arch]Table, len(tables)),
	}
	for arch, table := range tables {
		r.tables[arch] = table
	}
	return &r
}

// NewDefaultResolver creates a resolver backed by the libseccomp tables of all
// known architectures. The overrides take precedence over libseccomp.
func NewDefaultResolver(overrides map[specs.Arch]MapTable) *Resolver {
	tables := make(map[specs.Arch]Table, len(scmpArchMap))
	for arch, scmpArch := range scmpArchMap {
		if override, ok := overrides[arch]; ok {
			tables[arch] = chainTable{override, NewLibseccompTable(scmpArch)}
		} else {
			tables[arch] = NewLibseccompTable(scmpArch)
		}
	}
	return NewResolver(tables)
}

// Resolve returns the canonical name of the syscall, or an
// *UnknownSyscallError when the architecture table has no entry for it.
func (r *Resolver) Resolve(arch specs.Arch, nr uint64) (string, error) {
	table, ok := r.tables[arch]
	if !ok {
		return "", &synthtypes.UnknownSyscallError{Arch: string(arch), Nr: nr}
	}

	name, ok := table.Lookup(nr)
	if !ok {
		return "", &synthtypes.UnknownSyscallError{Arch: string(arch), Nr: nr}
	}
	return name, nil
}

// Arches returns the architectures the resolver has tables for.
func (r *Resolver) Arches() []specs.Arch {
	arches := make([]specs.Arch, 0, len(r.tables))
	for arch := range r.tables {
		arches = append(arches, arch)
	}
	SortArches(arches)
	return arches
}
