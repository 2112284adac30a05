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

package syscalls

import (
	"math"

	seccomp "github.com/seccomp/libseccomp-golang"
)

// Table maps the raw syscall numbers of one architecture to their names.
type Table interface {
	Lookup(nr uint64) (string, bool)
}

// MapTable is a static table, usually injected from the configuration file.
type MapTable map[uint64]string

func (t MapTable) Lookup(nr uint64) (string, bool) {
	name, ok := t[nr]
	return name, ok && name != ""
}

// libseccompTable resolves numbers with the tables compiled into libseccomp.
type libseccompTable struct {
	arch seccomp.ScmpArch
}

// NewLibseccompTable returns the libseccomp table of the architecture.
func NewLibseccompTable(arch seccomp.ScmpArch) Table {
	return libseccompTable{arch: arch}
}

func (t libseccompTable) Lookup(nr uint64) (string, bool) {
	if nr > math.MaxInt32 {
		return "", false
	}
	name, err := seccomp.ScmpSyscall(int32(nr)).GetNameByArch(t.arch)
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

// chainTable consults its tables in order and returns the first hit.
type chainTable []Table

func (c chainTable) Lookup(nr uint64) (string, bool) {
	for _, t := range c {
		if name, ok := t.Lookup(nr); ok {
			return name, true
		}
	}
	return "", false
}
