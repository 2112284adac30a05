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
	"errors"
	"testing"

	"github.com/opencontainers/runtime-spec/specs-go"
	"gotest.tools/assert"

	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

func Test_Resolve(t *testing.T) {
	r := NewResolver(map[specs.Arch]Table{
		specs.ArchX86_64:  MapTable{0: "read", 1: "write", 59: "execve"},
		specs.ArchAARCH64: MapTable{63: "read", 64: "write"},
	})

	testCases := []struct {
		name     string
		arch     specs.Arch
		nr       uint64
		expected string
		unknown  bool
	}{
		{name: "x86_64 read", arch: specs.ArchX86_64, nr: 0, expected: "read"},
		{name: "x86_64 execve", arch: specs.ArchX86_64, nr: 59, expected: "execve"},
		{name: "aarch64 read", arch: specs.ArchAARCH64, nr: 63, expected: "read"},
		{name: "gap in table", arch: specs.ArchX86_64, nr: 9999, unknown: true},
		{name: "no table for arch", arch: specs.ArchS390X, nr: 0, unknown: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			name, err := r.Resolve(tc.arch, tc.nr)
			if tc.unknown {
				var unknownErr *synthtypes.UnknownSyscallError
				assert.Assert(t, errors.As(err, &unknownErr))
				assert.Equal(t, unknownErr.Nr, tc.nr)
				assert.Equal(t, unknownErr.Arch, string(tc.arch))
				return
			}
			assert.NilError(t, err)
			assert.Equal(t, name, tc.expected)
		})
	}
}

func Test_DefaultResolverOverride(t *testing.T) {
	r := NewDefaultResolver(map[specs.Arch]MapTable{
		specs.ArchX86_64: {0: "custom_read"},
		specs.ArchMIPS:   {0: "read"},
	})

	name, err := r.Resolve(specs.ArchX86_64, 0)
	assert.NilError(t, err)
	assert.Equal(t, name, "custom_read")

	// Falls through to libseccomp
	name, err = r.Resolve(specs.ArchX86_64, 1)
	assert.NilError(t, err)
	assert.Equal(t, name, "write")

	name, err = r.Resolve(specs.ArchAARCH64, 63)
	assert.NilError(t, err)
	assert.Equal(t, name, "read")

	// Only the known architectures get a table
	assert.DeepEqual(t, r.Arches(), KnownArches())
	_, err = r.Resolve(specs.ArchMIPS, 0)
	var unknownErr *synthtypes.UnknownSyscallError
	assert.Assert(t, errors.As(err, &unknownErr))
}

func Test_ArchFromAudit(t *testing.T) {
	testCases := []struct {
		auditArch uint32
		nr        uint64
		expected  specs.Arch
		ok        bool
	}{
		{auditArch: 0xc000003e, nr: 0, expected: specs.ArchX86_64, ok: true},
		{auditArch: 0xc000003e, nr: 0x40000000 | 1, expected: specs.ArchX32, ok: true},
		{auditArch: 0x40000003, nr: 3, expected: specs.ArchX86, ok: true},
		{auditArch: 0xc00000b7, nr: 63, expected: specs.ArchAARCH64, ok: true},
		{auditArch: 0xc00000f3, nr: 63, expected: specs.ArchRISCV64, ok: true},
		{auditArch: 0x12345678, nr: 0, ok: false},
	}

	for _, tc := range testCases {
		arch, ok := ArchFromAudit(tc.auditArch, tc.nr)
		assert.Equal(t, ok, tc.ok)
		assert.Equal(t, arch, tc.expected)
	}
}

func Test_ParseArch(t *testing.T) {
	testCases := []struct {
		input    string
		expected specs.Arch
		hasError bool
	}{
		{input: "SCMP_ARCH_X86_64", expected: specs.ArchX86_64},
		{input: "scmp_arch_aarch64", expected: specs.ArchAARCH64},
		{input: "amd64", expected: specs.ArchX86_64},
		{input: "arm64", expected: specs.ArchAARCH64},
		{input: "x32", expected: specs.ArchX32},
		{input: "SCMP_ARCH_MIPS", hasError: true},
		{input: "sparc", hasError: true},
	}

	for _, tc := range testCases {
		arch, err := ParseArch(tc.input)
		if tc.hasError {
			assert.ErrorContains(t, err, string(specs.ArchX86_64))
			continue
		}
		assert.NilError(t, err)
		assert.Equal(t, arch, tc.expected)
	}
}
