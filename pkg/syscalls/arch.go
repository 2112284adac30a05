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
	"fmt"
	"sort"
	"strings"

	"github.com/opencontainers/runtime-spec/specs-go"
	seccomp "github.com/seccomp/libseccomp-golang"
)

// AUDIT_ARCH_* values from linux/audit.h, as reported by PTRACE_GET_SYSCALL_INFO
const (
	auditArchX86_64  uint32 = 0xc000003e
	auditArchI386    uint32 = 0x40000003
	auditArchAArch64 uint32 = 0xc00000b7
	auditArchARM     uint32 = 0x40000028
	auditArchPPC64   uint32 = 0x80000015
	auditArchPPC64LE uint32 = 0xc0000015
	auditArchS390X   uint32 = 0x80000016
	auditArchRISCV64 uint32 = 0xc00000f3

	// x32 shares AUDIT_ARCH_X86_64 and flags its syscall numbers instead
	x32SyscallBit uint64 = 0x40000000
)

var auditArchMap = map[uint32]specs.Arch{
	auditArchX86_64:  specs.ArchX86_64,
	auditArchI386:    specs.ArchX86,
	auditArchAArch64: specs.ArchAARCH64,
	auditArchARM:     specs.ArchARM,
	auditArchPPC64:   specs.ArchPPC64,
	auditArchPPC64LE: specs.ArchPPC64LE,
	auditArchS390X:   specs.ArchS390X,
	auditArchRISCV64: specs.ArchRISCV64,
}

var scmpArchMap = map[specs.Arch]seccomp.ScmpArch{
	specs.ArchX86_64:  seccomp.ArchAMD64,
	specs.ArchX86:     seccomp.ArchX86,
	specs.ArchX32:     seccomp.ArchX32,
	specs.ArchAARCH64: seccomp.ArchARM64,
	specs.ArchARM:     seccomp.ArchARM,
	specs.ArchPPC64:   seccomp.ArchPPC64,
	specs.ArchPPC64LE: seccomp.ArchPPC64LE,
	specs.ArchS390X:   seccomp.ArchS390X,
	specs.ArchRISCV64: seccomp.ArchRISCV64,
}

// ArchFromAudit maps the kernel audit architecture of a syscall stop to the
// seccomp architecture tag. The syscall number is needed to tell x32 apart
// from x86_64.
func ArchFromAudit(auditArch uint32, nr uint64) (specs.Arch, bool) {
	arch, ok := auditArchMap[auditArch]
	if !ok {
		return "", false
	}
	if arch == specs.ArchX86_64 && nr&x32SyscallBit != 0 {
		return specs.ArchX32, true
	}
	return arch, true
}

// ScmpArch returns the libseccomp architecture of a seccomp architecture tag.
func ScmpArch(arch specs.Arch) (seccomp.ScmpArch, bool) {
	a, ok := scmpArchMap[arch]
	return a, ok
}

// KnownArches returns all the architectures that have a default table, sorted.
func KnownArches() []specs.Arch {
	arches := make([]specs.Arch, 0, len(scmpArchMap))
	for arch := range scmpArchMap {
		arches = append(arches, arch)
	}
	SortArches(arches)
	return arches
}

// SortArches sorts the architecture tags in place.
func SortArches(arches []specs.Arch) {
	sort.Slice(arches, func(i, j int) bool { return arches[i] < arches[j] })
}

// ParseArch accepts both the seccomp tag (SCMP_ARCH_X86_64) and the common
// short names (x86_64, amd64, arm64...).
func ParseArch(s string) (specs.Arch, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(name, "SCMP_ARCH_") {
		switch strings.ToLower(name) {
		case "amd64", "x86-64", "x86_64", "x64":
			return specs.ArchX86_64, nil
		case "386", "i386", "x86":
			return specs.ArchX86, nil
		case "x32":
			return specs.ArchX32, nil
		case "arm64", "aarch64":
			return specs.ArchAARCH64, nil
		case "arm":
			return specs.ArchARM, nil
		case "ppc64":
			return specs.ArchPPC64, nil
		case "ppc64le":
			return specs.ArchPPC64LE, nil
		case "s390x":
			return specs.ArchS390X, nil
		case "riscv64":
			return specs.ArchRISCV64, nil
		}
		return "", fmt.Errorf("unsupported architecture %q, expect one of %v", s, KnownArches())
	}

	arch := specs.Arch(name)
	if _, ok := scmpArchMap[arch]; !ok {
		return "", fmt.Errorf("unsupported architecture %q, expect one of %v", s, KnownArches())
	}
	return arch, nil
}

// NativeArches returns the native architecture of the host together with the
// compat architectures its kernel can run.
func NativeArches() []specs.Arch {
	native, err := seccomp.GetNativeArch()
	if err != nil {
		return []specs.Arch{}
	}

	switch native {
	case seccomp.ArchAMD64:
		return []specs.Arch{specs.ArchX86_64, specs.ArchX86, specs.ArchX32}
	case seccomp.ArchARM64:
		return []specs.Arch{specs.ArchAARCH64, specs.ArchARM}
	case seccomp.ArchPPC64LE:
		return []specs.Arch{specs.ArchPPC64LE}
	case seccomp.ArchS390X:
		return []specs.Arch{specs.ArchS390X}
	case seccomp.ArchRISCV64:
		return []specs.Arch{specs.ArchRISCV64}
	default:
		return []specs.Arch{}
	}
}
