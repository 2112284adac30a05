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

// Package seccomp generates the Seccomp profile
package seccomp

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/opencontainers/runtime-spec/specs-go"

	"github.com/bytedance/seccompsynth/internal/behavior/synthesizer"
)

// GenerateProfileWithPolicy renders the policy as an OCI seccomp profile. The
// output only depends on the content of the policy.
func GenerateProfileWithPolicy(policy *synthesizer.Policy) ([]byte, error) {
	allowList := policy.AllowList()
	if len(allowList) == 0 {
		return nil, fmt.Errorf("the policy allows no syscall")
	}

	profile := specs.LinuxSeccomp{
		DefaultAction: policy.DefaultAction(),
		Architectures: policy.Architectures(),
		Syscalls: []specs.LinuxSyscall{
			{
				Names:  allowList,
				Action: specs.ActAllow,
			},
		},
	}

	return marshal(&profile)
}

// GenerateBehaviorModelingProfile turns a generated profile into one that
// logs instead of denying, so a run under it reports every syscall the
// profile would have refused.
func GenerateBehaviorModelingProfile(content []byte) ([]byte, error) {
	profile, err := ParseProfile(content)
	if err != nil {
		return nil, err
	}
	profile.DefaultAction = specs.ActLog
	profile.DefaultErrnoRet = nil
	return marshal(profile)
}

// ParseProfile decodes an OCI seccomp profile.
func ParseProfile(content []byte) (*specs.LinuxSeccomp, error) {
	var profile specs.LinuxSeccomp
	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&profile); err != nil {
		return nil, fmt.Errorf("the seccomp profile is invalid: %v", err)
	}
	if profile.DefaultAction == "" {
		return nil, fmt.Errorf("the seccomp profile has no default action")
	}
	return &profile, nil
}

// AllowedSyscalls returns the names the profile allows unconditionally.
func AllowedSyscalls(profile *specs.LinuxSeccomp) []string {
	var names []string
	for _, syscall := range profile.Syscalls {
		if syscall.Action == specs.ActAllow && len(syscall.Args) == 0 {
			names = append(names, syscall.Names...)
		}
	}
	return names
}

// RemoveSyscall returns a copy of the profile whose rules no longer name the
// syscall. A rule left without names is dropped.
func RemoveSyscall(profile *specs.LinuxSeccomp, name string) *specs.LinuxSeccomp {
	out := *profile
	out.Syscalls = make([]specs.LinuxSyscall, 0, len(profile.Syscalls))
	for _, syscall := range profile.Syscalls {
		names := make([]string, 0, len(syscall.Names))
		for _, n := range syscall.Names {
			if n != name {
				names = append(names, n)
			}
		}
		if len(names) == 0 {
			continue
		}
		syscall.Names = names
		out.Syscalls = append(out.Syscalls, syscall)
	}
	return &out
}

// RenderProfile encodes a parsed profile.
func RenderProfile(profile *specs.LinuxSeccomp) ([]byte, error) {
	return marshal(profile)
}

func marshal(profile *specs.LinuxSeccomp) ([]byte, error) {
	p, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(p, '\n'), nil
}
