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

package seccomp

import (
	"testing"

	"github.com/opencontainers/runtime-spec/specs-go"
	"gotest.tools/assert"

	"github.com/bytedance/seccompsynth/internal/behavior/synthesizer"
	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

func newPolicy(names ...string) *synthesizer.Policy {
	s := synthesizer.NewSynthesizer(nil)
	for _, name := range names {
		s.Observe(specs.ArchX86_64, name)
	}
	return s.Finalize(synthtypes.ObservedArches, nil)
}

func Test_GenerateProfileWithPolicy(t *testing.T) {
	policy := newPolicy("socket", "accept4")

	content, err := GenerateProfileWithPolicy(policy)
	assert.NilError(t, err)
	assert.Equal(t, content[len(content)-1], byte('\n'))

	profile, err := ParseProfile(content)
	assert.NilError(t, err)
	assert.Equal(t, profile.DefaultAction, specs.ActErrno)
	assert.DeepEqual(t, profile.Architectures, []specs.Arch{specs.ArchX86_64})
	assert.Equal(t, len(profile.Syscalls), 1)
	assert.Equal(t, profile.Syscalls[0].Action, specs.ActAllow)
	assert.DeepEqual(t, profile.Syscalls[0].Names, policy.AllowList())
	assert.DeepEqual(t, AllowedSyscalls(profile), policy.AllowList())
}

func Test_GenerateProfileIsDeterministic(t *testing.T) {
	a, err := GenerateProfileWithPolicy(newPolicy("socket", "bind", "listen", "accept4", "bind"))
	assert.NilError(t, err)
	b, err := GenerateProfileWithPolicy(newPolicy("accept4", "listen", "socket", "bind"))
	assert.NilError(t, err)

	assert.Equal(t, string(a), string(b))
}

func Test_GenerateBehaviorModelingProfile(t *testing.T) {
	content, err := GenerateProfileWithPolicy(newPolicy("socket"))
	assert.NilError(t, err)

	modeling, err := GenerateBehaviorModelingProfile(content)
	assert.NilError(t, err)

	profile, err := ParseProfile(modeling)
	assert.NilError(t, err)
	assert.Equal(t, profile.DefaultAction, specs.ActLog)
	assert.Assert(t, profile.DefaultErrnoRet == nil)
	assert.Assert(t, len(AllowedSyscalls(profile)) > 1)
}

func Test_ParseProfile(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		hasError bool
	}{
		{
			name:    "valid",
			content: `{"defaultAction":"SCMP_ACT_ERRNO","architectures":["SCMP_ARCH_X86_64"],"syscalls":[{"names":["read"],"action":"SCMP_ACT_ALLOW"}]}`,
		},
		{
			name:     "not json",
			content:  `defaultAction: SCMP_ACT_ERRNO`,
			hasError: true,
		},
		{
			name:     "unknown field",
			content:  `{"defaultAction":"SCMP_ACT_ERRNO","allow":["read"]}`,
			hasError: true,
		},
		{
			name:     "no default action",
			content:  `{"syscalls":[{"names":["read"],"action":"SCMP_ACT_ALLOW"}]}`,
			hasError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tc.content))
			assert.Equal(t, err != nil, tc.hasError)
		})
	}
}

func Test_RemoveSyscall(t *testing.T) {
	profile := &specs.LinuxSeccomp{
		DefaultAction: specs.ActErrno,
		Architectures: []specs.Arch{specs.ArchX86_64},
		Syscalls: []specs.LinuxSyscall{
			{Names: []string{"accept4", "read", "socket"}, Action: specs.ActAllow},
			{Names: []string{"socket"}, Action: specs.ActErrno},
		},
	}

	out := RemoveSyscall(profile, "socket")
	assert.DeepEqual(t, out.Syscalls, []specs.LinuxSyscall{
		{Names: []string{"accept4", "read"}, Action: specs.ActAllow},
	})
	assert.DeepEqual(t, AllowedSyscalls(out), []string{"accept4", "read"})

	// The input is left untouched
	assert.Equal(t, len(profile.Syscalls), 2)
	assert.DeepEqual(t, profile.Syscalls[0].Names, []string{"accept4", "read", "socket"})

	content, err := RenderProfile(out)
	assert.NilError(t, err)
	parsed, err := ParseProfile(content)
	assert.NilError(t, err)
	assert.DeepEqual(t, parsed, out)
}
