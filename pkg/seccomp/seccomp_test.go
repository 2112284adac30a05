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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/runtime-spec/specs-go"
	libseccomp "github.com/seccomp/libseccomp-golang"
	"gotest.tools/assert"

	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

const testProfile = `{
  "defaultAction": "SCMP_ACT_ERRNO",
  "architectures": ["SCMP_ARCH_X86_64"],
  "syscalls": [{"names": ["read", "write"], "action": "SCMP_ACT_ALLOW"}]
}
`

func Test_SaveSeccompProfile(t *testing.T) {
	dir := t.TempDir()
	fileName := filepath.Join(dir, "seccomp.json")

	err := SaveSeccompProfile(fileName, []byte(testProfile))
	assert.NilError(t, err)

	content, err := LoadSeccompProfile(fileName)
	assert.NilError(t, err)
	assert.Equal(t, string(content), testProfile)

	info, err := os.Stat(fileName)
	assert.NilError(t, err)
	assert.Equal(t, info.Mode().Perm(), os.FileMode(synthtypes.ProfileFileMode))

	// Overwrite
	err = SaveSeccompProfile(fileName, []byte(`{"defaultAction":"SCMP_ACT_LOG"}`))
	assert.NilError(t, err)
	content, err = LoadSeccompProfile(fileName)
	assert.NilError(t, err)
	assert.Equal(t, string(content), `{"defaultAction":"SCMP_ACT_LOG"}`)

	entries, err := os.ReadDir(dir)
	assert.NilError(t, err)
	assert.Equal(t, len(entries), 1)
}

func Test_SaveSeccompProfileFailure(t *testing.T) {
	testCases := []struct {
		name     string
		fileName func(dir string) string
		content  string
	}{
		{
			name:     "invalid json",
			fileName: func(dir string) string { return filepath.Join(dir, "seccomp.json") },
			content:  `{"defaultAction":`,
		},
		{
			name:     "missing directory",
			fileName: func(dir string) string { return filepath.Join(dir, "missing", "seccomp.json") },
			content:  testProfile,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			err := SaveSeccompProfile(tc.fileName(dir), []byte(tc.content))

			var writeErr *synthtypes.WriteError
			assert.Assert(t, errors.As(err, &writeErr))
			assert.Equal(t, writeErr.Path, tc.fileName(dir))

			entries, err := os.ReadDir(dir)
			assert.NilError(t, err)
			assert.Equal(t, len(entries), 0)
		})
	}
}

func Test_WriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	fileName := filepath.Join(dir, "seccomp-report.json")
	assert.NilError(t, os.WriteFile(fileName, []byte("old\n"), 0600))

	err := WriteFileAtomic(fileName, []byte("new\n"), 0644)
	assert.NilError(t, err)

	content, err := os.ReadFile(fileName)
	assert.NilError(t, err)
	assert.Equal(t, string(content), "new\n")

	// No temporary file is left next to the target
	entries, err := os.ReadDir(dir)
	assert.NilError(t, err)
	assert.Equal(t, len(entries), 1)

	err = WriteFileAtomic(filepath.Join(dir, "missing", "seccomp-report.json"), []byte("new\n"), 0644)
	var writeErr *synthtypes.WriteError
	assert.Assert(t, errors.As(err, &writeErr))
}

func Test_RemoveSeccompProfile(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "seccomp.json")
	assert.NilError(t, SaveSeccompProfile(fileName, []byte(testProfile)))

	assert.NilError(t, RemoveSeccompProfile(fileName))
	_, err := os.Stat(fileName)
	assert.Assert(t, os.IsNotExist(err))

	// Removing it again is not an error
	assert.NilError(t, RemoveSeccompProfile(fileName))
}

func Test_scmpAction(t *testing.T) {
	errnoRet := uint(38)

	testCases := []struct {
		action   specs.LinuxSeccompAction
		errnoRet *uint
		expected libseccomp.ScmpAction
		hasError bool
	}{
		{action: specs.ActAllow, expected: libseccomp.ActAllow},
		{action: specs.ActLog, expected: libseccomp.ActLog},
		{action: specs.ActKill, expected: libseccomp.ActKillThread},
		{action: specs.ActKillProcess, expected: libseccomp.ActKillProcess},
		{action: specs.ActErrno, expected: libseccomp.ActErrno.SetReturnCode(1)},
		{action: specs.ActErrno, errnoRet: &errnoRet, expected: libseccomp.ActErrno.SetReturnCode(38)},
		{action: specs.ActNotify, hasError: true},
	}

	for _, tc := range testCases {
		action, err := scmpAction(tc.action, tc.errnoRet)
		if tc.hasError {
			assert.Assert(t, err != nil)
			continue
		}
		assert.NilError(t, err)
		assert.Equal(t, action, tc.expected)
	}
}

func Test_NewFilter(t *testing.T) {
	profile := specs.LinuxSeccomp{
		DefaultAction: specs.ActErrno,
		Architectures: []specs.Arch{specs.ArchX86_64, specs.ArchAARCH64},
		Syscalls: []specs.LinuxSyscall{
			{
				Names:  []string{"read", "write", "not_a_syscall"},
				Action: specs.ActAllow,
			},
			{
				Names:  []string{"openat"},
				Action: specs.ActErrno,
			},
			{
				Names:  []string{"personality"},
				Action: specs.ActAllow,
				Args: []specs.LinuxSeccompArg{
					{Index: 0, Value: 0x0, Op: specs.OpEqualTo},
				},
			},
		},
	}

	filter, skipped, err := NewFilter(&profile)
	assert.NilError(t, err)
	defer filter.Release()

	assert.Assert(t, filter.IsValid())
	assert.DeepEqual(t, skipped, []string{"not_a_syscall"})

	defaultAction, err := filter.GetDefaultAction()
	assert.NilError(t, err)
	assert.Equal(t, defaultAction, libseccomp.ActErrno.SetReturnCode(1))
}
