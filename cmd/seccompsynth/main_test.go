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

package main

import (
	"errors"
	"fmt"
	"testing"

	"gotest.tools/assert"

	"github.com/bytedance/seccompsynth/internal/behavior"
	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

func Test_splitList(t *testing.T) {
	assert.DeepEqual(t, splitList(" x86_64, ,x32,"), []string{"x86_64", "x32"})
	assert.Assert(t, splitList("") == nil)
}

func Test_fatalReason(t *testing.T) {
	testCases := []struct {
		err    error
		reason string
	}{
		{
			err:    &synthtypes.LaunchError{Command: "app", Err: errors.New("not found")},
			reason: "the target can't be launched",
		},
		{
			err:    fmt.Errorf("trace: %w", &synthtypes.TraceAttachError{Pid: 1, Err: errors.New("EPERM")}),
			reason: "the target can't be traced",
		},
		{
			err:    &synthtypes.WriteError{Path: "seccomp.json", Err: errors.New("read-only file system")},
			reason: "the output can't be written",
		},
		{
			err:    synthtypes.ErrAborted,
			reason: "the session was aborted",
		},
		{
			err:    behavior.ErrProfileRejected,
			reason: "the profile can't be minimized",
		},
		{
			err:    errors.New("boom"),
			reason: "the session failed",
		},
	}

	for _, tc := range testCases {
		assert.Equal(t, fatalReason(tc.err), tc.reason)
	}
}
