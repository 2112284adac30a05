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

package tracer

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"

	"gotest.tools/assert"
	log "sigs.k8s.io/controller-runtime/pkg/log"

	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

func Test_versionGreaterThanOrEqual(t *testing.T) {
	testCases := []struct {
		current  string
		minimum  string
		expected bool
	}{
		{current: "6.18.44-fc-v139", minimum: "5.3", expected: true},
		{current: "5.3.0-1-amd64", minimum: "5.3", expected: true},
		{current: "5.4.119-1-tlinux4", minimum: "5.3", expected: true},
		{current: "4.19.0", minimum: "5.3", expected: false},
		{current: "5.2.21", minimum: "5.3", expected: false},
	}

	for _, tc := range testCases {
		ok, _ := versionGreaterThanOrEqual(tc.current, tc.minimum)
		assert.Equal(t, ok, tc.expected, tc.current)
	}
}

func Test_Registry(t *testing.T) {
	r := newRegistry()

	r.addStarted(100)
	// The fork event of the parent comes first
	r.addChild(101)
	assert.Equal(t, r.firstStop(101), true)
	assert.Equal(t, r.firstStop(101), false)

	// The child reports its initial stop before the fork event of the parent
	assert.Equal(t, r.firstStop(102), true)
	r.addChild(102)
	assert.Equal(t, r.firstStop(102), false)

	// A SIGSTOP sent to the root is a real signal
	assert.Equal(t, r.firstStop(100), false)

	assert.DeepEqual(t, r.Pids(), []int{100, 101, 102})
	assert.Equal(t, r.Total(), 3)

	r.remove(101)
	r.remove(100)
	assert.Equal(t, r.Len(), 1)
	assert.Equal(t, r.Total(), 3)
}

func Test_LauncherNonexistentProgram(t *testing.T) {
	l := Launcher{Path: "/nonexistent/program"}

	_, err := l.Start()
	var launchErr *synthtypes.LaunchError
	assert.Assert(t, errors.As(err, &launchErr))
	assert.Equal(t, launchErr.Command, "/nonexistent/program")
}

func Test_TraceNonexistentProgram(t *testing.T) {
	if err := CheckKernel(); err != nil {
		t.Skip(err)
	}

	tracer := NewProcessTracer(log.Log.WithName("TEST"))
	_, err := tracer.Trace(context.Background(), &Launcher{Path: "does-not-exist-anywhere"})
	var launchErr *synthtypes.LaunchError
	assert.Assert(t, errors.As(err, &launchErr))
}

func Test_TraceProcessTree(t *testing.T) {
	if err := CheckKernel(); err != nil {
		t.Skip(err)
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip(err)
	}
	if _, err := os.Stat("/bin/true"); err != nil {
		t.Skip(err)
	}

	tracer := NewProcessTracer(log.Log.WithName("TEST"))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stream, err := tracer.Trace(ctx, &Launcher{Path: "sh", Args: []string{"-c", "/bin/true & /bin/true & wait"}})
	var attachErr *synthtypes.TraceAttachError
	if errors.As(err, &attachErr) {
		t.Skip(err)
	}
	assert.NilError(t, err)
	assert.Assert(t, stream.Pid() > 0)

	pids := map[int]struct{}{}
	count := 0
	for event := range stream.Events() {
		pids[event.Pid] = struct{}{}
		count++
	}
	<-stream.Done()

	assert.NilError(t, stream.Err())
	assert.Assert(t, count > 0)
	// the shell and both of its children
	assert.Assert(t, len(pids) >= 3, "pids: %v", pids)
	assert.Assert(t, stream.Processes() >= 3, "processes: %d", stream.Processes())
	assert.Equal(t, len(stream.Pids()), 0)
}

func Test_TraceKill(t *testing.T) {
	if err := CheckKernel(); err != nil {
		t.Skip(err)
	}
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip(err)
	}

	tracer := NewProcessTracer(log.Log.WithName("TEST"))
	stream, err := tracer.Trace(context.Background(), &Launcher{Path: "sleep", Args: []string{"60"}})
	var attachErr *synthtypes.TraceAttachError
	if errors.As(err, &attachErr) {
		t.Skip(err)
	}
	assert.NilError(t, err)

	go func() {
		for range stream.Events() {
		}
	}()

	stream.Kill()
	select {
	case <-stream.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("the traced process was not killed")
	}
}
