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

package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrAborted is returned when a session is cancelled from outside.
var ErrAborted = errors.New("the session was aborted")

// LaunchError means the target could not be started.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %q: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// TraceAttachError means the tracing facility is unavailable or was refused.
type TraceAttachError struct {
	Pid int
	Err error
}

func (e *TraceAttachError) Error() string {
	if e.Pid == 0 {
		return fmt.Sprintf("failed to attach the tracer: %v", e.Err)
	}
	return fmt.Sprintf("failed to attach the tracer to pid %d: %v", e.Pid, e.Err)
}

func (e *TraceAttachError) Unwrap() error { return e.Err }

// UnknownSyscallError is returned by the resolver when a number has no name.
type UnknownSyscallError struct {
	Arch string
	Nr   uint64
}

func (e *UnknownSyscallError) Error() string {
	return fmt.Sprintf("unknown syscall number %d for architecture %s", e.Nr, e.Arch)
}

// WorkloadInteractionError is recorded when a single interaction fails.
type WorkloadInteractionError struct {
	Interaction string
	StatusCode  int
	Err         error
}

func (e *WorkloadInteractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("interaction %q returned unexpected status %d", e.Interaction, e.StatusCode)
	}
	return fmt.Sprintf("interaction %q failed: %v", e.Interaction, e.Err)
}

func (e *WorkloadInteractionError) Unwrap() error { return e.Err }

// TimeoutError marks a session that hit its capture budget before the
// workload and the process tree finished.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("the session did not finish within %s, the result is partial", e.Timeout)
}

// WriteError means the policy could not be persisted.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write the seccomp profile to %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
