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
	"time"

	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

// SessionState is the lifecycle state of a trace session.
type SessionState string

const (
	Created          SessionState = "created"
	Launched         SessionState = "launched"
	Tracing          SessionState = "tracing"
	WorkloadComplete SessionState = "workload-complete"
	TimedOut         SessionState = "timed-out"
	ProcessExited    SessionState = "process-exited"
	Finalized        SessionState = "finalized"
	Failed           SessionState = "failed"
	Aborted          SessionState = "aborted"
)

// Terminal reports whether no further transition is possible.
func (s SessionState) Terminal() bool {
	return s == Finalized || s == Failed || s == Aborted
}

// SessionReport records how a session went, next to the profile it produced.
type SessionReport struct {
	Command []string     `json:"command"`
	State   SessionState `json:"state"`
	// Outcome is the termination trigger: workload-complete, process-exited
	// or timed-out
	Outcome   SessionState `json:"outcome,omitempty"`
	Partial   bool         `json:"partial"`
	Error     string       `json:"error,omitempty"`
	StartTime time.Time    `json:"startTime"`
	EndTime   time.Time    `json:"endTime"`

	Processes      int      `json:"processes"`
	EventCount     uint64   `json:"eventCount"`
	UniqueSyscalls int      `json:"uniqueSyscalls"`
	Architectures  []string `json:"architectures"`
	AllowList      []string `json:"allowList,omitempty"`

	Unresolved   []synthtypes.UnresolvedSyscall `json:"unresolved,omitempty"`
	Interactions []synthtypes.InteractionResult `json:"interactions,omitempty"`

	ProfilePath string `json:"profilePath,omitempty"`
	RecordPath  string `json:"recordPath,omitempty"`
}

// Denial is a syscall the profile under verification would have refused.
type Denial struct {
	Pid     uint32 `json:"pid"`
	Comm    string `json:"comm"`
	Exe     string `json:"exe"`
	Arch    string `json:"arch"`
	Nr      uint64 `json:"nr"`
	Syscall string `json:"syscall,omitempty"`
	Count   uint64 `json:"count"`
}

// VerifyReport records the result of running the target under a profile.
// It is inconclusive when no syscall of the target was recorded.
type VerifyReport struct {
	ProfilePath  string                         `json:"profilePath"`
	Passed       bool                           `json:"passed"`
	Inconclusive bool                           `json:"inconclusive,omitempty"`
	Outcome      SessionState                   `json:"outcome,omitempty"`
	Error        string                         `json:"error,omitempty"`
	Denials      []Denial                       `json:"denials,omitempty"`
	Interactions []synthtypes.InteractionResult `json:"interactions,omitempty"`
}

// MinimizeReport records which syscalls of a profile the workload turned out
// not to need.
type MinimizeReport struct {
	ProfilePath string `json:"profilePath"`
	OutputPath  string `json:"outputPath,omitempty"`
	Error       string `json:"error,omitempty"`
	// Candidates are the allowed syscalls outside of the baseline
	Candidates []string `json:"candidates"`
	Trials     int      `json:"trials"`
	Removed    []string `json:"removed"`
	Kept       []string `json:"kept"`
	AllowList  []string `json:"allowList,omitempty"`
}
