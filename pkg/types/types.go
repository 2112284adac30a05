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

// Package types defines the types shared by the tracer, the resolver and the
// profile writer
package types

import (
	"time"
)

const (
	// ProfileFileMode is the permission of the generated seccomp profile
	ProfileFileMode = 0644

	// DefaultStopGracePeriod is the time to wait for the traced tree after
	// SIGTERM before it is killed
	DefaultStopGracePeriod time.Duration = time.Second * 5
)

// InteractionKind is the transport used by a workload interaction.
// ArchMode decides which architectures the profile lists.
type ArchMode string

const (
	// ObservedArches lists the architectures the syscalls were made under
	ObservedArches ArchMode = "observed"
	// ConfiguredArches lists the configured architectures plus the observed ones
	ConfiguredArches ArchMode = "configured"
)

type InteractionKind string

const (
	HTTPInteraction      InteractionKind = "http"
	WebsocketInteraction InteractionKind = "websocket"
)

// UnresolvedSyscall describes a syscall number which has no name in the
// resolver table of its architecture.
type UnresolvedSyscall struct {
	Arch  string `json:"arch"`
	Nr    uint64 `json:"nr"`
	Count uint64 `json:"count"`
}

// InteractionResult records one attempted workload interaction.
type InteractionResult struct {
	Name       string          `json:"name"`
	Kind       InteractionKind `json:"kind"`
	Attempted  bool            `json:"attempted"`
	Succeeded  bool            `json:"succeeded"`
	StatusCode int             `json:"statusCode,omitempty"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration"`
}
