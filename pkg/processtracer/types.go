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
	"golang.org/x/sys/unix"
)

const (
	// ptraceOptions auto-attaches every descendant and kills the tree when the
	// tracer goes away
	ptraceOptions = unix.PTRACE_O_TRACESYSGOOD |
		unix.PTRACE_O_TRACEFORK |
		unix.PTRACE_O_TRACEVFORK |
		unix.PTRACE_O_TRACECLONE |
		unix.PTRACE_O_TRACEEXEC |
		unix.PTRACE_O_TRACEEXIT |
		unix.PTRACE_O_EXITKILL

	traceSysGoodStatusBit = 0x80

	// Minimum kernel version with PTRACE_GET_SYSCALL_INFO
	minKernelVersionForSyscallInfo = "5.3"

	eventChannelSize = 1024
)

// SyscallEvent is one syscall entry made by a traced process. The number is
// raw and must be resolved with the audit architecture it was made under.
type SyscallEvent struct {
	Pid       int
	AuditArch uint32
	Nr        uint64
}
