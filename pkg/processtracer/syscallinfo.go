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
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	ptraceGetSyscallInfo = 0x420e

	syscallInfoNone  = 0
	syscallInfoEntry = 1
	syscallInfoExit  = 2
)

// syscallInfo mirrors struct ptrace_syscall_info, sized for its largest
// (seccomp) variant.
type syscallInfo struct {
	Op      uint8
	_       [3]uint8
	Arch    uint32
	IP      uint64
	SP      uint64
	Nr      uint64
	Args    [6]uint64
	RetData uint32
	_       uint32
}

// getSyscallInfo reads the syscall stop details of a tracee. The kernel
// reports the architecture of the syscall itself, so compat syscalls of a
// 64-bit tracee are told apart.
func getSyscallInfo(pid int) (*syscallInfo, error) {
	var info syscallInfo
	_, _, errno := unix.Syscall6(
		unix.SYS_PTRACE,
		ptraceGetSyscallInfo,
		uintptr(pid),
		unsafe.Sizeof(info),
		uintptr(unsafe.Pointer(&info)),
		0, 0)
	if errno != 0 {
		return nil, errno
	}
	return &info, nil
}
