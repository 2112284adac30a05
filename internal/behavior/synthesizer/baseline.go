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

package synthesizer

// baselineSyscalls are always allowed. A process needs them to be started by
// the runtime, set up its memory, threads and signal handlers, and exit
// cleanly, whatever it does in between.
var baselineSyscalls = []string{
	// process start
	"execve",
	"arch_prctl",
	"set_tid_address",
	"set_robust_list",
	"rseq",
	"prlimit64",
	"getrandom",

	// memory setup
	"brk",
	"mmap",
	"mprotect",
	"munmap",
	"madvise",

	// threads
	"futex",
	"getpid",
	"gettid",
	"tgkill",
	"sched_yield",
	"nanosleep",
	"clock_nanosleep",
	"clock_gettime",

	// signal handling
	"rt_sigaction",
	"rt_sigprocmask",
	"rt_sigreturn",
	"sigaltstack",
	"restart_syscall",

	// file access through fd
	"read",
	"write",
	"close",
	"fstat",

	// process exit
	"exit",
	"exit_group",

	// container runtime init, between loading the filter and the execve of
	// the target
	"capget",
	"capset",
	"prctl",
	"setgroups",
	"setresuid",
	"setresgid",
	"close_range",
	"fcntl",
	"openat",
	"getdents64",
	"newfstatat",
	"chdir",
	"fchdir",
}

// BaselineSyscalls returns a copy of the built-in baseline.
func BaselineSyscalls() []string {
	baseline := make([]string, len(baselineSyscalls))
	copy(baseline, baselineSyscalls)
	return baseline
}
