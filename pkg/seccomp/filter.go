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
	"fmt"

	"github.com/opencontainers/runtime-spec/specs-go"
	libseccomp "github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"

	"github.com/bytedance/seccompsynth/pkg/syscalls"
)

var compareOps = map[specs.LinuxSeccompOperator]libseccomp.ScmpCompareOp{
	specs.OpNotEqual:     libseccomp.CompareNotEqual,
	specs.OpLessThan:     libseccomp.CompareLess,
	specs.OpLessEqual:    libseccomp.CompareLessOrEqual,
	specs.OpEqualTo:      libseccomp.CompareEqual,
	specs.OpGreaterEqual: libseccomp.CompareGreaterEqual,
	specs.OpGreaterThan:  libseccomp.CompareGreater,
	specs.OpMaskedEqual:  libseccomp.CompareMaskedEqual,
}

func scmpAction(action specs.LinuxSeccompAction, errnoRet *uint) (libseccomp.ScmpAction, error) {
	errno := int16(unix.EPERM)
	if errnoRet != nil {
		errno = int16(*errnoRet)
	}

	switch action {
	case specs.ActKill, specs.ActKillThread:
		return libseccomp.ActKillThread, nil
	case specs.ActKillProcess:
		return libseccomp.ActKillProcess, nil
	case specs.ActTrap:
		return libseccomp.ActTrap, nil
	case specs.ActErrno:
		return libseccomp.ActErrno.SetReturnCode(errno), nil
	case specs.ActTrace:
		return libseccomp.ActTrace.SetReturnCode(errno), nil
	case specs.ActAllow:
		return libseccomp.ActAllow, nil
	case specs.ActLog:
		return libseccomp.ActLog, nil
	default:
		return libseccomp.ActInvalid, fmt.Errorf("unsupported seccomp action %s", action)
	}
}

// NewFilter compiles the OCI profile into a libseccomp filter. Names that
// libseccomp doesn't know are skipped and returned, as container runtimes do.
// The caller must Release() the filter.
func NewFilter(profile *specs.LinuxSeccomp) (*libseccomp.ScmpFilter, []string, error) {
	defaultAction, err := scmpAction(profile.DefaultAction, profile.DefaultErrnoRet)
	if err != nil {
		return nil, nil, err
	}

	filter, err := libseccomp.NewFilter(defaultAction)
	if err != nil {
		return nil, nil, fmt.Errorf("NewFilter() failed: %v", err)
	}

	for _, arch := range profile.Architectures {
		scmpArch, ok := syscalls.ScmpArch(arch)
		if !ok {
			filter.Release()
			return nil, nil, fmt.Errorf("unsupported architecture %s", arch)
		}
		if err := filter.AddArch(scmpArch); err != nil {
			filter.Release()
			return nil, nil, fmt.Errorf("AddArch(%s) failed: %v", arch, err)
		}
	}

	var skipped []string
	for _, rule := range profile.Syscalls {
		action, err := scmpAction(rule.Action, rule.ErrnoRet)
		if err != nil {
			filter.Release()
			return nil, nil, err
		}
		// libseccomp refuses rules that repeat the default action
		if action == defaultAction {
			continue
		}

		conditions := make([]libseccomp.ScmpCondition, 0, len(rule.Args))
		for _, arg := range rule.Args {
			op, ok := compareOps[arg.Op]
			if !ok {
				filter.Release()
				return nil, nil, fmt.Errorf("unsupported seccomp operator %s", arg.Op)
			}
			values := []uint64{arg.Value}
			if arg.Op == specs.OpMaskedEqual {
				values = append(values, arg.ValueTwo)
			}
			condition, err := libseccomp.MakeCondition(arg.Index, op, values...)
			if err != nil {
				filter.Release()
				return nil, nil, fmt.Errorf("MakeCondition() failed: %v", err)
			}
			conditions = append(conditions, condition)
		}

		for _, name := range rule.Names {
			call, err := libseccomp.GetSyscallFromName(name)
			if err != nil {
				skipped = append(skipped, name)
				continue
			}
			if len(conditions) == 0 {
				err = filter.AddRule(call, action)
			} else {
				err = filter.AddRuleConditional(call, action, conditions)
			}
			if err != nil {
				filter.Release()
				return nil, nil, fmt.Errorf("AddRule(%s) failed: %v", name, err)
			}
		}
	}

	return filter, skipped, nil
}

// LoadProfile installs the profile on the calling thread and, with TSYNC, on
// every other thread of the process. The no_new_privs bit is set so an
// unprivileged process may load it.
func LoadProfile(profile *specs.LinuxSeccomp) ([]string, error) {
	filter, skipped, err := NewFilter(profile)
	if err != nil {
		return nil, err
	}
	defer filter.Release()

	if err := filter.SetNoNewPrivsBit(true); err != nil {
		return nil, fmt.Errorf("SetNoNewPrivsBit() failed: %v", err)
	}
	if err := filter.SetTsync(true); err != nil {
		return nil, fmt.Errorf("SetTsync() failed: %v", err)
	}
	if err := filter.Load(); err != nil {
		return nil, fmt.Errorf("Load() failed: %v", err)
	}
	return skipped, nil
}
