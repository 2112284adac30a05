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
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"

	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

// Launcher starts the target program stopped under ptrace. The child calls
// PTRACE_TRACEME and stops on its first execve, before it runs any code.
//
// Start must be called from the OS thread that will issue every further ptrace
// request against the child.
type Launcher struct {
	Path string
	Args []string
	Dir  string
	// Env is appended to the environment of the current process
	Env []string
	// Stdout and Stderr default to the streams of the current process
	Stdout *os.File
	Stderr *os.File
}

func (l *Launcher) String() string {
	return strings.Join(append([]string{l.Path}, l.Args...), " ")
}

// Start launches the program. A missing or non-executable program yields a
// *LaunchError, and a refused ptrace request yields a *TraceAttachError.
func (l *Launcher) Start() (*exec.Cmd, error) {
	if l.Path == "" {
		return nil, &synthtypes.LaunchError{Command: l.String(), Err: errors.New("empty command")}
	}

	path, err := exec.LookPath(l.Path)
	if err != nil {
		return nil, &synthtypes.LaunchError{Command: l.String(), Err: err}
	}

	cmd := exec.Command(path, l.Args...)
	cmd.Dir = l.Dir
	cmd.Env = append(os.Environ(), l.Env...)
	cmd.Stdin = nil
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if l.Stdout != nil {
		cmd.Stdout = l.Stdout
	}
	if l.Stderr != nil {
		cmd.Stderr = l.Stderr
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Ptrace:  true,
		Setpgid: true,
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, syscall.EPERM) {
			return nil, &synthtypes.TraceAttachError{Err: err}
		}
		return nil, &synthtypes.LaunchError{Command: l.String(), Err: err}
	}

	return cmd, nil
}
