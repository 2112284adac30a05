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
	"flag"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	seccompprofile "github.com/bytedance/seccompsynth/internal/profile/seccomp"
	"github.com/bytedance/seccompsynth/pkg/seccomp"
)

// runEnforce loads the profile into the current process and executes the
// command under it. It only returns on failure.
func runEnforce(args []string) int {
	fs := flag.NewFlagSet("enforce", flag.ExitOnError)
	profilePath := fs.String("profile", "", "Path to the seccomp profile to enforce.")
	fs.Parse(args)

	enforceLog := logger.WithName("ENFORCE")

	command := fs.Args()
	if *profilePath == "" || len(command) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s enforce -profile PROFILE -- command args...\n", os.Args[0])
		return exitFatal
	}

	content, err := seccomp.LoadSeccompProfile(*profilePath)
	if err != nil {
		enforceLog.Error(err, "seccomp.LoadSeccompProfile()")
		return exitFatal
	}
	profile, err := seccompprofile.ParseProfile(content)
	if err != nil {
		enforceLog.Error(err, "seccompprofile.ParseProfile()")
		return exitFatal
	}

	path, err := exec.LookPath(command[0])
	if err != nil {
		enforceLog.Error(err, "exec.LookPath()")
		return exitFatal
	}

	skipped, err := seccomp.LoadProfile(profile)
	if err != nil {
		enforceLog.Error(err, "seccomp.LoadProfile()")
		return exitFatal
	}
	if len(skipped) > 0 {
		enforceLog.V(1).Info("the syscalls are unknown to libseccomp and skipped", "syscalls", skipped)
	}

	err = unix.Exec(path, command, os.Environ())
	enforceLog.Error(err, "unix.Exec()", "path", path)
	return exitFatal
}
