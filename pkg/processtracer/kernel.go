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
	"fmt"
	"regexp"

	"github.com/hashicorp/go-version"
	"golang.org/x/sys/unix"
)

var regexVersion = regexp.MustCompile(`^\d+\.?\d*\.?\d*`)

func versionGreaterThanOrEqual(current, minimum string) (bool, error) {
	current = regexVersion.FindString(current)
	currentVersion, err := version.NewVersion(current)
	if err != nil {
		return false, err
	}
	minVersion, err := version.NewVersion(minimum)
	if err != nil {
		return false, err
	}

	if currentVersion.GreaterThanOrEqual(minVersion) {
		return true, nil
	}
	return false, fmt.Errorf("the current kernel version (%s) < the minimum required version (%s)", current, minimum)
}

func kernelRelease() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(uts.Release[:]), nil
}

// CheckKernel makes sure the running kernel can report syscall details.
func CheckKernel() error {
	release, err := kernelRelease()
	if err != nil {
		return fmt.Errorf("Uname() failed: %v", err)
	}
	_, err = versionGreaterThanOrEqual(release, minKernelVersionForSyscallInfo)
	return err
}
