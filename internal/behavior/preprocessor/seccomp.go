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

package preprocessor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SeccompLogRecord is a kernel audit record of a syscall that hit a seccomp
// rule with a logging action.
type SeccompLogRecord struct {
	Time      int64  `json:"time"`
	Pid       uint32 `json:"pid"`
	Comm      string `json:"comm"`
	Exe       string `json:"exe"`
	AuditArch uint32 `json:"arch"`
	Nr        uint64 `json:"syscall"`
	Code      uint32 `json:"code"`
}

var (
	seccompLineRegex = regexp.MustCompile(
		`(type=SECCOMP|type=1326).+audit\((.+?)\).+pid=(\b\d+\b).+comm=("[^"]*"|\S+).+exe=("[^"]*"|\S+).+arch=([0-9a-fA-F]+).+syscall=(\b\d+\b)(?:.+code=0x([0-9a-fA-F]+))?`,
	)
	expectedNum = 9
)

func unquote(s string) string {
	return strings.Trim(s, `"`)
}

func parseSeccompEvent(line string) (*SeccompLogRecord, error) {
	captures := seccompLineRegex.FindStringSubmatch(line)
	if len(captures) != expectedNum {
		return nil, fmt.Errorf("unable to extract the expected field")
	}

	timeString := strings.Split(captures[2], ":")[0]
	timestampFloat, err := strconv.ParseFloat(timeString, 64)
	if err != nil {
		return nil, fmt.Errorf("extract TIMESTAMP failed")
	}

	pid, err := strconv.ParseUint(captures[3], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("extract PID failed")
	}

	arch, err := strconv.ParseUint(captures[6], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("extract ARCH failed")
	}

	nr, err := strconv.ParseUint(captures[7], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("extract SYSCALL failed")
	}

	var code uint64
	if captures[8] != "" {
		code, err = strconv.ParseUint(captures[8], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("extract CODE failed")
		}
	}

	r := SeccompLogRecord{
		Time:      int64(timestampFloat),
		Pid:       uint32(pid),
		Comm:      unquote(captures[4]),
		Exe:       unquote(captures[5]),
		AuditArch: uint32(arch),
		Nr:        nr,
		Code:      uint32(code),
	}

	return &r, nil
}
