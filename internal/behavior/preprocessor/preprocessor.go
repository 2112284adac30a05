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

// Package preprocessor turns the seccomp audit records of a verification run
// into the list of syscalls the profile would have denied.
package preprocessor

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/bytedance/seccompsynth/internal/behavior/recorder"
	sessiontypes "github.com/bytedance/seccompsynth/internal/types"
	"github.com/bytedance/seccompsynth/pkg/syscalls"
	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

// ErrNoTargetProcess is returned when no syscall of the target was recorded,
// so no audit record can be attributed to it.
var ErrNoTargetProcess = errors.New("no target process was recorded")

type denialKey struct {
	pid  uint32
	arch uint32
	nr   uint64
}

type DataPreprocessor struct {
	name              string
	targetPIDs        map[uint32]struct{}
	auditRecordPath   string
	syscallRecordPath string
	resolver          *syscalls.Resolver
	denials           map[denialKey]*sessiontypes.Denial
	debug             bool
	debugFilePath     string
	debugFile         *os.File
	debugFileWriter   *bufio.Writer
	log               logr.Logger
}

func NewDataPreprocessor(
	directory string,
	name string,
	targetPIDs map[uint32]struct{},
	resolver *syscalls.Resolver,
	debug bool,
	log logr.Logger) *DataPreprocessor {

	if targetPIDs == nil {
		targetPIDs = make(map[uint32]struct{})
	}

	p := DataPreprocessor{
		name:              name,
		targetPIDs:        targetPIDs,
		auditRecordPath:   path.Join(directory, fmt.Sprintf("%s_audit_records.log", name)),
		syscallRecordPath: path.Join(directory, fmt.Sprintf("%s_syscall_records.log", name)),
		debugFilePath:     path.Join(directory, fmt.Sprintf("%s_preprocessor_debug.log", name)),
		resolver:          resolver,
		denials:           make(map[denialKey]*sessiontypes.Denial),
		debug:             debug,
		log:               log,
	}

	return &p
}

func (p *DataPreprocessor) containTargetPID(pid uint32) bool {
	_, exists := p.targetPIDs[pid]
	return exists
}

func (p *DataPreprocessor) addTargetPID(pid uint32) {
	p.targetPIDs[pid] = struct{}{}
}

// gatherTargetPIDs collects every pid that made a syscall under the tracer.
func (p *DataPreprocessor) gatherTargetPIDs() {
	events, err := recorder.ReadSyscallRecords(p.syscallRecordPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		p.log.Error(err, "ReadSyscallRecords() failed")
	}

	for _, event := range events {
		if !p.containTargetPID(uint32(event.Pid)) {
			p.addTargetPID(uint32(event.Pid))
		}
	}
}

func (p *DataPreprocessor) writeDebug(format string, args ...interface{}) {
	if p.debug {
		p.debugFileWriter.WriteString(fmt.Sprintf(format, args...))
	}
}

func (p *DataPreprocessor) processAuditRecords() error {
	file, err := os.Open(p.auditRecordPath)
	if err != nil {
		p.log.Error(err, "os.Open() failed, nothing to preprocess", "name", p.name)
		return err
	}
	defer file.Close()
	reader := bufio.NewReader(file)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			} else {
				p.log.Error(err, "reader.ReadString('\n')")
				break
			}
		}

		if !strings.Contains(line, "type=1326") && !strings.Contains(line, "type=SECCOMP") {
			continue
		}

		event, err := parseSeccompEvent(line)
		if err != nil {
			p.log.Error(err, "parseSeccompEvent() failed", "line", line)
			p.writeDebug("[!] parseSeccompEvent() failed: %s [%s]\n", err.Error(), line)
			continue
		}

		if !p.containTargetPID(event.Pid) {
			continue
		}

		if p.debug {
			p.writeDebug("\n[+] ----------------------\n")
			data, err := json.Marshal(event)
			if err != nil {
				p.writeDebug("[!] json.Marshal() failed.\n")
			} else {
				p.writeDebug("%s\n", data)
			}
		}

		p.parseSeccompEventForTree(event)
	}
	return nil
}

func (p *DataPreprocessor) parseSeccompEventForTree(event *SeccompLogRecord) {
	key := denialKey{pid: event.Pid, arch: event.AuditArch, nr: event.Nr}
	if denial, exists := p.denials[key]; exists {
		denial.Count++
		return
	}

	denial := sessiontypes.Denial{
		Pid:   event.Pid,
		Comm:  event.Comm,
		Exe:   event.Exe,
		Nr:    event.Nr,
		Count: 1,
	}

	arch, ok := syscalls.ArchFromAudit(event.AuditArch, event.Nr)
	if !ok {
		denial.Arch = fmt.Sprintf("0x%08x", event.AuditArch)
	} else {
		denial.Arch = string(arch)
		name, err := p.resolver.Resolve(arch, event.Nr)
		if err != nil {
			var unknownErr *synthtypes.UnknownSyscallError
			if !errors.As(err, &unknownErr) {
				p.log.Error(err, "Resolve() failed")
			}
		}
		denial.Syscall = name
	}

	p.denials[key] = &denial
}

// Process returns the would-be denials of the target processes, sorted by
// syscall and pid.
func (p *DataPreprocessor) Process() ([]sessiontypes.Denial, error) {
	p.gatherTargetPIDs()
	if len(p.targetPIDs) == 0 {
		p.log.Info("targetPIDs is empty, nothing to preprocess", "name", p.name)
		return nil, ErrNoTargetProcess
	}

	var err error
	if p.debug {
		p.debugFile, err = os.Create(p.debugFilePath)
		if err != nil {
			p.log.Error(err, "os.Create() failed")
			return nil, err
		}
		defer p.debugFile.Close()
		p.debugFileWriter = bufio.NewWriter(p.debugFile)
		defer p.debugFileWriter.Flush()
	}

	p.log.Info("starting data preprocess", "name", p.name, "target pids", len(p.targetPIDs))
	err = p.processAuditRecords()
	if err != nil {
		return nil, err
	}

	denials := make([]sessiontypes.Denial, 0, len(p.denials))
	for _, denial := range p.denials {
		denials = append(denials, *denial)
	}
	sort.Slice(denials, func(i, j int) bool {
		if denials[i].Syscall != denials[j].Syscall {
			return denials[i].Syscall < denials[j].Syscall
		}
		if denials[i].Nr != denials[j].Nr {
			return denials[i].Nr < denials[j].Nr
		}
		return denials[i].Pid < denials[j].Pid
	})

	p.log.Info("seccomp data preprocess completed", "denial num", len(denials))
	return denials, nil
}
