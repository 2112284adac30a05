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

package recorder

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/go-logr/logr"

	tracer "github.com/bytedance/seccompsynth/pkg/processtracer"
	"github.com/bytedance/seccompsynth/pkg/syscalls"
)

// SyscallRecorder saves the raw syscall events of a session, so that the
// profile can be synthesized again later without running the target.
type SyscallRecorder struct {
	name                  string
	EventCh               chan tracer.SyscallEvent
	done                  chan struct{}
	recordPath            string
	recordDebugPath       string
	recordFile            *os.File
	recordDebugFile       *os.File
	recordFileWriter      *bufio.Writer
	recordFileEncoder     *gob.Encoder
	recordDebugFileWriter *bufio.Writer
	debug                 bool
	log                   logr.Logger
}

func NewSyscallRecorder(directory string, name string, debug bool, log logr.Logger) *SyscallRecorder {
	r := SyscallRecorder{
		name:            name,
		EventCh:         make(chan tracer.SyscallEvent, 500),
		done:            make(chan struct{}),
		recordPath:      path.Join(directory, fmt.Sprintf("%s_syscall_records.log", name)),
		recordDebugPath: path.Join(directory, fmt.Sprintf("%s_syscall_records_debug.log", name)),
		debug:           debug,
		log:             log,
	}

	return &r
}

// RecordPath returns the path of the record file.
func (r *SyscallRecorder) RecordPath() string {
	return r.recordPath
}

// Init create the record file to save the syscall events
func (r *SyscallRecorder) Init() error {
	var err error

	err = os.MkdirAll(path.Dir(r.recordPath), 0755)
	if err != nil {
		r.log.Error(err, "os.MkdirAll() failed")
		return err
	}

	r.recordFile, err = os.Create(r.recordPath)
	if err != nil {
		r.log.Error(err, "os.Create() failed")
		return err
	}
	r.recordFileWriter = bufio.NewWriter(r.recordFile)
	r.recordFileEncoder = gob.NewEncoder(r.recordFileWriter)

	if r.debug {
		r.recordDebugFile, err = os.Create(r.recordDebugPath)
		if err != nil {
			r.log.Error(err, "os.Create() failed")
			return err
		}
		r.recordDebugFileWriter = bufio.NewWriter(r.recordDebugFile)
	}

	return nil
}

func (r *SyscallRecorder) close() {
	if r.recordFileWriter != nil {
		r.recordFileWriter.Flush()
	}

	if r.recordFile != nil {
		r.recordFile.Close()
	}

	if r.debug {
		if r.recordDebugFileWriter != nil {
			r.recordDebugFileWriter.Flush()
		}

		if r.recordDebugFile != nil {
			r.recordDebugFile.Close()
		}
	}
}

// eventHandler records the syscall events until EventCh is closed
func (r *SyscallRecorder) eventHandler() {
	defer close(r.done)
	defer r.close()

	for event := range r.EventCh {
		if err := r.recordFileEncoder.Encode(event); err != nil {
			r.log.Error(err, "Encode() failed")
			continue
		}

		if r.debug {
			arch, ok := syscalls.ArchFromAudit(event.AuditArch, event.Nr)
			if !ok {
				arch = "unknown"
			}
			output := fmt.Sprintf("%-12d | 0x%08x %-20s | %d\n", event.Pid, event.AuditArch, arch, event.Nr)
			r.recordDebugFileWriter.WriteString(output)
		}
	}
}

func (r *SyscallRecorder) Run() {
	go r.eventHandler()
}

// Stop closes EventCh and waits for the pending events to be saved.
func (r *SyscallRecorder) Stop() {
	close(r.EventCh)
	<-r.done
}

func (r *SyscallRecorder) CleanUp() {
	_, err := os.Stat(r.recordPath)
	if err == nil {
		os.Remove(r.recordPath)
	}
}

// ReadSyscallRecords decodes a record file.
func ReadSyscallRecords(recordPath string) ([]tracer.SyscallEvent, error) {
	file, err := os.Open(recordPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var events []tracer.SyscallEvent
	decoder := gob.NewDecoder(bufio.NewReader(file))
	for {
		var event tracer.SyscallEvent
		err := decoder.Decode(&event)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, fmt.Errorf("the record file %s is corrupted after %d events: %v", recordPath, len(events), err)
		}
		events = append(events, event)
	}
}
