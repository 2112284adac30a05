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
	"fmt"
	"os"
	"path"

	"github.com/go-logr/logr"
)

// AuditRecorder saves the seccomp audit records of a verification run.
type AuditRecorder struct {
	name             string
	AuditEventCh     chan string
	done             chan struct{}
	recordPath       string
	recordFile       *os.File
	recordFileWriter *bufio.Writer
	log              logr.Logger
}

func NewAuditRecorder(directory string, name string, log logr.Logger) *AuditRecorder {
	r := AuditRecorder{
		name:         name,
		AuditEventCh: make(chan string, 500),
		done:         make(chan struct{}),
		recordPath:   path.Join(directory, fmt.Sprintf("%s_audit_records.log", name)),
		log:          log,
	}

	return &r
}

// RecordPath returns the path of the record file.
func (r *AuditRecorder) RecordPath() string {
	return r.recordPath
}

// Init create the record file to save the seccomp audit events
func (r *AuditRecorder) Init() error {
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

	return nil
}

// eventHandler saves the audit events until AuditEventCh is closed
func (r *AuditRecorder) eventHandler() {
	defer close(r.done)
	defer r.close()

	for event := range r.AuditEventCh {
		r.recordFileWriter.WriteString(event + "\n")
	}
}

func (r *AuditRecorder) Run() {
	go r.eventHandler()
}

// Stop closes AuditEventCh and waits for the pending events to be saved.
func (r *AuditRecorder) Stop() {
	close(r.AuditEventCh)
	<-r.done
}

func (r *AuditRecorder) close() {
	if r.recordFileWriter != nil {
		r.recordFileWriter.Flush()
	}

	if r.recordFile != nil {
		r.recordFile.Close()
	}
}

func (r *AuditRecorder) CleanUp() {
	_, err := os.Stat(r.recordPath)
	if err == nil {
		os.Remove(r.recordPath)
	}
}
