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

// Package audit tails the kernel audit log and sends the seccomp audit
// records to subscribers.
package audit

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/nxadm/tail"
	"github.com/rs/zerolog"
)

const (
	ratelimitSysctl = "/proc/sys/kernel/printk_ratelimit"
)

type Auditor struct {
	auditEventChs   map[string]chan<- string // auditEventChs used for sending seccomp audit events to subscribers, key: subscriber name, value: audit event channel
	lock            sync.Mutex
	auditLogPath    string
	auditLogTail    *tail.Tail
	savedRateLimit  uint64
	violationLogger zerolog.Logger
	done            chan struct{}
	log             logr.Logger
}

// NewAuditor tails the first existing file of auditLogPaths, a list of paths
// separated by |. Only the lines written after the call are read.
func NewAuditor(auditLogPaths string, violationLogger zerolog.Logger, log logr.Logger) (*Auditor, error) {
	auditor := Auditor{
		auditEventChs:   make(map[string]chan<- string),
		violationLogger: violationLogger,
		done:            make(chan struct{}),
		log:             log,
	}

	for _, path := range strings.Split(auditLogPaths, "|") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		_, err := os.Stat(path)
		if err == nil {
			auditor.auditLogPath = path
			break
		}
	}
	if auditor.auditLogPath == "" {
		return nil, fmt.Errorf("please use --auditLogPaths command line parameter to specify the correct file paths that stores the audit logs for Seccomp")
	}

	t, err := tail.TailFile(auditor.auditLogPath,
		tail.Config{
			Location:      &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
			ReOpen:        true,
			Follow:        true,
			CompleteLines: true,
			Logger:        tail.DiscardingLogger,
		})
	if err != nil {
		return nil, err
	}
	auditor.auditLogTail = t
	auditor.log.Info("start tailing audit log", "path", auditor.auditLogPath)

	return &auditor, nil
}

// AuditLogPath returns the file being tailed.
func (auditor *Auditor) AuditLogPath() string {
	return auditor.auditLogPath
}

// AddAuditEventNotifyCh subscribes the channel to the seccomp audit events.
func (auditor *Auditor) AddAuditEventNotifyCh(subscriber string, auditEventCh chan<- string) {
	auditor.lock.Lock()
	defer auditor.lock.Unlock()

	auditor.auditEventChs[subscriber] = auditEventCh

	if len(auditor.auditEventChs) == 1 {
		err := auditor.setRateLimit()
		if err != nil {
			auditor.log.V(1).Info("the printk rate limit is left unchanged, some audit events may be dropped", "error", err.Error())
		}
	}
}

// DeleteAuditEventNotifyCh unsubscribes the subscriber. No event is sent to
// its channel after the call returns.
func (auditor *Auditor) DeleteAuditEventNotifyCh(subscriber string) {
	auditor.lock.Lock()
	defer auditor.lock.Unlock()

	delete(auditor.auditEventChs, subscriber)

	if len(auditor.auditEventChs) == 0 {
		err := auditor.restoreRateLimit()
		if err != nil {
			auditor.log.Error(err, "auditor.restoreRateLimit()")
		}
	}
}

func (auditor *Auditor) processAuditEvent(event string) {
	if !strings.Contains(event, "type=1326") && !strings.Contains(event, "type=SECCOMP") {
		return
	}
	event = strings.TrimSpace(event)
	auditor.log.V(2).Info("receive a Seccomp audit event", "event", event)

	auditor.violationLogger.Debug().
		Str("eventType", "Seccomp").
		Str("event", event).Msg("violation event")

	auditor.lock.Lock()
	defer auditor.lock.Unlock()
	for _, ch := range auditor.auditEventChs {
		ch <- event
	}
}

func (auditor *Auditor) readFromAuditLogFile() {
	defer close(auditor.done)
	auditor.log.Info("start reading from audit logs", "path", auditor.auditLogPath)

	for line := range auditor.auditLogTail.Lines {
		if line.Err != nil {
			auditor.log.Error(line.Err, "failed to read the audit log")
			continue
		}
		auditor.processAuditEvent(line.Text)
	}
}

func (auditor *Auditor) Run() {
	go auditor.readFromAuditLogFile()
}

func (auditor *Auditor) Close() {
	auditor.auditLogTail.Stop()
	auditor.auditLogTail.Cleanup()
}

// setRateLimit set the printk_ratelimit to 0 for recording the audit logs of Seccomp.
func (auditor *Auditor) setRateLimit() error {
	rateLimit, err := sysctl_read(ratelimitSysctl)
	if err != nil {
		return err
	}
	auditor.savedRateLimit, err = parseUint(rateLimit)
	if err != nil {
		return err
	}
	if auditor.savedRateLimit != 0 {
		return sysctl_write(ratelimitSysctl, 0)
	}
	return nil
}

// restoreRateLimit recover the printk_ratelimit to previous value.
func (auditor *Auditor) restoreRateLimit() error {
	if auditor.savedRateLimit != 0 {
		return sysctl_write(ratelimitSysctl, auditor.savedRateLimit)
	}
	return nil
}
