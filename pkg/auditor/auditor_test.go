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

package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gotest.tools/assert"
	"k8s.io/klog/v2/textlogger"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

func Test_Auditor(t *testing.T) {
	c := textlogger.NewConfig()
	log.SetLogger(textlogger.NewLogger(c))

	dir := t.TempDir()
	auditLogPath := filepath.Join(dir, "audit.log")
	assert.NilError(t, os.WriteFile(auditLogPath, []byte("type=SECCOMP msg=audit(1.0:1): pid=1 comm=\"old\" exe=\"/old\" arch=c000003e syscall=1\n"), 0644))

	a, err := NewAuditor(filepath.Join(dir, "missing.log")+"|"+auditLogPath, zerolog.Nop(), log.Log.WithName("AUDITOR"))
	assert.NilError(t, err)
	defer a.Close()
	assert.Equal(t, a.AuditLogPath(), auditLogPath)

	eventCh := make(chan string, 10)
	a.AddAuditEventNotifyCh("test", eventCh)
	a.Run()

	// Give the tail reader time to reach the end of the file
	time.Sleep(200 * time.Millisecond)

	f, err := os.OpenFile(auditLogPath, os.O_APPEND|os.O_WRONLY, 0644)
	assert.NilError(t, err)
	f.WriteString("type=AVC msg=audit(2.0:2): apparmor=\"DENIED\" pid=2\n")
	f.WriteString("type=SECCOMP msg=audit(2.0:3): pid=2 comm=\"new\" exe=\"/new\" arch=c000003e syscall=41\n")
	f.Close()

	select {
	case event := <-eventCh:
		assert.Assert(t, strings.Contains(event, "syscall=41"))
	case <-time.After(10 * time.Second):
		t.Fatal("no audit event received")
	}

	a.DeleteAuditEventNotifyCh("test")
	select {
	case event := <-eventCh:
		t.Fatalf("unexpected event %s", event)
	default:
	}
}

func Test_NewAuditorWithoutLog(t *testing.T) {
	_, err := NewAuditor("/nonexistent/audit.log|/nonexistent/kern.log", zerolog.Nop(), log.Log.WithName("AUDITOR"))
	assert.Assert(t, err != nil)
}

func Test_NewTrailLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trail", "trail.log")
	logger, err := NewTrailLogger(path)
	assert.NilError(t, err)

	logger.Info().Str("interaction", "index").Bool("succeeded", true).Msg("interaction result")

	content, err := os.ReadFile(path)
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(content), `"interaction":"index"`))
}

func Test_sysctl(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printk_ratelimit")
	assert.NilError(t, os.WriteFile(path, []byte("5\n"), 0644))

	value, err := sysctl_read(path)
	assert.NilError(t, err)
	n, err := parseUint(value)
	assert.NilError(t, err)
	assert.Equal(t, n, uint64(5))

	assert.NilError(t, sysctl_write(path, 0))
	value, err = sysctl_read(path)
	assert.NilError(t, err)
	assert.Equal(t, value, "0")
}
