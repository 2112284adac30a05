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
	"os"
	"strings"
	"testing"

	"gotest.tools/assert"
	log "sigs.k8s.io/controller-runtime/pkg/log"

	tracer "github.com/bytedance/seccompsynth/pkg/processtracer"
)

func Test_SyscallRecorder(t *testing.T) {
	dir := t.TempDir()
	events := []tracer.SyscallEvent{
		{Pid: 100, AuditArch: 0xc000003e, Nr: 0},
		{Pid: 100, AuditArch: 0xc000003e, Nr: 59},
		{Pid: 101, AuditArch: 0x40000003, Nr: 3},
	}

	r := NewSyscallRecorder(dir, "test", true, log.Log.WithName("TEST"))
	assert.NilError(t, r.Init())
	r.Run()
	for _, event := range events {
		r.EventCh <- event
	}
	r.Stop()

	records, err := ReadSyscallRecords(r.RecordPath())
	assert.NilError(t, err)
	assert.DeepEqual(t, records, events)

	debug, err := os.ReadFile(r.recordDebugPath)
	assert.NilError(t, err)
	lines := strings.Split(strings.TrimSpace(string(debug)), "\n")
	assert.Equal(t, len(lines), 3)
	assert.Assert(t, strings.Contains(lines[2], "SCMP_ARCH_X86"))

	r.CleanUp()
	_, err = os.Stat(r.RecordPath())
	assert.Assert(t, os.IsNotExist(err))
}

func Test_ReadSyscallRecordsCorrupted(t *testing.T) {
	path := t.TempDir() + "/corrupted.log"
	assert.NilError(t, os.WriteFile(path, []byte("not a gob stream"), 0644))

	_, err := ReadSyscallRecords(path)
	assert.Assert(t, err != nil)
}

func Test_AuditRecorder(t *testing.T) {
	r := NewAuditRecorder(t.TempDir(), "test", log.Log.WithName("TEST"))
	assert.NilError(t, r.Init())
	r.Run()
	r.AuditEventCh <- `type=1326 audit(1704362546.390:1): pid=1 comm="a" exe="/a" arch=c000003e syscall=41`
	r.AuditEventCh <- `type=1326 audit(1704362546.390:2): pid=1 comm="a" exe="/a" arch=c000003e syscall=42`
	r.Stop()

	content, err := os.ReadFile(r.RecordPath())
	assert.NilError(t, err)
	assert.Equal(t, strings.Count(string(content), "\n"), 2)
}
