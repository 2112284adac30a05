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

package behavior

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr/testr"
	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/rs/zerolog"
	"gotest.tools/assert"
	"k8s.io/apimachinery/pkg/util/sets"

	seccompprofile "github.com/bytedance/seccompsynth/internal/profile/seccomp"
	"github.com/bytedance/seccompsynth/pkg/metrics"
	tracer "github.com/bytedance/seccompsynth/pkg/processtracer"
	"github.com/bytedance/seccompsynth/pkg/syscalls"
)

// profileTracer starts a new scripted target for every run. The target
// makes socket, bind and listen at start and accept4 per request, and reads
// the allow-list of the profile it is started under.
type profileTracer struct {
	t       *testing.T
	mu      sync.Mutex
	stream  *fakeStream
	allowed sets.Set[string]
	runs    int
}

func (p *profileTracer) Trace(ctx context.Context, l *tracer.Launcher) (tracer.Stream, error) {
	var profilePath string
	for i, arg := range l.Args {
		if arg == "-profile" && i+1 < len(l.Args) {
			profilePath = l.Args[i+1]
		}
	}
	profile := readProfile(p.t, profilePath)

	stream := newFakeStream([]tracer.SyscallEvent{x86Event(41), x86Event(49), x86Event(50)}, true)
	p.mu.Lock()
	p.stream = stream
	p.allowed = sets.New[string](seccompprofile.AllowedSyscalls(profile)...)
	p.runs++
	p.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			stream.Kill()
		case <-stream.done:
		}
	}()
	return stream, nil
}

func (p *profileTracer) current() (*fakeStream, sets.Set[string]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream, p.allowed
}

// newAuditingTargetService serves the request of the workload. It appends the
// audit records of the syscalls the current profile doesn't allow, once the
// auditor follows the log.
func newAuditingTargetService(t *testing.T, tr *profileTracer, auditLog string) string {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		stream, allowed := tr.current()
		stream.emit(x86Event(288))

		f, err := os.OpenFile(auditLog, os.O_APPEND|os.O_WRONLY, 0)
		if err == nil {
			for _, nr := range []uint64{41, 49, 50, 288} {
				if !allowed.Has(x86_64Table[nr]) {
					fmt.Fprintf(f, "type=SECCOMP msg=audit(1705307237.424:1): pid=4242 comm=\"target\" exe=\"/usr/bin/target\" sig=0 arch=c000003e syscall=%d compat=0 code=0x7ffc0000\n", nr)
				}
			}
			f.Close()
		}
		c.String(http.StatusOK, "ok")
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return strings.TrimPrefix(server.URL, "http://")
}

func Test_Minimizer(t *testing.T) {
	saved := AuditFlushDelay
	AuditFlushDelay = 300 * time.Millisecond
	defer func() { AuditFlushDelay = saved }()

	testCases := []struct {
		name      string
		profile   []string
		expectErr error
		removed   []string
		kept      []string
		runs      int
	}{
		{
			name:    "unused syscalls are removed",
			profile: []string{"socket", "bind", "listen", "accept4", "uname", "getcwd"},
			removed: []string{"getcwd", "uname"},
			kept:    []string{"accept4", "bind", "listen", "socket"},
			runs:    7,
		},
		{
			name:      "the profile misses a syscall",
			profile:   []string{"socket", "bind", "listen", "uname"},
			expectErr: ErrProfileRejected,
			runs:      1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			auditLog := filepath.Join(t.TempDir(), "audit.log")
			assert.NilError(t, os.WriteFile(auditLog, []byte("type=DAEMON_START msg=audit(1705307237.000:1): op=start\n"), 0600))

			tr := &profileTracer{t: t}
			cfg := testConfig(t, newAuditingTargetService(t, tr, auditLog))
			cfg.AuditLogPaths = auditLog
			outputPath := filepath.Join(t.TempDir(), "seccomp-minimized.json")
			reportPath := filepath.Join(t.TempDir(), "seccomp-minimize-report.json")

			m, err := metrics.NewMetricsModule(testr.New(t), false)
			assert.NilError(t, err)
			resolver := syscalls.NewResolver(map[specs.Arch]syscalls.Table{specs.ArchX86_64: x86_64Table})

			minimizer := NewMinimizer(cfg, writeTestProfile(t, tc.profile...), outputPath, reportPath, tr, resolver,
				metrics.NewSessionMetrics(m), zerolog.Nop(), testr.New(t))
			report, err := minimizer.Run(context.Background())
			assert.Equal(t, tr.runs, tc.runs)

			if tc.expectErr != nil {
				assert.Assert(t, errors.Is(err, tc.expectErr), "unexpected error: %v", err)
				_, err = os.Stat(outputPath)
				assert.Assert(t, os.IsNotExist(err))
				return
			}
			assert.NilError(t, err)

			assert.DeepEqual(t, report.Candidates, []string{"accept4", "bind", "getcwd", "listen", "socket", "uname"})
			assert.Equal(t, report.Trials, len(report.Candidates))
			assert.DeepEqual(t, report.Removed, tc.removed)
			assert.DeepEqual(t, report.Kept, tc.kept)

			profile := readProfile(t, outputPath)
			assert.Equal(t, profile.DefaultAction, specs.ActErrno)
			assert.DeepEqual(t, seccompprofile.AllowedSyscalls(profile), expectedAllowList(tc.kept...))
			assert.DeepEqual(t, report.AllowList, expectedAllowList(tc.kept...))

			_, err = os.Stat(reportPath)
			assert.NilError(t, err)
		})
	}
}

func Test_MinimizerCandidates(t *testing.T) {
	cfg := testConfig(t, "127.0.0.1:1")
	cfg.Baseline.Extra = []string{"uname"}
	minimizer := NewMinimizer(cfg, "", "", "", nil, nil, nil, zerolog.Nop(), testr.New(t))

	profile := readProfile(t, writeTestProfile(t, "socket", "uname", "read", "accept4"))
	assert.DeepEqual(t, minimizer.candidates(profile), []string{"accept4", "socket"})
}
