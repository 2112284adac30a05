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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/bytedance/seccompsynth/internal/behavior/synthesizer"
	"github.com/bytedance/seccompsynth/internal/config"
	seccompprofile "github.com/bytedance/seccompsynth/internal/profile/seccomp"
	sessiontypes "github.com/bytedance/seccompsynth/internal/types"
	"github.com/bytedance/seccompsynth/pkg/metrics"
	tracer "github.com/bytedance/seccompsynth/pkg/processtracer"
	"github.com/bytedance/seccompsynth/pkg/seccomp"
	"github.com/bytedance/seccompsynth/pkg/syscalls"
	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

// ErrProfileRejected is returned when the profile to minimize doesn't pass
// the verification itself.
var ErrProfileRejected = errors.New("the profile does not pass the verification")

// Minimizer removes the syscalls of a profile one at a time. A removal is kept
// when the workload still passes the verification without the syscall.
type Minimizer struct {
	cfg         *config.Config
	profilePath string
	outputPath  string
	reportPath  string
	tracer      tracer.Tracer
	resolver    *syscalls.Resolver
	metrics     *metrics.SessionMetrics
	trail       zerolog.Logger
	log         logr.Logger
}

func NewMinimizer(
	cfg *config.Config,
	profilePath string,
	outputPath string,
	reportPath string,
	t tracer.Tracer,
	resolver *syscalls.Resolver,
	sessionMetrics *metrics.SessionMetrics,
	trail zerolog.Logger,
	log logr.Logger) *Minimizer {

	return &Minimizer{
		cfg:         cfg,
		profilePath: profilePath,
		outputPath:  outputPath,
		reportPath:  reportPath,
		tracer:      t,
		resolver:    resolver,
		metrics:     sessionMetrics,
		trail:       trail,
		log:         log,
	}
}

// candidates returns the allowed syscalls that are not in the baseline,
// sorted.
func (m *Minimizer) candidates(profile *specs.LinuxSeccomp) []string {
	baseline := sets.New[string](synthesizer.BaselineSyscalls()...)
	for _, name := range m.cfg.Baseline.Extra {
		baseline.Insert(strings.TrimSpace(name))
	}
	allowed := sets.New[string](seccompprofile.AllowedSyscalls(profile)...)
	return sets.List(allowed.Difference(baseline))
}

// verify saves the profile into path and runs the verification under it.
func (m *Minimizer) verify(ctx context.Context, profile *specs.LinuxSeccomp, path string) (*sessiontypes.VerifyReport, error) {
	content, err := seccompprofile.RenderProfile(profile)
	if err != nil {
		return nil, errors.Wrap(err, "RenderProfile()")
	}
	err = seccomp.SaveSeccompProfile(path, content)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := seccomp.RemoveSeccompProfile(path); err != nil {
			m.log.Error(err, "RemoveSeccompProfile()", "path", path)
		}
	}()

	v := NewVerifier(m.cfg, path, "", m.tracer, m.resolver, m.metrics, m.trail, m.log.WithName("VERIFIER"))
	return v.Run(ctx)
}

// Run minimizes the profile and writes the result to the output path. It
// returns synthtypes.ErrAborted without writing anything when ctx is
// cancelled.
func (m *Minimizer) Run(ctx context.Context) (*sessiontypes.MinimizeReport, error) {
	report := &sessiontypes.MinimizeReport{
		ProfilePath: m.profilePath,
	}

	content, err := seccomp.LoadSeccompProfile(m.profilePath)
	if err != nil {
		report.Error = err.Error()
		return report, errors.Wrap(err, "load the profile to minimize")
	}
	working, err := seccompprofile.ParseProfile(content)
	if err != nil {
		report.Error = err.Error()
		return report, err
	}

	tmpDir, err := os.MkdirTemp("", "seccompsynth-minimize-")
	if err != nil {
		report.Error = err.Error()
		return report, err
	}
	defer os.RemoveAll(tmpDir)

	report.Candidates = m.candidates(working)
	m.log.Info("start minimizing", "profile", m.profilePath, "candidates", len(report.Candidates))

	verifyReport, err := m.verify(ctx, working, filepath.Join(tmpDir, "seccomp.json"))
	if err != nil {
		return m.abortOrFail(ctx, report, err)
	}
	if !verifyReport.Passed {
		report.Error = ErrProfileRejected.Error()
		m.log.Info("WARNING: the profile must pass the verification before it can be minimized",
			"denials", len(verifyReport.Denials), "inconclusive", verifyReport.Inconclusive)
		return report, ErrProfileRejected
	}

	for i, name := range report.Candidates {
		trial := seccompprofile.RemoveSyscall(working, name)
		verifyReport, err := m.verify(ctx, trial, filepath.Join(tmpDir, fmt.Sprintf("seccomp-without-%s.json", name)))
		if err != nil {
			return m.abortOrFail(ctx, report, err)
		}
		report.Trials++

		if verifyReport.Passed {
			working = trial
			report.Removed = append(report.Removed, name)
			m.log.Info("the syscall is not needed", "syscall", name, "trial", i+1, "of", len(report.Candidates))
		} else {
			report.Kept = append(report.Kept, name)
			m.log.Info("the syscall is needed", "syscall", name, "trial", i+1, "of", len(report.Candidates),
				"denials", len(verifyReport.Denials))
		}
		m.trail.Info().
			Str("syscall", name).
			Bool("removed", verifyReport.Passed).
			Msg("minimize")
	}

	report.AllowList = seccompprofile.AllowedSyscalls(working)
	content, err = seccompprofile.RenderProfile(working)
	if err != nil {
		report.Error = err.Error()
		return report, err
	}
	if err := seccomp.SaveSeccompProfile(m.outputPath, content); err != nil {
		report.Error = err.Error()
		return report, err
	}
	report.OutputPath = m.outputPath

	m.log.Info("the minimized profile was written", "path", m.outputPath,
		"removed", len(report.Removed), "kept", len(report.Kept))

	if m.reportPath != "" {
		if err := writeReport(m.reportPath, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (m *Minimizer) abortOrFail(ctx context.Context, report *sessiontypes.MinimizeReport, err error) (*sessiontypes.MinimizeReport, error) {
	if ctx.Err() != nil {
		err = synthtypes.ErrAborted
	}
	report.Error = err.Error()
	return report, err
}
