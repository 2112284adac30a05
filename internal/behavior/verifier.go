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
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/bytedance/seccompsynth/internal/behavior/preprocessor"
	"github.com/bytedance/seccompsynth/internal/behavior/recorder"
	"github.com/bytedance/seccompsynth/internal/config"
	seccompprofile "github.com/bytedance/seccompsynth/internal/profile/seccomp"
	sessiontypes "github.com/bytedance/seccompsynth/internal/types"
	audit "github.com/bytedance/seccompsynth/pkg/auditor"
	"github.com/bytedance/seccompsynth/pkg/metrics"
	tracer "github.com/bytedance/seccompsynth/pkg/processtracer"
	"github.com/bytedance/seccompsynth/pkg/seccomp"
	"github.com/bytedance/seccompsynth/pkg/syscalls"
)

const verifyRecordName = "verify"

// AuditFlushDelay is how long the audit log is still read after the target is
// gone, for the records the kernel has not written yet.
var AuditFlushDelay = 2 * time.Second

// Verifier runs the target under a profile whose default action only logs,
// drives the same workload and reports every syscall the profile would have
// refused.
type Verifier struct {
	cfg         *config.Config
	profilePath string
	reportPath  string
	tracer      tracer.Tracer
	resolver    *syscalls.Resolver
	metrics     *metrics.SessionMetrics
	trail       zerolog.Logger
	log         logr.Logger
}

func NewVerifier(
	cfg *config.Config,
	profilePath string,
	reportPath string,
	t tracer.Tracer,
	resolver *syscalls.Resolver,
	sessionMetrics *metrics.SessionMetrics,
	trail zerolog.Logger,
	log logr.Logger) *Verifier {

	return &Verifier{
		cfg:         cfg,
		profilePath: profilePath,
		reportPath:  reportPath,
		tracer:      t,
		resolver:    resolver,
		metrics:     sessionMetrics,
		trail:       trail,
		log:         log,
	}
}

// logOnlyProfile writes a copy of the profile whose default action is
// SCMP_ACT_LOG into dir.
func (v *Verifier) logOnlyProfile(dir string) (string, error) {
	content, err := seccomp.LoadSeccompProfile(v.profilePath)
	if err != nil {
		return "", errors.Wrap(err, "load the profile to verify")
	}
	content, err = seccompprofile.GenerateBehaviorModelingProfile(content)
	if err != nil {
		return "", errors.Wrap(err, "GenerateBehaviorModelingProfile()")
	}

	logProfilePath := filepath.Join(dir, "profile.json")
	err = seccomp.SaveSeccompProfile(logProfilePath, content)
	if err != nil {
		return "", err
	}
	return logProfilePath, nil
}

// Run verifies the profile. The returned error is only set when the
// verification could not be carried out.
func (v *Verifier) Run(ctx context.Context) (*sessiontypes.VerifyReport, error) {
	report := &sessiontypes.VerifyReport{
		ProfilePath: v.profilePath,
	}

	tmpDir, err := os.MkdirTemp("", "seccompsynth-verify-")
	if err != nil {
		return report, err
	}
	defer os.RemoveAll(tmpDir)

	logProfilePath, err := v.logOnlyProfile(tmpDir)
	if err != nil {
		report.Error = err.Error()
		return report, err
	}

	self, err := os.Executable()
	if err != nil {
		report.Error = err.Error()
		return report, err
	}

	cfg := *v.cfg
	cfg.Command = append([]string{self, "enforce", "-profile", logProfilePath, "--"}, v.cfg.Command...)

	auditor, err := audit.NewAuditor(cfg.AuditLogPaths, v.trail, v.log.WithName("AUDITOR"))
	if err != nil {
		report.Error = err.Error()
		return report, err
	}
	defer auditor.Close()

	auditRecorder := recorder.NewAuditRecorder(cfg.DataDirectory, verifyRecordName, v.log.WithName("AUDIT-RECORDER"))
	err = auditRecorder.Init()
	if err != nil {
		report.Error = err.Error()
		return report, err
	}
	auditRecorder.Run()
	auditor.AddAuditEventNotifyCh(verifyRecordName, auditRecorder.AuditEventCh)
	auditor.Run()

	session, err := NewSession(&cfg, v.tracer, v.resolver, v.metrics, v.trail, v.log.WithName("SESSION"))
	if err != nil {
		auditor.DeleteAuditEventNotifyCh(verifyRecordName)
		auditRecorder.Stop()
		report.Error = err.Error()
		return report, err
	}
	session.record = true
	session.recordName = verifyRecordName

	sessionReport := &sessiontypes.SessionReport{
		Command:   cfg.Command,
		State:     sessiontypes.Created,
		StartTime: time.Now(),
	}
	err = session.trace(ctx, sessionReport)
	if err == nil {
		v.log.V(1).Info("wait for the remaining audit records", "delay", AuditFlushDelay.String())
		select {
		case <-time.After(AuditFlushDelay):
		case <-ctx.Done():
		}
	}

	auditor.DeleteAuditEventNotifyCh(verifyRecordName)
	auditRecorder.Stop()
	if !cfg.Debug {
		defer auditRecorder.CleanUp()
		if session.recorder != nil {
			defer session.recorder.CleanUp()
		}
	}

	report.Outcome = sessionReport.Outcome
	report.Interactions = sessionReport.Interactions
	if err != nil {
		report.Error = err.Error()
		return report, err
	}

	p := preprocessor.NewDataPreprocessor(cfg.DataDirectory, verifyRecordName, nil, v.resolver, cfg.Debug, v.log.WithName("DATA-PREPROCESSOR"))
	report.Denials, err = p.Process()
	switch {
	case errors.Is(err, preprocessor.ErrNoTargetProcess):
		report.Inconclusive = true
		report.Error = err.Error()
	case err != nil:
		report.Error = err.Error()
		return report, err
	}

	report.Passed = !report.Inconclusive && len(report.Denials) == 0
	for _, result := range report.Interactions {
		if !result.Succeeded {
			report.Passed = false
		}
	}
	if sessionReport.Error != "" {
		report.Error = sessionReport.Error
		report.Passed = false
	}
	if report.Inconclusive {
		v.log.Info("WARNING: no syscall of the target was recorded, the profile could not be checked")
	}

	for _, denial := range report.Denials {
		v.log.Info("WARNING: the profile would deny the syscall", "syscall", denial.Syscall, "nr", denial.Nr,
			"arch", denial.Arch, "pid", denial.Pid, "exe", denial.Exe, "count", denial.Count)
	}
	v.log.Info("the verification is done", "profile", v.profilePath, "passed", report.Passed,
		"inconclusive", report.Inconclusive, "denials", len(report.Denials), "outcome", report.Outcome)

	if v.reportPath != "" {
		if err := writeReport(v.reportPath, report); err != nil {
			return report, err
		}
	}

	return report, nil
}
