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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/rs/zerolog"

	"github.com/bytedance/seccompsynth/internal/behavior/recorder"
	"github.com/bytedance/seccompsynth/internal/behavior/synthesizer"
	"github.com/bytedance/seccompsynth/internal/config"
	seccompprofile "github.com/bytedance/seccompsynth/internal/profile/seccomp"
	sessiontypes "github.com/bytedance/seccompsynth/internal/types"
	"github.com/bytedance/seccompsynth/internal/workload"
	"github.com/bytedance/seccompsynth/pkg/metrics"
	tracer "github.com/bytedance/seccompsynth/pkg/processtracer"
	"github.com/bytedance/seccompsynth/pkg/seccomp"
	"github.com/bytedance/seccompsynth/pkg/syscalls"
	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

// Session runs the target under the tracer while the workload is driven
// against it, then writes the synthesized profile and the session report.
type Session struct {
	cfg        *config.Config
	tracer     tracer.Tracer
	driver     *workload.Driver
	collector  *Collector
	metrics    *metrics.SessionMetrics
	configured []specs.Arch
	// record saves the raw syscall events under the data directory
	record     bool
	recordName string
	recorder   *recorder.SyscallRecorder
	trail      zerolog.Logger
	log        logr.Logger
}

func NewSession(
	cfg *config.Config,
	t tracer.Tracer,
	resolver *syscalls.Resolver,
	sessionMetrics *metrics.SessionMetrics,
	trail zerolog.Logger,
	log logr.Logger) (*Session, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	configured, err := cfg.ConfiguredArches()
	if err != nil {
		return nil, err
	}

	s := Session{
		cfg:        cfg,
		tracer:     t,
		driver:     workload.NewDriver(cfg.Endpoint, cfg.Workload, cfg.ReadinessTimeout, cfg.InteractionTimeout, log.WithName("WORKLOAD")),
		collector:  NewCollector(resolver, synthesizer.NewSynthesizer(cfg.Baseline.Extra), sessionMetrics, log.WithName("COLLECTOR")),
		metrics:    sessionMetrics,
		configured: configured,
		record:     cfg.Debug,
		recordName: filepath.Base(cfg.Command[0]),
		trail:      trail,
		log:        log,
	}

	log.Info("create a trace session", "command", cfg.Command, "endpoint", cfg.Endpoint,
		"timeout", cfg.Timeout.String(), "output", cfg.Output)

	return &s, nil
}

func (s *Session) transition(report *sessiontypes.SessionReport, state sessiontypes.SessionState) {
	s.log.V(1).Info("session state changed", "from", report.State, "to", state)
	report.State = state
}

func (s *Session) fail(report *sessiontypes.SessionReport, err error) {
	s.transition(report, sessiontypes.Failed)
	report.Error = err.Error()
	report.EndTime = time.Now()
	s.log.Error(err, "the session failed")
}

// Run traces the target until the workload is done, the target exits or the
// timeout expires. It returns synthtypes.ErrAborted without writing anything
// when ctx is cancelled.
func (s *Session) Run(ctx context.Context) (*sessiontypes.SessionReport, error) {
	report := &sessiontypes.SessionReport{
		Command:   s.cfg.Command,
		State:     sessiontypes.Created,
		StartTime: time.Now(),
	}

	if err := s.trace(ctx, report); err != nil {
		return report, err
	}

	return report, s.finalize(report)
}

// finalize writes the report and then the profile. A failure leaves neither
// file behind.
func (s *Session) finalize(report *sessiontypes.SessionReport) error {
	policy := s.collector.Synthesizer().Finalize(s.cfg.Architectures.Mode, s.configured)
	s.summarize(report, policy)

	content, err := seccompprofile.GenerateProfileWithPolicy(policy)
	if err != nil {
		s.fail(report, err)
		return err
	}

	report.ProfilePath = s.cfg.Output
	s.transition(report, sessiontypes.Finalized)
	report.EndTime = time.Now()

	if s.cfg.Report != "" {
		if err := writeReport(s.cfg.Report, report); err != nil {
			report.ProfilePath = ""
			s.fail(report, err)
			return err
		}
	}

	err = seccomp.SaveSeccompProfile(s.cfg.Output, content)
	if err != nil {
		if s.cfg.Report != "" {
			if e := os.Remove(s.cfg.Report); e != nil {
				s.log.Error(e, "os.Remove() failed", "path", s.cfg.Report)
			}
		}
		report.ProfilePath = ""
		s.fail(report, err)
		return err
	}

	if report.Partial {
		s.log.Info("WARNING: the profile was written from a partial trace", "path", s.cfg.Output,
			"outcome", report.Outcome, "syscalls", len(report.AllowList))
	} else {
		s.log.Info("the profile was written", "path", s.cfg.Output,
			"outcome", report.Outcome, "syscalls", len(report.AllowList))
	}
	return nil
}

// trace drives the state machine from created to the termination outcome.
func (s *Session) trace(ctx context.Context, report *sessiontypes.SessionReport) error {
	if s.record {
		s.recorder = recorder.NewSyscallRecorder(s.cfg.DataDirectory, s.recordName, s.cfg.Debug, s.log.WithName("SYSCALL-RECORDER"))
		if err := s.recorder.Init(); err != nil {
			s.fail(report, err)
			return err
		}
		s.recorder.Run()
		defer s.recorder.Stop()
		report.RecordPath = s.recorder.RecordPath()
	}

	launcher := &tracer.Launcher{
		Path: s.cfg.Command[0],
		Args: s.cfg.Command[1:],
		Dir:  s.cfg.Dir,
		Env:  s.cfg.Env,
	}
	stream, err := s.tracer.Trace(ctx, launcher)
	if err != nil {
		s.fail(report, err)
		return err
	}
	s.transition(report, sessiontypes.Launched)
	s.transition(report, sessiontypes.Tracing)
	s.log.Info("start tracing", "pid", stream.Pid(), "command", launcher.String())

	driverCtx, cancelDriver := context.WithCancel(ctx)
	defer cancelDriver()
	driverCh := make(chan *workload.Report, 1)
	go func() {
		driverCh <- s.driver.Run(driverCtx)
	}()

	timer := time.NewTimer(s.cfg.Timeout)
	defer timer.Stop()

	var workloadReport *workload.Report
	var grace <-chan time.Time
	events := stream.Events()

loop:
	for {
		select {
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.handleEvent(event)

		case <-stream.Done():
			for event := range stream.Events() {
				s.handleEvent(event)
			}
			if report.Outcome == "" {
				report.Outcome = sessiontypes.ProcessExited
				s.transition(report, sessiontypes.ProcessExited)
				s.log.Info("WARNING: the target exited before the workload was done", "pid", stream.Pid())
			}
			break loop

		case workloadReport = <-driverCh:
			driverCh = nil
			if report.Outcome == "" {
				report.Outcome = sessiontypes.WorkloadComplete
				s.transition(report, sessiontypes.WorkloadComplete)
				s.log.Info("the workload is done, stop the target",
					"succeeded", workloadReport.Succeeded(), "interactions", len(workloadReport.Results))
				stream.Terminate()
				grace = time.After(s.cfg.StopGracePeriod)
			}

		case <-grace:
			grace = nil
			s.log.Info("the target is still running after the grace period, kill it",
				"grace period", s.cfg.StopGracePeriod.String())
			stream.Kill()

		case <-timer.C:
			if report.Outcome == "" {
				report.Outcome = sessiontypes.TimedOut
				s.transition(report, sessiontypes.TimedOut)
				s.log.Info("WARNING: the session timed out, the result will be partial",
					"error", (&synthtypes.TimeoutError{Timeout: s.cfg.Timeout}).Error())
			}
			stream.Kill()

		case <-ctx.Done():
			stream.Kill()
			<-stream.Done()
			break loop
		}
	}

	cancelDriver()
	if driverCh != nil {
		workloadReport = <-driverCh
	}

	report.Processes = stream.Processes()
	report.EventCount = s.collector.Events()
	s.metrics.ProcessesTraced(report.Processes)

	if ctx.Err() != nil {
		s.transition(report, sessiontypes.Aborted)
		report.Error = synthtypes.ErrAborted.Error()
		report.EndTime = time.Now()
		s.log.Info("the session was aborted, nothing is written")
		return synthtypes.ErrAborted
	}

	if err := stream.Err(); err != nil {
		report.Partial = true
		report.Error = err.Error()
		s.log.Info("WARNING: the trace ended early, the result will be partial", "error", err.Error())
	}
	if report.Outcome == sessiontypes.TimedOut {
		report.Partial = true
	}

	report.Interactions = workloadReport.Results
	for _, result := range workloadReport.Results {
		s.metrics.Interaction(result)
		s.trail.Info().
			Str("interaction", result.Name).
			Str("kind", string(result.Kind)).
			Bool("attempted", result.Attempted).
			Bool("succeeded", result.Succeeded).
			Int("status", result.StatusCode).
			Str("error", result.Error).
			Dur("duration", result.Duration).
			Msg("interaction")
	}
	if workloadReport.Failed() {
		report.Partial = true
	}

	return nil
}

func (s *Session) handleEvent(event tracer.SyscallEvent) {
	if s.recorder != nil {
		s.recorder.EventCh <- event
	}
	s.collector.Collect(event)
}

// summarize fills the report from the policy and the unresolved syscalls.
func (s *Session) summarize(report *sessiontypes.SessionReport, policy *synthesizer.Policy) {
	synth := s.collector.Synthesizer()

	report.UniqueSyscalls = synth.Len()
	report.AllowList = policy.AllowList()
	for _, arch := range policy.Architectures() {
		report.Architectures = append(report.Architectures, string(arch))
	}

	report.Unresolved = synth.UnresolvedSyscalls()
	for _, u := range report.Unresolved {
		s.trail.Warn().
			Str("arch", u.Arch).
			Uint64("nr", u.Nr).
			Uint64("count", u.Count).
			Msg("unresolved syscall")
	}
	if len(report.Unresolved) > 0 {
		report.Partial = true
		s.log.Info("WARNING: some syscalls can't be resolved and are excluded from the profile, the result will be partial",
			"unresolved", len(report.Unresolved))
	}
}

func writeReport(path string, report interface{}) error {
	content, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return &synthtypes.WriteError{Path: path, Err: fmt.Errorf("json.MarshalIndent() failed: %w", err)}
	}
	content = append(content, '\n')
	return seccomp.WriteFileAtomic(path, content, synthtypes.ProfileFileMode)
}
