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

package main

import (
	"flag"

	"github.com/bytedance/seccompsynth/internal/behavior"
	"github.com/bytedance/seccompsynth/internal/config"
	"github.com/bytedance/seccompsynth/pkg/metrics"
	tracer "github.com/bytedance/seccompsynth/pkg/processtracer"
	"github.com/bytedance/seccompsynth/pkg/signal"
)

const defaultVerifyReportPath = "seccomp-verify-report.json"

// runVerify drives the workload against the target running under the profile
// and reports the syscalls the profile would deny.
func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	profilePath := fs.String("profile", config.DefaultOutputPath, "Path to the seccomp profile to verify.")
	verifyReportPath := fs.String("report", defaultVerifyReportPath, "Path of the verification report. Set it to empty to skip the report.")
	fs.Parse(args)

	setupLog := logger.WithName("SETUP")

	cfg, err := loadConfig(fs.Args())
	if err != nil {
		setupLog.Error(err, "invalid configuration")
		return exitFatal
	}

	c, err := setupComponents(cfg)
	if err != nil {
		setupLog.Error(err, "setupComponents()")
		return exitFatal
	}
	defer c.shutdown()

	ctx := signal.SetupSignalContext()

	verifier := behavior.NewVerifier(
		cfg,
		*profilePath,
		*verifyReportPath,
		tracer.NewProcessTracer(logger.WithName("TRACER")),
		c.resolver,
		metrics.NewSessionMetrics(c.metrics),
		c.trail,
		logger.WithName("VERIFIER"))

	report, err := verifier.Run(ctx)
	if err != nil {
		logger.Error(err, fatalReason(err))
		return exitFatal
	}

	if !report.Passed {
		logger.Info("the profile failed the verification", "denials", len(report.Denials), "report", *verifyReportPath)
		return exitPartial
	}
	return exitOK
}
