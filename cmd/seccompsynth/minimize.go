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

const (
	defaultMinimizedPath      = "seccomp-minimized.json"
	defaultMinimizeReportPath = "seccomp-minimize-report.json"
)

// runMinimize removes every syscall of the profile the workload can do
// without, verifying the target under each candidate profile.
func runMinimize(args []string) int {
	fs := flag.NewFlagSet("minimize", flag.ExitOnError)
	profilePath := fs.String("profile", config.DefaultOutputPath, "Path to the seccomp profile to minimize.")
	minimizedPath := fs.String("output", defaultMinimizedPath, "Path of the minimized seccomp profile.")
	minimizeReportPath := fs.String("report", defaultMinimizeReportPath, "Path of the minimization report. Set it to empty to skip the report.")
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

	minimizer := behavior.NewMinimizer(
		cfg,
		*profilePath,
		*minimizedPath,
		*minimizeReportPath,
		tracer.NewProcessTracer(logger.WithName("TRACER")),
		c.resolver,
		metrics.NewSessionMetrics(c.metrics),
		c.trail,
		logger.WithName("MINIMIZER"))

	report, err := minimizer.Run(ctx)
	if err != nil {
		logger.Error(err, fatalReason(err), "trials", report.Trials)
		return exitFatal
	}

	logger.Info("the profile was minimized", "output", *minimizedPath,
		"removed", report.Removed, "kept", len(report.Kept))
	return exitOK
}
