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
	"fmt"
	"os"

	"github.com/bytedance/seccompsynth/internal/behavior"
	"github.com/bytedance/seccompsynth/pkg/metrics"
)

// runReplay synthesizes the profile from the syscall record of a debug run.
func runReplay(args []string) int {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	recordPath := fs.String("records", "", "Path to the syscall record file saved in debug mode.")
	fs.Parse(args)

	if *recordPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] replay -records FILE\n", os.Args[0])
		return exitFatal
	}

	setupLog := logger.WithName("SETUP")

	cfg, err := loadConfig(nil)
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

	session, err := behavior.NewSession(cfg, nil, c.resolver, metrics.NewSessionMetrics(c.metrics), c.trail, logger.WithName("REPLAY"))
	if err != nil {
		setupLog.Error(err, "behavior.NewSession()")
		return exitFatal
	}

	report, err := session.Replay(*recordPath)
	if err != nil {
		logger.Error(err, fatalReason(err), "records", *recordPath)
		return exitFatal
	}

	if report.Partial && cfg.Strict {
		logger.Info("the result is partial, exit with an error in strict mode")
		return exitPartial
	}
	return exitOK
}
