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
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/automaxprocs/maxprocs"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/textlogger"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/bytedance/seccompsynth/internal/behavior"
	"github.com/bytedance/seccompsynth/internal/config"
	audit "github.com/bytedance/seccompsynth/pkg/auditor"
	"github.com/bytedance/seccompsynth/pkg/metrics"
	tracer "github.com/bytedance/seccompsynth/pkg/processtracer"
	"github.com/bytedance/seccompsynth/pkg/signal"
	"github.com/bytedance/seccompsynth/pkg/syscalls"
	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

const (
	exitOK      = 0
	exitFatal   = 1
	exitPartial = 2
)

var (
	configPath         string
	output             string
	reportPath         string
	endpoint           string
	workDir            string
	timeout            time.Duration
	readinessTimeout   time.Duration
	interactionTimeout time.Duration
	stopGracePeriod    time.Duration
	archMode           string
	arches             string
	baselineExtra      string
	auditLogPaths      string
	dataDirectory      string
	metricsAddr        string
	auditTrail         string
	strict             bool
	logFormat          string
	verbosity          int
	versionFlag        bool
	debugFlag          bool
	gitVersion         string
	gitCommit          string
	buildDate          string
	goVersion          string
	logger             = log.Log
)

func setLogger() {
	// Disable the log of automaxprocs
	maxprocs.Set()

	var logrLogger logr.Logger
	switch logFormat {
	case "json":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
		zerologger := zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
		zerologr.SetMaxV(verbosity)
		logrLogger = zerologr.New(&zerologger)
	default:
		c := textlogger.NewConfig(textlogger.Verbosity(verbosity))
		logrLogger = textlogger.NewLogger(c)
	}
	log.SetLogger(logrLogger)
	klog.SetLogger(logrLogger)
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// loadConfig merges the defaults, the config file and the flags that were set
// explicitly, in that order. A non-empty command replaces the configured one.
func loadConfig(command []string) (*config.Config, error) {
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	cfg, err := config.Load(configPath, explicit)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			cfg.Output = output
		case "report":
			cfg.Report = reportPath
		case "endpoint":
			cfg.Endpoint = endpoint
		case "dir":
			cfg.Dir = workDir
		case "timeout":
			cfg.Timeout = timeout
		case "readinessTimeout":
			cfg.ReadinessTimeout = readinessTimeout
		case "interactionTimeout":
			cfg.InteractionTimeout = interactionTimeout
		case "stopGracePeriod":
			cfg.StopGracePeriod = stopGracePeriod
		case "archMode":
			cfg.Architectures.Mode = synthtypes.ArchMode(archMode)
		case "arch":
			cfg.Architectures.Configured = splitList(arches)
		case "baseline":
			cfg.Baseline.Extra = splitList(baselineExtra)
		case "auditLogPaths":
			cfg.AuditLogPaths = auditLogPaths
		case "dataDir":
			cfg.DataDirectory = dataDirectory
		case "metricsAddr":
			cfg.MetricsAddr = metricsAddr
		case "auditTrail":
			cfg.AuditTrail = auditTrail
		case "strict":
			cfg.Strict = strict
		case "debug":
			cfg.Debug = debugFlag
		}
	})

	if len(command) > 0 {
		cfg.Command = command
	}

	return cfg, cfg.Validate()
}

// components are shared by every subcommand that synthesizes or verifies.
type components struct {
	resolver *syscalls.Resolver
	metrics  *metrics.MetricsModule
	trail    zerolog.Logger
}

func setupComponents(cfg *config.Config) (*components, error) {
	tables, err := cfg.Tables()
	if err != nil {
		return nil, errors.Wrap(err, "cfg.Tables()")
	}

	trail, err := audit.NewTrailLogger(cfg.AuditTrail)
	if err != nil {
		return nil, errors.Wrap(err, "audit.NewTrailLogger()")
	}

	m, err := metrics.NewMetricsModule(logger.WithName("METRICS"), cfg.MetricsAddr != "")
	if err != nil {
		return nil, errors.Wrap(err, "metrics.NewMetricsModule()")
	}
	m.Serve(cfg.MetricsAddr)

	return &components{
		resolver: syscalls.NewDefaultResolver(tables),
		metrics:  m,
		trail:    trail,
	}, nil
}

func (c *components) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.metrics.Shutdown(ctx)
}

// fatalReason names the fatal condition for the diagnostic message.
func fatalReason(err error) string {
	var launchErr *synthtypes.LaunchError
	var attachErr *synthtypes.TraceAttachError
	var writeErr *synthtypes.WriteError
	switch {
	case errors.As(err, &launchErr):
		return "the target can't be launched"
	case errors.As(err, &attachErr):
		return "the target can't be traced"
	case errors.As(err, &writeErr):
		return "the output can't be written"
	case errors.Is(err, synthtypes.ErrAborted):
		return "the session was aborted"
	case errors.Is(err, behavior.ErrProfileRejected):
		return "the profile can't be minimized"
	default:
		return "the session failed"
	}
}

// commandArgs splits the positional arguments into a subcommand and its
// arguments. Everything after -- is the command of the target.
func commandArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "", args
	}
	if i := len(os.Args) - len(args) - 1; i > 0 && os.Args[i] == "--" {
		return "", args
	}
	switch args[0] {
	case "verify", "minimize", "replay", "enforce":
		return args[0], args[1:]
	}
	return "", args
}

func runSynthesize(command []string) int {
	setupLog := logger.WithName("SETUP")

	cfg, err := loadConfig(command)
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

	session, err := behavior.NewSession(
		cfg,
		tracer.NewProcessTracer(logger.WithName("TRACER")),
		c.resolver,
		metrics.NewSessionMetrics(c.metrics),
		c.trail,
		logger.WithName("SESSION"))
	if err != nil {
		setupLog.Error(err, "behavior.NewSession()")
		return exitFatal
	}

	report, err := session.Run(ctx)
	if err != nil {
		logger.Error(err, fatalReason(err), "state", report.State)
		return exitFatal
	}

	if report.Partial && cfg.Strict {
		logger.Info("the result is partial, exit with an error in strict mode", "outcome", report.Outcome)
		return exitPartial
	}
	return exitOK
}

func main() {
	flag.StringVar(&configPath, "config", config.DefaultConfigPath, "Path to the config file. The default file is only read when it exists.")
	flag.StringVar(&output, "output", config.DefaultOutputPath, "Path of the generated seccomp profile.")
	flag.StringVar(&reportPath, "report", config.DefaultReportPath, "Path of the session report. Set it to empty to skip the report.")
	flag.StringVar(&endpoint, "endpoint", config.DefaultEndpoint, "Address (host:port) the target service listens on.")
	flag.StringVar(&workDir, "dir", "", "Working directory of the target.")
	flag.DurationVar(&timeout, "timeout", config.DefaultTimeout, "Safety timeout of the whole session. A timed-out session still writes a partial profile.")
	flag.DurationVar(&readinessTimeout, "readinessTimeout", config.DefaultReadinessTimeout, "How long to wait for the service to accept connections.")
	flag.DurationVar(&interactionTimeout, "interactionTimeout", config.DefaultInteractionTimeout, "Timeout of a single interaction.")
	flag.DurationVar(&stopGracePeriod, "stopGracePeriod", config.DefaultStopGracePeriod, "Time between SIGTERM and SIGKILL once the workload is done.")
	flag.StringVar(&archMode, "archMode", string(synthtypes.ObservedArches), "Architectures of the profile: observed or configured.")
	flag.StringVar(&arches, "arch", "", "Comma separated architectures added in configured mode, e.g. x86_64,x86,x32.")
	flag.StringVar(&baselineExtra, "baseline", "", "Comma separated syscalls always allowed in addition to the built-in baseline.")
	flag.StringVar(&auditLogPaths, "auditLogPaths", config.DefaultAuditLogPaths, "Configure the file search list to select the audit log file and read the Seccomp audit events. Please use a vertical bar to separate the file paths, the first valid file will be used to track the audit events.")
	flag.StringVar(&dataDirectory, "dataDir", config.DefaultDataDirectory, "Directory of the syscall and audit records.")
	flag.StringVar(&metricsAddr, "metricsAddr", "", "Serve the Prometheus metrics on this address. Metrics are disabled if empty.")
	flag.StringVar(&auditTrail, "auditTrail", "", "Path of the JSON audit trail with the interaction results and unresolved syscalls.")
	flag.BoolVar(&strict, "strict", false, "Exit with code 2 when the result is partial.")
	flag.StringVar(&logFormat, "logFormat", "text", "Log format (text or json). Default is text.")
	flag.IntVar(&verbosity, "v", 0, "Log verbosity level (higher value means more verbose).")
	flag.IntVar(&verbosity, "verbosity", 0, "Log verbosity level (higher value means more verbose).")
	flag.BoolVar(&versionFlag, "version", false, "Print the version information.")
	flag.BoolVar(&debugFlag, "debug", false, "Enable debug mode. The raw syscall records are kept in the data directory.")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [-- command args...]\n       %s [flags] verify|minimize|replay|enforce [subcommand flags]\n\nFlags:\n", os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if versionFlag {
		fmt.Printf("GitVersion: %s\nGitCommit: %s\nBuildDate: %s\nGoVersion: %s\n", gitVersion, gitCommit, buildDate, goVersion)
		return
	}

	setLogger()

	subcommand, args := commandArgs()
	switch subcommand {
	case "enforce":
		os.Exit(runEnforce(args))
	case "verify":
		os.Exit(runVerify(args))
	case "minimize":
		os.Exit(runMinimize(args))
	case "replay":
		os.Exit(runReplay(args))
	default:
		os.Exit(runSynthesize(args))
	}
}
