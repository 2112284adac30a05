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

package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

// SessionMetrics are the counters of a trace session.
type SessionMetrics struct {
	syscallEvents    metric.Int64Counter
	syscallsObserved metric.Int64Counter
	unresolved       metric.Int64Counter
	interactions     metric.Int64Counter
	processes        metric.Int64Counter
}

func NewSessionMetrics(m *MetricsModule) *SessionMetrics {
	return &SessionMetrics{
		syscallEvents:    m.RegisterInt64Counter("seccompsynth_syscall_events", "Number of syscall entries observed"),
		syscallsObserved: m.RegisterInt64Counter("seccompsynth_syscalls_observed", "Number of unique syscalls added to the profile"),
		unresolved:       m.RegisterInt64Counter("seccompsynth_unresolved_syscalls", "Number of syscall entries whose number could not be resolved"),
		interactions:     m.RegisterInt64Counter("seccompsynth_interactions", "Number of workload interactions by result"),
		processes:        m.RegisterInt64Counter("seccompsynth_processes_traced", "Number of processes and threads traced"),
	}
}

func archAttr(arch string) metric.AddOption {
	return metric.WithAttributeSet(attribute.NewSet(attribute.String("arch", arch)))
}

func (s *SessionMetrics) SyscallEvent(arch string) {
	s.syscallEvents.Add(context.Background(), 1, archAttr(arch))
}

func (s *SessionMetrics) SyscallObserved(arch string) {
	s.syscallsObserved.Add(context.Background(), 1, archAttr(arch))
}

func (s *SessionMetrics) Unresolved(arch string) {
	s.unresolved.Add(context.Background(), 1, archAttr(arch))
}

func (s *SessionMetrics) Interaction(result synthtypes.InteractionResult) {
	r := "failed"
	switch {
	case !result.Attempted:
		r = "skipped"
	case result.Succeeded:
		r = "succeeded"
	}
	labels := []attribute.KeyValue{
		attribute.String("kind", string(result.Kind)),
		attribute.String("result", r),
	}
	s.interactions.Add(context.Background(), 1, metric.WithAttributeSet(attribute.NewSet(labels...)))
}

func (s *SessionMetrics) ProcessesTraced(n int) {
	s.processes.Add(context.Background(), int64(n))
}
