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
	"time"

	"github.com/bytedance/seccompsynth/internal/behavior/recorder"
	sessiontypes "github.com/bytedance/seccompsynth/internal/types"
)

// Replay synthesizes the profile again from the syscall record of an earlier
// session. Nothing is launched.
func (s *Session) Replay(recordPath string) (*sessiontypes.SessionReport, error) {
	report := &sessiontypes.SessionReport{
		Command:    s.cfg.Command,
		State:      sessiontypes.Created,
		StartTime:  time.Now(),
		RecordPath: recordPath,
	}

	events, err := recorder.ReadSyscallRecords(recordPath)
	if err != nil {
		s.fail(report, err)
		return report, err
	}

	s.log.Info("replay the syscall record", "path", recordPath, "events", len(events))
	for _, event := range events {
		s.collector.Collect(event)
	}
	report.EventCount = s.collector.Events()

	return report, s.finalize(report)
}
