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

package workload

import (
	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

// Report collects the outcome of every interaction, in order.
type Report struct {
	Ready          bool
	ReadinessError string
	Results        []synthtypes.InteractionResult
}

// Failed reports whether the service was unreachable or any interaction
// failed.
func (r *Report) Failed() bool {
	if !r.Ready {
		return true
	}
	for _, result := range r.Results {
		if !result.Succeeded {
			return true
		}
	}
	return false
}

// Succeeded returns the number of successful interactions.
func (r *Report) Succeeded() int {
	n := 0
	for _, result := range r.Results {
		if result.Succeeded {
			n++
		}
	}
	return n
}
