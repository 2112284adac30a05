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

package synthesizer

import (
	"slices"

	"github.com/opencontainers/runtime-spec/specs-go"
)

// Policy is the synthesized, immutable result of a session.
type Policy struct {
	defaultAction specs.LinuxSeccompAction
	architectures []specs.Arch
	allowList     []string
}

func (p *Policy) DefaultAction() specs.LinuxSeccompAction {
	return p.defaultAction
}

// Architectures returns a sorted copy of the architecture tags.
func (p *Policy) Architectures() []specs.Arch {
	return slices.Clone(p.architectures)
}

// AllowList returns a sorted copy of the allowed syscall names.
func (p *Policy) AllowList() []string {
	return slices.Clone(p.allowList)
}

func (p *Policy) Allows(name string) bool {
	_, found := slices.BinarySearch(p.allowList, name)
	return found
}
