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

package tracer

import (
	"sort"
	"sync"
)

type tracee struct {
	// started is false for an auto-attached child until its initial SIGSTOP
	// has been swallowed
	started bool
	exiting bool
}

// Registry is the set of live tracees, the root process and all of its
// descendants. It is written by the tracer thread and read by Kill().
type Registry struct {
	mu      sync.Mutex
	tracees map[int]*tracee
	total   int
}

func newRegistry() *Registry {
	return &Registry{
		tracees: make(map[int]*tracee),
	}
}

func (r *Registry) addStarted(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tracees[pid]; ok {
		t.started = true
		return
	}
	r.tracees[pid] = &tracee{started: true}
	r.total++
}

func (r *Registry) addChild(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tracees[pid]; ok {
		return
	}
	r.tracees[pid] = &tracee{}
	r.total++
}

// firstStop reports whether a SIGSTOP of the pid is the attach stop of a new
// tracee. The child may report before its parent's fork event.
func (r *Registry) firstStop(pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tracees[pid]
	if !ok {
		r.tracees[pid] = &tracee{started: true}
		r.total++
		return true
	}
	if !t.started {
		t.started = true
		return true
	}
	return false
}

func (r *Registry) markExiting(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tracees[pid]; ok {
		t.exiting = true
	}
}

func (r *Registry) remove(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tracees, pid)
}

// Len returns the number of live tracees.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.tracees)
}

// Total returns the number of processes and threads traced so far.
func (r *Registry) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.total
}

// Pids returns the live tracees, sorted.
func (r *Registry) Pids() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	pids := make([]int, 0, len(r.tracees))
	for pid := range r.tracees {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids
}
