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

// Package tracer observes every syscall entry made by a process tree.
package tracer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"

	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

// Tracer launches a program and streams the syscalls of its whole process
// tree. Trace returns only once the root process is attached, so the caller
// may start driving the program right away.
type Tracer interface {
	Trace(ctx context.Context, l *Launcher) (Stream, error)
}

// Stream is a running trace.
type Stream interface {
	// Events returns the syscall entries of the tree. The channel is closed
	// once every traced process is gone.
	Events() <-chan SyscallEvent
	Done() <-chan struct{}
	Err() error
	Pid() int
	Pids() []int
	Processes() int
	Terminate()
	// Kill kills the whole tree with SIGKILL. Events that are still pending
	// after Kill() are dropped.
	Kill()
}

// ProcessTracer is the ptrace backend of Tracer.
type ProcessTracer struct {
	log logr.Logger
}

func NewProcessTracer(log logr.Logger) *ProcessTracer {
	return &ProcessTracer{
		log: log,
	}
}

type ptraceStream struct {
	pid      int
	pgid     int
	registry *Registry
	events   chan SyscallEvent
	done     chan struct{}
	killed   chan struct{}
	killOnce sync.Once
	err      error
	log      logr.Logger
}

func (tracer *ProcessTracer) Trace(ctx context.Context, l *Launcher) (Stream, error) {
	if err := CheckKernel(); err != nil {
		return nil, &synthtypes.TraceAttachError{Err: fmt.Errorf("PTRACE_GET_SYSCALL_INFO is unavailable: %w", err)}
	}

	s := ptraceStream{
		registry: newRegistry(),
		events:   make(chan SyscallEvent, eventChannelSize),
		done:     make(chan struct{}),
		killed:   make(chan struct{}),
		log:      tracer.log,
	}

	attachCh := make(chan error, 1)
	go s.trace(l, attachCh)
	if err := <-attachCh; err != nil {
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			tracer.log.V(2).Info("context done, kill the traced processes", "pid", s.pid)
			s.Kill()
		case <-s.done:
		}
	}()

	return &s, nil
}

func (s *ptraceStream) Events() <-chan SyscallEvent {
	return s.events
}

// Done is closed after Events() is closed.
func (s *ptraceStream) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the trace early. Only valid after Done().
func (s *ptraceStream) Err() error {
	return s.err
}

// Pid returns the pid of the root process.
func (s *ptraceStream) Pid() int {
	return s.pid
}

// Pids returns the pids of the live tracees.
func (s *ptraceStream) Pids() []int {
	return s.registry.Pids()
}

// Processes returns the number of processes and threads traced so far.
func (s *ptraceStream) Processes() int {
	return s.registry.Total()
}

// Terminate asks the whole tree to exit with SIGTERM.
func (s *ptraceStream) Terminate() {
	s.log.V(2).Info("terminate the traced processes", "pgid", s.pgid)
	s.signalTree(unix.SIGTERM)
}

func (s *ptraceStream) Kill() {
	s.killOnce.Do(func() {
		close(s.killed)
	})
	s.log.V(2).Info("kill the traced processes", "pgid", s.pgid)
	s.signalTree(unix.SIGKILL)
}

func (s *ptraceStream) signalTree(sig unix.Signal) {
	if s.pgid > 0 {
		unix.Kill(-s.pgid, sig)
	}
	// Descendants may have left the process group.
	for _, pid := range s.registry.Pids() {
		unix.Kill(pid, sig)
	}
}

func (s *ptraceStream) trace(l *Launcher, attachCh chan<- error) {
	// All ptrace requests must come from the thread that launched the tracee.
	// The thread is never unlocked so it exits together with the goroutine.
	runtime.LockOSThread()

	cmd, err := l.Start()
	if err != nil {
		attachCh <- err
		close(s.events)
		close(s.done)
		return
	}

	err = s.attach(cmd, l)
	if err != nil {
		cmd.Process.Kill()
		unix.Wait4(cmd.Process.Pid, nil, unix.WALL, nil)
		attachCh <- err
		close(s.events)
		close(s.done)
		return
	}
	attachCh <- nil

	s.err = s.collect()
	if s.err != nil {
		s.log.Error(s.err, "collect() failed")
		s.Kill()
		s.reap()
	}

	close(s.events)
	close(s.done)
}

func (s *ptraceStream) attach(cmd *exec.Cmd, l *Launcher) error {
	pid := cmd.Process.Pid

	var ws unix.WaitStatus
	_, err := unix.Wait4(pid, &ws, unix.WALL, nil)
	if err != nil {
		return &synthtypes.TraceAttachError{Pid: pid, Err: fmt.Errorf("Wait4() failed: %v", err)}
	}

	switch {
	case ws.Exited():
		return &synthtypes.LaunchError{Command: l.String(), Err: fmt.Errorf("the process exited with code %d before it was traced", ws.ExitStatus())}
	case ws.Signaled():
		return &synthtypes.LaunchError{Command: l.String(), Err: fmt.Errorf("the process was killed by %s before it was traced", ws.Signal())}
	case !ws.Stopped():
		return &synthtypes.TraceAttachError{Pid: pid, Err: fmt.Errorf("unexpected wait status 0x%x", uint32(ws))}
	}

	pgid, err := unix.Getpgid(pid)
	if err != nil {
		return &synthtypes.TraceAttachError{Pid: pid, Err: fmt.Errorf("Getpgid() failed: %v", err)}
	}

	err = unix.PtraceSetOptions(pid, ptraceOptions)
	if err != nil {
		return &synthtypes.TraceAttachError{Pid: pid, Err: fmt.Errorf("PtraceSetOptions() failed: %v", err)}
	}

	s.pid = pid
	s.pgid = pgid
	s.registry.addStarted(pid)

	s.log.Info("the target is attached", "pid", pid, "pgid", pgid, "command", l.String())

	return nil
}

// collect resumes the tracees until the next syscall stop and dispatches
// every stop reported by wait4 until no tracee is left.
func (s *ptraceStream) collect() error {
	resumePid := s.pid
	resumeSig := 0

	for {
		if resumePid > 0 {
			err := unix.PtraceSyscall(resumePid, resumeSig)
			if err != nil && !errors.Is(err, unix.ESRCH) {
				s.log.V(2).Info("PtraceSyscall() failed", "pid", resumePid, "signal", resumeSig, "error", err)
			}
		}
		resumePid = 0
		resumeSig = 0

		var ws unix.WaitStatus
		wpid, err := unix.Wait4(-1, &ws, unix.WALL, nil)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.ECHILD) {
				s.log.V(2).Info("no tracee left")
				return nil
			}
			return fmt.Errorf("Wait4() failed: %v", err)
		}

		switch {
		case ws.Exited(), ws.Signaled():
			s.registry.remove(wpid)
			s.log.V(3).Info("tracee exited", "pid", wpid, "status", ws.ExitStatus())
			if s.registry.Len() == 0 {
				s.log.V(2).Info("all traced processes exited")
				return nil
			}

		case ws.Stopped():
			resumePid = wpid
			stopSig := ws.StopSignal()

			switch {
			case stopSig == unix.SIGTRAP|traceSysGoodStatusBit:
				s.onSyscallStop(wpid)
			case stopSig == unix.SIGTRAP && ws.TrapCause() > 0:
				s.onEventStop(wpid, ws.TrapCause())
			case stopSig == unix.SIGSTOP && s.registry.firstStop(wpid):
				s.log.V(3).Info("new tracee", "pid", wpid)
			default:
				// Signal-delivery-stop, hand the signal over to the tracee.
				resumeSig = int(stopSig)
			}
		}
	}
}

func (s *ptraceStream) onSyscallStop(pid int) {
	info, err := getSyscallInfo(pid)
	if err != nil {
		s.log.V(2).Info("getSyscallInfo() failed", "pid", pid, "error", err)
		return
	}
	if info.Op != syscallInfoEntry {
		return
	}

	s.send(SyscallEvent{
		Pid:       pid,
		AuditArch: info.Arch,
		Nr:        info.Nr,
	})
}

func (s *ptraceStream) onEventStop(pid int, cause int) {
	switch cause {
	case unix.PTRACE_EVENT_FORK, unix.PTRACE_EVENT_VFORK, unix.PTRACE_EVENT_CLONE:
		child, err := unix.PtraceGetEventMsg(pid)
		if err != nil {
			s.log.V(2).Info("PtraceGetEventMsg() failed", "pid", pid, "error", err)
			return
		}
		s.registry.addChild(int(child))
		s.log.V(3).Info("tracee forked", "pid", pid, "child", child)

	case unix.PTRACE_EVENT_EXEC:
		// A non-leader thread that execs takes over the pid of the leader and
		// its former tid vanishes without an exit notification.
		former, err := unix.PtraceGetEventMsg(pid)
		if err == nil && int(former) != pid {
			s.registry.remove(int(former))
		}
		s.log.V(3).Info("tracee executed a new program", "pid", pid)

	case unix.PTRACE_EVENT_EXIT:
		s.registry.markExiting(pid)
		s.log.V(3).Info("tracee is exiting", "pid", pid)
	}
}

func (s *ptraceStream) send(event SyscallEvent) {
	select {
	case s.events <- event:
	case <-s.killed:
	}
}

// reap waits for the remaining tracees after they were killed.
func (s *ptraceStream) reap() {
	for s.registry.Len() > 0 {
		var ws unix.WaitStatus
		wpid, err := unix.Wait4(-1, &ws, unix.WALL, nil)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return
		}
		if ws.Exited() || ws.Signaled() {
			s.registry.remove(wpid)
		}
	}
}
