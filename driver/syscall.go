// Package driver provides OS service emulation for LA64 Linux programs: the
// syscall table a guest's SYSCALL instruction dispatches into, ELF loading,
// and the host-facing Machine that ties a CPU and Memory together.
package driver

import (
	"io"
	"os"

	"github.com/larunner/la64vm/emu"
)

// LA64 Linux uses the generic syscall ABI (asm-generic/unistd.h), the same
// numbering RISC-V and most newer architectures share.
const (
	SyscallRead          = 63
	SyscallWrite         = 64
	SyscallWritev        = 66
	SyscallClose         = 57
	SyscallFstat         = 80
	SyscallExit          = 93
	SyscallExitGroup     = 94
	SyscallSetTidAddress = 96
	SyscallBrk           = 214
	SyscallMunmap        = 215
	SyscallMmap          = 222
)

// Linux error codes, negated and returned in A0 on failure.
const (
	EBADF  = 9
	EIO    = 5
	ENOSYS = 38
	ENOMEM = 12
)

// syscallTableSize mirrors spec's choice to size the table per-Machine
// rather than share one process-wide table across Machines.
const syscallTableSize = 512

// iovec mirrors the Linux struct iovec layout for readv/writev.
type iovec struct {
	Base uint64
	Len  uint64
}

// SyscallFunc handles one syscall number. It reads arguments from
// m.CPU()'s A0-A6, does its work against m.Memory(), and writes a result
// (or −errno) back into A0. Exit is requested via Machine.requestExit,
// not a return value — SYSCALL has no return-to-caller distinction at
// this layer, matching the ABI's own (A7=number, A0=result) shape.
type SyscallFunc func(*Machine)

// SyscallTable is a fixed 512-entry syscall dispatch table, one per
// Machine: spec.md scopes the table to the Machine instance specifically
// to avoid one guest's installed handler leaking into another Machine's
// table.
type SyscallTable struct {
	fns    [syscallTableSize]SyscallFunc
	stdout io.Writer
	stderr io.Writer
}

// Option configures a SyscallTable.
type Option func(*SyscallTable)

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) Option { return func(t *SyscallTable) { t.stdout = w } }

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) Option { return func(t *SyscallTable) { t.stderr = w } }

// DefaultSyscalls builds the syscall table a typical statically-linked
// Linux guest needs to reach exit: file descriptor I/O, brk-based heap
// growth, and the mmap/munmap pair startup code probes for TLS and
// thread-stack setup.
func DefaultSyscalls(opts ...Option) *SyscallTable {
	t := &SyscallTable{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(t)
	}
	t.Install(SyscallExit, handleExit)
	t.Install(SyscallExitGroup, handleExit)
	t.Install(SyscallWrite, handleWrite)
	t.Install(SyscallRead, handleRead)
	t.Install(SyscallWritev, handleWritev)
	t.Install(SyscallBrk, handleBrk)
	t.Install(SyscallMmap, handleMmap)
	t.Install(SyscallMunmap, handleMunmap)
	t.Install(SyscallClose, func(m *Machine) { m.CPU().SetReg(emu.RegA0, 0) })
	t.Install(SyscallSetTidAddress, func(m *Machine) { m.CPU().SetReg(emu.RegA0, 1) })
	t.Install(SyscallFstat, func(m *Machine) { setError(m, ENOSYS) })
	return t
}

// Install registers fn as the handler for syscall number nr, overwriting
// any previous handler (including a default one).
func (t *SyscallTable) Install(nr int, fn SyscallFunc) {
	t.fns[nr%syscallTableSize] = fn
}

// dispatch runs the handler for m.CPU()'s A7. If none is installed it
// writes -ENOSYS to A0 and returns; no fault is raised.
func (t *SyscallTable) dispatch(m *Machine) {
	nr := int(m.CPU().Reg(emu.RegA7))
	if nr < 0 || nr >= syscallTableSize || t.fns[nr] == nil {
		setError(m, ENOSYS)
		return
	}
	t.fns[nr](m)
}

func handleExit(m *Machine) {
	m.requestExit(int(int64(m.CPU().Reg(emu.RegA0))))
}

func handleWrite(m *Machine) {
	cpu := m.CPU()
	fd := cpu.Reg(emu.RegA0)
	bufPtr := cpu.Reg(emu.RegA1)
	count := cpu.Reg(emu.RegA2)

	w := m.syscalls.writerFor(fd)
	if w == nil {
		setError(m, EBADF)
		return
	}
	buf := make([]byte, count)
	if err := cpu.Mem.CopyFromGuest(buf, bufPtr); err != nil {
		setError(m, EIO)
		return
	}
	n, err := w.Write(buf)
	if err != nil {
		setError(m, EIO)
		return
	}
	cpu.SetReg(emu.RegA0, uint64(n))
}

func handleRead(m *Machine) {
	cpu := m.CPU()
	fd := cpu.Reg(emu.RegA0)
	bufPtr := cpu.Reg(emu.RegA1)
	count := cpu.Reg(emu.RegA2)

	if fd != 0 {
		setError(m, EBADF)
		return
	}
	buf := make([]byte, count)
	n, err := os.Stdin.Read(buf)
	if err != nil && n == 0 {
		cpu.SetReg(emu.RegA0, 0)
		return
	}
	if err := cpu.Mem.CopyToGuest(bufPtr, buf[:n]); err != nil {
		setError(m, EIO)
		return
	}
	cpu.SetReg(emu.RegA0, uint64(n))
}

func handleWritev(m *Machine) {
	cpu := m.CPU()
	fd := cpu.Reg(emu.RegA0)
	iovAddr := cpu.Reg(emu.RegA1)
	iovCount := int(cpu.Reg(emu.RegA2))

	w := m.syscalls.writerFor(fd)
	if w == nil {
		setError(m, EBADF)
		return
	}
	iovs, err := emu.Memarray[iovec](cpu.Mem, iovAddr, iovCount)
	if err != nil {
		setError(m, EIO)
		return
	}
	var total uint64
	for _, iov := range iovs {
		buf := make([]byte, iov.Len)
		if err := cpu.Mem.CopyFromGuest(buf, iov.Base); err != nil {
			setError(m, EIO)
			return
		}
		n, err := w.Write(buf)
		if err != nil {
			setError(m, EIO)
			return
		}
		total += uint64(n)
	}
	cpu.SetReg(emu.RegA0, total)
}

func handleBrk(m *Machine) {
	cpu := m.CPU()
	cpu.SetReg(emu.RegA0, cpu.Mem.Brk(cpu.Reg(emu.RegA0)))
}

func handleMmap(m *Machine) {
	cpu := m.CPU()
	length := cpu.Reg(emu.RegA1)
	addr, err := cpu.Mem.MmapAllocate(length)
	if err != nil {
		setError(m, ENOMEM)
		return
	}
	cpu.SetReg(emu.RegA0, addr)
}

func handleMunmap(m *Machine) {
	// The arena's mmap region is a bump allocator with no free list;
	// munmap is accepted and ignored.
	m.CPU().SetReg(emu.RegA0, 0)
}

func (t *SyscallTable) writerFor(fd uint64) io.Writer {
	switch fd {
	case 1:
		return t.stdout
	case 2:
		return t.stderr
	default:
		return nil
	}
}

func setError(m *Machine, errno int) {
	m.CPU().SetReg(emu.RegA0, uint64(-int64(errno)))
}
