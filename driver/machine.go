package driver

import (
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/larunner/la64vm/emu"
)

// Machine ties a CPU, a Memory arena and a SyscallTable together into the
// host-facing object a test or a standalone runner actually drives. It is
// always single-threaded: the only resource it shares with other Machines
// is the process-wide SharedSegmentCache (shared_cache.go).
type Machine struct {
	cpu      *emu.CPU
	mem      *emu.Memory
	syscalls *SyscallTable

	exitAddress uint64
	exited      bool
	exitCode    int

	phdrAddr           uint64
	phentsize, phnum   uint16
}

// MachineOption configures a Machine at construction time.
type MachineOption func(*machineConfig)

type machineConfig struct {
	heapPad  uint64
	mmapSize uint64
	stackLen uint64
	syscalls *SyscallTable
	trace    io.Writer
}

// WithHeapPad sets how many bytes of padding the loader inserts between the
// highest loaded address and the start of the heap/mmap regions. Defaults
// to 1 MiB.
func WithHeapPad(n uint64) MachineOption {
	return func(c *machineConfig) { c.heapPad = n }
}

// WithMmapSize sets the size of the bump-allocated mmap/stack region.
// Defaults to 16 MiB.
func WithMmapSize(n uint64) MachineOption {
	return func(c *machineConfig) { c.mmapSize = n }
}

// WithStackSize records a stack size (default 1 MiB), but New never reads
// it: no bytes are reserved for the stack. The initial stack always starts
// 16 bytes below the arena top, inside the mmap region, and mmap
// allocations do not avoid it.
func WithStackSize(n uint64) MachineOption {
	return func(c *machineConfig) { c.stackLen = n }
}

// WithSyscalls installs a caller-built syscall table instead of
// DefaultSyscalls().
func WithSyscalls(t *SyscallTable) MachineOption {
	return func(c *machineConfig) { c.syscalls = t }
}

// WithTrace makes the Machine's CPU write one line per retired instruction
// to w.
func WithTrace(w io.Writer) MachineOption {
	return func(c *machineConfig) { c.trace = w }
}

// New parses elf, lays out the guest arena, and returns a Machine with its
// CPU positioned at the entry point. SetupLinux must be called before
// Simulate for a normal Linux-style guest (it builds argv/envp/auxv on the
// stack); Vmcall/Preempt callers that never touch argv/envp may skip it.
func New(elfData []byte, opts ...MachineOption) (*Machine, error) {
	cfg := machineConfig{
		heapPad:  1 << 20,
		mmapSize: 16 << 20,
		stackLen: 1 << 20,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	res, err := LoadELF(elfData, cfg.heapPad, cfg.mmapSize)
	if err != nil {
		return nil, err
	}

	mem := emu.NewMemory(res.ArenaSize, res.RodataStart, res.DataStart, res.HeapAddress, res.MmapAddress)
	mem.EntryAddress = res.Entry
	mem.ElfPhdrAddr = res.PhdrAddr
	mem.ElfPhentsize = res.Phentsize
	mem.ElfPhnum = res.Phnum
	mem.StackAddress = res.ArenaSize - 16 // leave room for the guard region
	mem.SetSymbols(emu.NewSymbolTable(res.Symbols))

	for _, seg := range res.Loadable {
		if err := mem.CopyToGuest(seg.VirtAddr, seg.Data); err != nil {
			return nil, fmt.Errorf("driver: place PT_LOAD segment at %#x: %w", seg.VirtAddr, err)
		}
		if seg.Execute {
			execSeg := globalSegmentCache.GetOrBuild(seg.VirtAddr, contentHash(seg.Data), res.ArenaSize, seg.Data)
			mem.RegisterExecSegment(execSeg)
		}
	}

	syscalls := cfg.syscalls
	if syscalls == nil {
		syscalls = DefaultSyscalls()
	}

	m := &Machine{
		mem:       mem,
		syscalls:  syscalls,
		phdrAddr:  res.PhdrAddr,
		phentsize: res.Phentsize,
		phnum:     res.Phnum,
	}
	// ExitAddress is an address the guest can never legitimately branch to
	// on its own (it lies in the guard bytes past ArenaSize, outside every
	// execute segment): CPU.Run returns as soon as
	// PC reaches it, which is how Vmcall/Preempt recognize "the called
	// function returned".
	mem.ExitAddress = res.ArenaSize + 32
	m.exitAddress = mem.ExitAddress

	cpuOpts := []emu.CPUOption{emu.WithSyscallHandler(m)}
	if cfg.trace != nil {
		cpuOpts = append(cpuOpts, emu.WithTrace(cfg.trace))
	}
	m.cpu = emu.NewCPU(mem, cpuOpts...)
	return m, nil
}

// SetupLinux lays out argv/envp/auxv on the initial stack the way the
// Linux kernel does for execve, and resets SP to the result.
func (m *Machine) SetupLinux(argv, envp []string) error {
	return setupStack(m.mem, argv, envp, m.phdrAddr, m.mem.EntryAddress, m.phentsize, m.phnum)
}

// InstallSyscallHandler overrides the handler for syscall number nr.
func (m *Machine) InstallSyscallHandler(nr int, fn SyscallFunc) {
	m.syscalls.Install(nr, fn)
}

// Simulate runs the guest starting from its current PC for up to
// maxInstructions, returning true if a syscall handler requested exit.
// Consecutive calls resume exactly where the previous one left off: PC and
// SP are only ever set by New/SetupLinux, never reset here, so
// Simulate(n) followed by Simulate(m) observes the same end state as one
// Simulate(n+m) call.
func (m *Machine) Simulate(maxInstructions uint64) (bool, error) {
	return m.cpu.Run(maxInstructions)
}

// Handle implements emu.SyscallHandler by dispatching into the installed
// SyscallTable and translating a requested exit into emu.SyscallResult.
func (m *Machine) Handle(cpu *emu.CPU) emu.SyscallResult {
	m.exited = false
	m.syscalls.dispatch(m)
	if m.exited {
		return emu.SyscallResult{Exit: true, ExitCode: m.exitCode}
	}
	return emu.SyscallResult{}
}

func (m *Machine) requestExit(code int) {
	m.exited = true
	m.exitCode = code
}

// Memory returns the guest memory arena.
func (m *Machine) Memory() *emu.Memory { return m.mem }

// CPU returns the underlying CPU.
func (m *Machine) CPU() *emu.CPU { return m.cpu }

// AddressOf resolves a symbol name to its address, or 0 if unknown.
func (m *Machine) AddressOf(symbol string) uint64 { return m.mem.AddressOf(symbol) }

// LookupSymbol finds the symbol containing addr.
func (m *Machine) LookupSymbol(addr uint64) (*emu.Symbol, error) {
	s, ok := m.mem.LookupSymbol(addr)
	if !ok {
		return nil, fmt.Errorf("driver: no symbol contains address %#x", addr)
	}
	return s, nil
}

// Vmcall invokes a guest function by address or symbol name, marshalling
// args per the LA64 C ABI, and runs until it returns (PC reaches the
// registered exit address) with no instruction budget — RunInaccurate,
// per §4.3's inaccurate mode.
func (m *Machine) Vmcall(fn any, args ...any) (uint64, error) {
	target, err := m.resolveCallTarget(fn)
	if err != nil {
		return 0, err
	}
	if err := m.marshalCall(target, args); err != nil {
		return 0, err
	}
	if err := m.cpu.RunInaccurate(); err != nil {
		return 0, err
	}
	return m.cpu.Reg(emu.RegA0), nil
}

// Preempt is Vmcall with a counter budget: exhausting it raises
// MachineTimeout instead of letting the call run forever.
func (m *Machine) Preempt(budget uint64, fn any, args ...any) (uint64, error) {
	target, err := m.resolveCallTarget(fn)
	if err != nil {
		return 0, err
	}
	if err := m.marshalCall(target, args); err != nil {
		return 0, err
	}
	stopped, err := m.cpu.Run(budget)
	if err != nil {
		return 0, err
	}
	if !stopped {
		return 0, &emu.Fault{Kind: emu.MachineTimeout, Message: "preempted call exceeded its instruction budget", Aux: m.cpu.PC}
	}
	return m.cpu.Reg(emu.RegA0), nil
}

func (m *Machine) resolveCallTarget(fn any) (uint64, error) {
	switch v := fn.(type) {
	case uint64:
		return v, nil
	case string:
		addr := m.mem.AddressOf(v)
		if addr == 0 {
			return 0, fmt.Errorf("driver: unknown symbol %q", v)
		}
		return addr, nil
	default:
		return 0, fmt.Errorf("driver: Vmcall target must be a uint64 address or a symbol name, got %T", fn)
	}
}

// marshalCall implements the LA64 C ABI argument convention: the first 8
// integer/pointer-shaped args go in A0-A7, the first 8 float args in
// FA0-FA7 (aliases of the low lanes of V0-V7), and anything beyond that
// is pushed onto a 16-byte-aligned stack frame below SP. String and []byte
// arguments are copied below SP and their address is passed as an integer
// argument. Struct arguments are not supported and return an error. RA is
// set to the registered exit address and PC to target before returning.
func (m *Machine) marshalCall(target uint64, args []any) error {
	var intArgs, floatArgs int
	sp := m.mem.StackAddress

	// First pass: place strings/byte-slices in guest memory below SP,
	// since their addresses are what actually goes into a register.
	resolved := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case string:
			b := append([]byte(v), 0)
			sp -= uint64(len(b))
			if err := m.mem.CopyToGuest(sp, b); err != nil {
				return err
			}
			resolved[i] = sp
		case []byte:
			sp -= uint64(len(v))
			if err := m.mem.CopyToGuest(sp, v); err != nil {
				return err
			}
			resolved[i] = sp
		default:
			resolved[i] = a
		}
	}
	sp &^= 0xf // re-align after pushing strings

	for _, a := range resolved {
		rv := reflect.ValueOf(a)
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			if floatArgs < 8 {
				m.cpu.SetFReg64(uint32(floatArgs), rv.Float())
				floatArgs++
			} else {
				sp -= 8
				if err := m.mem.Write64(sp, math.Float64bits(rv.Float())); err != nil {
					return err
				}
			}
		default:
			var asUint uint64
			switch rv.Kind() {
			case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
				asUint = rv.Uint()
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				asUint = uint64(rv.Int())
			default:
				return fmt.Errorf("driver: unsupported Vmcall argument type %T", a)
			}
			if intArgs < 8 {
				m.cpu.SetReg(emu.RegA0+uint32(intArgs), asUint)
				intArgs++
			} else {
				sp -= 8
				if err := m.mem.Write64(sp, asUint); err != nil {
					return err
				}
			}
		}
	}

	sp &^= 0xf
	m.cpu.SetReg(emu.RegSP, sp)
	m.cpu.SetReg(emu.RegRA, m.exitAddress)
	m.cpu.PC = target
	return nil
}

// contentHash is a cheap, non-cryptographic hash used only to key the
// shared execute-segment cache, alongside (begin, arenaSize). The cache
// does not compare the bytes themselves, so two different images with the
// same begin, arenaSize and hash share one decoded segment.
func contentHash(b []byte) uint64 {
	var h uint64 = 14695981039346656037
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}
