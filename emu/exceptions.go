package emu

import "fmt"

// FaultKind enumerates the fault categories the core can raise, matching the
// failure model table: illegal-opcode, protection-fault,
// execution-space-protection-fault, misaligned-instruction,
// machine-timeout, guest-abort, unimplemented-syscall, out-of-memory.
type FaultKind int

const (
	IllegalOpcode FaultKind = iota
	ProtectionFault
	ExecutionSpaceFault
	MisalignedInstruction
	MachineTimeout
	GuestAbort
	UnimplementedSyscall
	OutOfMemory
)

func (k FaultKind) String() string {
	switch k {
	case IllegalOpcode:
		return "illegal-opcode"
	case ProtectionFault:
		return "protection-fault"
	case ExecutionSpaceFault:
		return "execution-space-protection-fault"
	case MisalignedInstruction:
		return "misaligned-instruction"
	case MachineTimeout:
		return "machine-timeout"
	case GuestAbort:
		return "guest-abort"
	case UnimplementedSyscall:
		return "unimplemented-syscall"
	case OutOfMemory:
		return "out-of-memory"
	default:
		return "unknown-fault"
	}
}

// Fault is the single error type the core raises. It carries the fault
// kind, a human-readable message, and the auxiliary address most faults
// are tied to (the faulting PC, the offending memory address, and so on).
//
// Unlike the C++ original, which offers a throw-or-store-and-rethrow
// choice because some host languages lack cheap unwinding, Go's error
// return values are already the cheap path: every faulting function
// simply returns a *Fault, and callers propagate it as any other error.
// There is no pending-exception slot on the CPU or Machine.
type Fault struct {
	Kind    FaultKind
	Message string
	Aux     uint64
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s (addr=0x%x)", f.Kind, f.Message, f.Aux)
}

func newFault(kind FaultKind, msg string, aux uint64) *Fault {
	return &Fault{Kind: kind, Message: msg, Aux: aux}
}
