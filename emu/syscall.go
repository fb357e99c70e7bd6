package emu

// SyscallResult is what a SyscallHandler returns after handling a SYSCALL
// instruction.
type SyscallResult struct {
	// Exit is true if the handler wants Run to stop (e.g. exit/exit_group).
	Exit bool
	// ExitCode is only meaningful when Exit is true.
	ExitCode int
}

// SyscallHandler services guest SYSCALL instructions. emu knows nothing
// about Linux syscall numbers or ABI tables — that catalog lives in
// driver — it only knows that a SYSCALL needs *some* handler installed, or
// it faults with UnimplementedSyscall.
type SyscallHandler interface {
	Handle(cpu *CPU) SyscallResult
}

func (c *CPU) doSyscall() error {
	if c.syscallHandler == nil {
		return newFault(UnimplementedSyscall, "no syscall handler installed", c.PC)
	}
	res := c.syscallHandler.Handle(c)
	if res.Exit {
		c.exited = true
		c.exitCode = res.ExitCode
		c.MaxCounter = 0
	}
	return nil
}
