package driver

import (
	"github.com/larunner/la64vm/emu"
)

// Linux auxv tags, the subset a static LA64 binary's startup code reads.
const (
	atNull     = 0
	atPhdr     = 3
	atPhent    = 4
	atPhnum    = 5
	atPagesz   = 6
	atBase     = 7
	atEntry    = 9
	atUid      = 11
	atEuid     = 12
	atGid      = 13
	atEgid     = 14
	atHwcap    = 16
	atClktck   = 17
	atRandom   = 25
)

// setupStack lays out the initial guest stack exactly as the Linux kernel
// does for execve: from the top of the stack region, descending,
//
//	[padding for 16-byte alignment]
//	AT_NULL auxv entry
//	... auxv entries (tag, value) pairs ...
//	NULL
//	envp pointers
//	NULL
//	argv pointers
//	argc
//	<- SP
//
// with the argv/envp strings themselves, plus 16 random bytes for
// AT_RANDOM, written first as raw bytes at the top of the stack, above
// these tables. The LA64 C ABI requires SP to
// be 16-byte aligned at a function's entry point, which a kernel-started
// process satisfies by construction; this loader does the same.
func setupStack(mem *emu.Memory, argv, envp []string, phdrAddr, entry uint64, phentsize, phnum uint16) error {
	top := mem.StackAddress

	writeString := func(s string) (uint64, error) {
		b := append([]byte(s), 0)
		top -= uint64(len(b))
		if err := mem.CopyToGuest(top, b); err != nil {
			return 0, err
		}
		return top, nil
	}

	argvAddrs := make([]uint64, len(argv))
	for i, s := range argv {
		addr, err := writeString(s)
		if err != nil {
			return err
		}
		argvAddrs[i] = addr
	}
	envpAddrs := make([]uint64, len(envp))
	for i, s := range envp {
		addr, err := writeString(s)
		if err != nil {
			return err
		}
		envpAddrs[i] = addr
	}

	randomBytes := []byte{
		0xde, 0xad, 0xbe, 0xef, 0xca, 0xfe, 0xba, 0xbe,
		0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef,
	}
	top -= 16
	randomAddr := top
	if err := mem.CopyToGuest(randomAddr, randomBytes); err != nil {
		return err
	}

	type auxEntry struct{ tag, val uint64 }
	auxv := []auxEntry{
		{atPhdr, phdrAddr},
		{atPhent, uint64(phentsize)},
		{atPhnum, uint64(phnum)},
		{atPagesz, 4096},
		{atBase, 0},
		{atEntry, entry},
		{atUid, 0},
		{atEuid, 0},
		{atGid, 0},
		{atEgid, 0},
		{atHwcap, 0},
		{atClktck, 100},
		{atRandom, randomAddr},
		{atNull, 0},
	}

	// Everything below here is pointer-sized (8 bytes); align top to 16
	// before laying out argc/argv/envp/auxv so SP ends up 16-byte aligned.
	top &^= 0xf

	words := 1 + len(argvAddrs) + 1 + len(envpAddrs) + 1 + len(auxv)*2
	if words%2 != 0 {
		top -= 8
	}

	push := func(v uint64) error {
		top -= 8
		return mem.Write64(top, v)
	}

	for i := len(auxv) - 1; i >= 0; i-- {
		if err := push(auxv[i].val); err != nil {
			return err
		}
		if err := push(auxv[i].tag); err != nil {
			return err
		}
	}
	if err := push(0); err != nil { // envp NULL terminator
		return err
	}
	for i := len(envpAddrs) - 1; i >= 0; i-- {
		if err := push(envpAddrs[i]); err != nil {
			return err
		}
	}
	if err := push(0); err != nil { // argv NULL terminator
		return err
	}
	for i := len(argvAddrs) - 1; i >= 0; i-- {
		if err := push(argvAddrs[i]); err != nil {
			return err
		}
	}
	if err := push(uint64(len(argv))); err != nil { // argc
		return err
	}

	mem.StackAddress = top
	return nil
}
