package trace

import (
	"github.com/ripwire-labs/procsnap/internal/errkind"
	"golang.org/x/sys/unix"
)

// ReadMemory reads n bytes from the target's address space starting at
// addr. It is legal only in STOPPED. The bulk process_vm_readv(2) path is
// tried first; if it transfers fewer bytes than requested (the transfer
// stopped at an unmapped or unreadable page) the remainder is retried
// word-by-word via PTRACE_PEEKDATA, which PtracePeekData already does
// internally. Whatever was successfully read is always returned alongside
// the error, so a caller can keep a partial region dump.
func (c *Controller) ReadMemory(addr uint64, n int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStopped {
		return nil, c.invalidState("readMemory")
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	got, _ := processVMReadv(c.pid, addr, buf)
	if got == n {
		return buf, nil
	}
	rest := buf[got:]
	peeked, err := unix.PtracePeekData(c.pid, uintptr(addr)+uintptr(got), rest)
	total := got + peeked
	if err != nil || peeked < len(rest) {
		return buf[:total], errkind.MemoryReadFailed(addr+uint64(total), uint64(n-total), err)
	}
	return buf, nil
}

// WriteMemory writes bytes to the target's address space starting at addr.
// It is legal only in STOPPED. Bulk process_vm_writev(2) is tried first;
// any remainder is retried word-by-word via PTRACE_POKEDATA.
func (c *Controller) WriteMemory(addr uint64, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStopped {
		return c.invalidState("writeMemory")
	}
	if len(data) == 0 {
		return nil
	}
	wrote, _ := processVMWritev(c.pid, addr, data)
	if wrote == len(data) {
		return nil
	}
	rest := data[wrote:]
	poked, err := unix.PtracePokeData(c.pid, uintptr(addr)+uintptr(wrote), rest)
	total := wrote + poked
	if err != nil || poked < len(rest) {
		return errkind.MemoryWriteFailed(addr+uint64(total), uint64(len(data)-total), err)
	}
	return nil
}

// processVMReadv performs a single process_vm_readv(2) call copying from
// the target's address space addr into buf. It returns the number of bytes
// actually transferred, which the kernel reports even on a partial
// transfer that stopped at a page it could not read.
func processVMReadv(pid int, addr uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	local := unix.Iovec{Base: &buf[0]}
	local.SetLen(len(buf))
	remote := unix.RemoteIovec{Base: uintptr(addr), Len: len(buf)}
	return unix.ProcessVMReadv(pid, []unix.Iovec{local}, []unix.RemoteIovec{remote}, 0)
}

// processVMWritev performs a single process_vm_writev(2) call copying data
// into the target's address space starting at addr.
func processVMWritev(pid int, addr uint64, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	local := unix.Iovec{Base: &data[0]}
	local.SetLen(len(data))
	remote := unix.RemoteIovec{Base: uintptr(addr), Len: len(data)}
	return unix.ProcessVMWritev(pid, []unix.Iovec{local}, []unix.RemoteIovec{remote}, 0)
}
