//go:build linux

package xdpsock

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/penguintechinc/xdpcore/xdpabi"
)

// sysKernel is the production kernel, issuing real AF_XDP syscalls via
// golang.org/x/sys/unix. golang.org/x/sys/unix does not yet expose
// AF_XDP-shaped setsockopt/getsockopt/bind helpers, so those three go
// straight through unix.Syscall/Syscall6 using the raw xdpabi record
// layouts; everything else (socket, mmap, munmap, close) has a proper
// wrapper already.
type sysKernel struct{}

func (sysKernel) socket() (int, error) {
	return unix.Socket(xdpabi.AFXDP, unix.SOCK_RAW, 0)
}

func (sysKernel) setUmemReg(fd int, reg xdpabi.UmemReg) error {
	_, _, errno := unix.Syscall6(unix.SYS_SETSOCKOPT,
		uintptr(fd), uintptr(xdpabi.SOLXDP), uintptr(xdpabi.OptUmemReg),
		uintptr(unsafe.Pointer(&reg)), unsafe.Sizeof(reg), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func (sysKernel) setRingSize(fd int, opt int, size uint32) error {
	return unix.SetsockoptInt(fd, xdpabi.SOLXDP, opt, int(size))
}

func (sysKernel) mmapOffsets(fd int) (xdpabi.MmapOffsets, error) {
	var off xdpabi.MmapOffsets
	size := unsafe.Sizeof(off)
	_, _, errno := unix.Syscall6(unix.SYS_GETSOCKOPT,
		uintptr(fd), uintptr(xdpabi.SOLXDP), uintptr(xdpabi.OptMmapOffsets),
		uintptr(unsafe.Pointer(&off)), uintptr(unsafe.Pointer(&size)), 0)
	if errno != 0 {
		return xdpabi.MmapOffsets{}, errno
	}
	return off, nil
}

func (sysKernel) mmapRing(fd int, pgoff int64, size int) ([]byte, error) {
	return unix.Mmap(fd, pgoff, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
}

func (sysKernel) munmap(region []byte) error {
	return unix.Munmap(region)
}

func (sysKernel) bind(fd int, addr xdpabi.SockaddrXDP) error {
	_, _, errno := unix.Syscall(unix.SYS_BIND,
		uintptr(fd), uintptr(unsafe.Pointer(&addr)), unsafe.Sizeof(addr))
	if errno != 0 {
		return errno
	}
	return nil
}

func (sysKernel) kick(fd int) error {
	_, _, errno := unix.Syscall6(unix.SYS_SENDTO,
		uintptr(fd), 0, 0, uintptr(unix.MSG_DONTWAIT), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func (sysKernel) stats(fd int) (xdpabi.Stats, error) {
	var st xdpabi.Stats
	size := unsafe.Sizeof(st)
	_, _, errno := unix.Syscall6(unix.SYS_GETSOCKOPT,
		uintptr(fd), uintptr(xdpabi.SOLXDP), uintptr(xdpabi.OptStatistics),
		uintptr(unsafe.Pointer(&st)), uintptr(unsafe.Pointer(&size)), 0)
	if errno != 0 {
		return xdpabi.Stats{}, errno
	}
	return st, nil
}

func (sysKernel) close(fd int) error {
	return unix.Close(fd)
}
