// Package hostutil provides the small pieces of host glue an AF_XDP
// socket needs before it can bind: interface-name resolution, a
// best-effort AF_XDP capability probe, and interface enumeration.
package hostutil

import (
	"net"
	"unsafe"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sys/unix"

	"github.com/penguintechinc/xdpcore/xdpabi"
	"github.com/penguintechinc/xdpcore/xdperr"
)

// ifreq mirrors the kernel's struct ifreq as used by SIOCGIFINDEX: a
// 16-byte interface-name field followed by the union slot the kernel
// fills in with the index.
type ifreq struct {
	name  [unix.IFNAMSIZ]byte
	index int32
	_     [20]byte // pad the 24-byte union to sizeof(ifreq) (40) on amd64/arm64
}

const defaultResolveCacheSize = 64

// Resolver resolves interface names to kernel indices, caching results
// since an interface's index is stable for the life of the process. A
// zero-value Resolver is usable; it builds an internal LRU cache with
// the default size on first use.
type Resolver struct {
	cache *lru.Cache
}

// NewResolver returns a Resolver whose cache holds up to size entries.
// size <= 0 uses defaultResolveCacheSize.
func NewResolver(size int) *Resolver {
	if size <= 0 {
		size = defaultResolveCacheSize
	}
	c, _ := lru.New(size) // lru.New only errors on size <= 0, already guarded
	return &Resolver{cache: c}
}

// ResolveInterface looks up the kernel index for the named interface.
// Names longer than IFNAMSIZ-1 bytes are truncated and the lookup
// proceeds on the truncated name, matching the kernel's own ifreq
// semantics.
func (r *Resolver) ResolveInterface(name string) (int, error) {
	if r.cache == nil {
		r.cache = NewResolver(defaultResolveCacheSize).cache
	}
	if v, ok := r.cache.Get(name); ok {
		return v.(int), nil
	}

	idx, err := resolveInterfaceUncached(name)
	if err != nil {
		return 0, err
	}
	r.cache.Add(name, idx)
	return idx, nil
}

// ResolveInterface resolves name without caching. Most callers should
// use a shared Resolver instead.
func ResolveInterface(name string) (int, error) {
	return resolveInterfaceUncached(name)
}

func resolveInterfaceUncached(name string) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return 0, xdperr.Wrap(xdperr.KindInterfaceNotFound, "open control socket", err)
	}
	defer unix.Close(fd)

	var req ifreq
	n := copy(req.name[:], name)
	if n == len(req.name) {
		n-- // always NUL-terminate, truncating the name if necessary
	}
	req.name[n] = 0

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), xdpabi.SIOCGIFINDEX, uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		return 0, xdperr.Wrap(xdperr.KindInterfaceNotFound, name, errno)
	}
	return int(req.index), nil
}

// IsAvailable probes whether AF_XDP socket creation is permitted on this
// host, closing the probe socket before returning.
func IsAvailable() bool {
	fd, err := unix.Socket(xdpabi.AFXDP, unix.SOCK_RAW, 0)
	if err != nil {
		return false
	}
	unix.Close(fd)
	return true
}

// ListXDPCapableInterfaces enumerates network interfaces, excluding
// loopback. It is a best-effort advisory: actual AF_XDP capability is
// only determined when a socket is bound to a given (interface, queue).
func ListXDPCapableInterfaces() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ifaces))
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		names = append(names, iface.Name)
	}
	return names, nil
}
