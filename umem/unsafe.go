package umem

import "unsafe"

// unsafeSliceBase returns the address of b's backing array. Isolated in
// its own file so every other file in this package stays unsafe-free.
func unsafeSliceBase(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
