//go:build !librealsense

package rs2

// OpenSystem returns the hardware-backed System. The librealsense binding
// is compiled in only under the librealsense build tag; plain builds serve
// the simulated backend (see rs2/fake and the camera's fake_hardware
// attribute).
func OpenSystem() (System, error) {
	return nil, Errorf(ErrNotSupported, "open_system",
		"binary built without librealsense support; rebuild with -tags librealsense or set fake_hardware")
}
