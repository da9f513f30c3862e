//go:build darwin

package adapters

import "golang.org/x/sys/unix"

// XattrList returns the extended attribute names set on path. Empty on any
// failure (missing file, unsupported filesystem, permission denied).
func XattrList(path string) []string {
	size, err := unix.Listxattr(path, nil)
	if err != nil || size <= 0 {
		return nil
	}
	buf := make([]byte, size)
	n, err := unix.Listxattr(path, buf)
	if err != nil || n <= 0 {
		return nil
	}
	return splitNulTerminated(buf[:n])
}

// XattrGet returns the raw value of extended attribute name on path, or nil
// on any failure.
func XattrGet(path, name string) []byte {
	size, err := unix.Getxattr(path, name, nil)
	if err != nil || size <= 0 {
		return nil
	}
	buf := make([]byte, size)
	n, err := unix.Getxattr(path, name, buf)
	if err != nil || n <= 0 {
		return nil
	}
	return buf[:n]
}

func splitNulTerminated(buf []byte) []string {
	var out []string
	start := 0
	for i, b := range buf {
		if b == 0 {
			if i > start {
				out = append(out, string(buf[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(buf) {
		out = append(out, string(buf[start:]))
	}
	return out
}
