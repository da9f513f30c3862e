package adapters

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// SHA256 returns the lowercase hex digest of path's contents, or "" if the
// file cannot be opened or read (§4.B).
func SHA256(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SHA256Range returns the lowercase hex digest of the size bytes of path
// starting at offset, or "" if the file cannot be opened or the range
// cannot be read in full.
func SHA256Range(path string, offset, size uint64) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, int64(offset)); err != nil {
		return ""
	}
	return SHA256Bytes(buf)
}

// SHA256Bytes returns the lowercase hex digest of b.
func SHA256Bytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
