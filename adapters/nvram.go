package adapters

import "strings"

// NVRAMRead shells out to nvram(8) for a single key, returning its value or
// "" if the key is unset or the tool is unavailable (§4.B, §5).
func NVRAMRead(key string) string {
	out := RunBounded("nvram", key)
	if out == "" {
		return ""
	}
	// nvram prints "key\tvalue"; a missing key exits nonzero (handled by
	// RunBounded returning "") rather than printing an empty value.
	if idx := strings.IndexByte(out, '\t'); idx >= 0 {
		return out[idx+1:]
	}
	return ""
}
