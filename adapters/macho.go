package adapters

import (
	"debug/macho"
	"encoding/binary"
)

// Raw load-command identifiers that debug/macho does not decode into typed
// structs; see /usr/local/go/src/debug/macho/file.go's default case. The
// wire layout after (cmd, cmdsize) is identical to LoadCmdDylib's, so we
// can reuse the same offset to the embedded path.
const (
	lcLoadWeakDylib uint32 = 0x80000018
	lcReexportDylib uint32 = 0x8000001f
	dylibNameOffset        = 8 // offsetof(dylib_command, dylib.name)
)

// MachOInfo is the decoded shape MachOParse returns (§4.B).
type MachOInfo struct {
	FileType        string
	LoadDylibs      []string
	WeakDylibs      []string
	ReexportDylibs  []string
	Rpaths          []string
	EntitlementKeys []string

	// TextFileOffset, TextFileSize and TextAddr describe the on-disk
	// __TEXT segment, when present, for comparison against the live
	// mapped region (see TextIntegrity in probes/integrity.go).
	TextFileOffset uint64
	TextFileSize   uint64
	TextAddr       uint64
}

// MachOParse reads the Mach-O load commands of path. Fat (universal)
// binaries are resolved to their first architecture only — a multi-arch
// binary whose non-first slice differs is out of scope (see Open Questions
// in SPEC_FULL.md). Zero value on any failure.
func MachOParse(path string) MachOInfo {
	f, err := openMachO(path)
	if err != nil || f == nil {
		return MachOInfo{}
	}
	defer f.Close()

	info := MachOInfo{FileType: f.Type.String()}
	for _, l := range f.Loads {
		switch d := l.(type) {
		case *macho.Dylib:
			info.LoadDylibs = append(info.LoadDylibs, d.Name)
		case *macho.Rpath:
			info.Rpaths = append(info.Rpaths, d.Path)
		case macho.LoadBytes:
			if name, kind := parseUntypedDylib(d, f.ByteOrder); name != "" {
				switch kind {
				case lcLoadWeakDylib:
					info.WeakDylibs = append(info.WeakDylibs, name)
				case lcReexportDylib:
					info.ReexportDylibs = append(info.ReexportDylibs, name)
				}
			}
		}
	}
	info.EntitlementKeys = entitlementKeys(path)
	if text := f.Segment("__TEXT"); text != nil {
		info.TextFileOffset = text.Offset
		info.TextFileSize = text.Filesz
		info.TextAddr = text.Addr
	}
	return info
}

// parseUntypedDylib decodes a raw load command that debug/macho left
// uninterpreted, returning its embedded path and command id when it is a
// weak or reexported dylib load.
func parseUntypedDylib(raw []byte, bo binary.ByteOrder) (string, uint32) {
	if len(raw) < dylibNameOffset+4 {
		return "", 0
	}
	cmd := bo.Uint32(raw[0:4])
	if cmd != lcLoadWeakDylib && cmd != lcReexportDylib {
		return "", 0
	}
	nameOff := bo.Uint32(raw[dylibNameOffset : dylibNameOffset+4])
	if int(nameOff) >= len(raw) {
		return "", 0
	}
	return cstring(raw[nameOff:]), cmd
}

func cstring(b []byte) string {
	i := indexByte(b, 0)
	if i < 0 {
		i = len(b)
	}
	return string(b[:i])
}

// openMachO opens path, resolving a fat binary to its first architecture.
// Fat-file Loads are parsed eagerly at open time, so closing the fat
// descriptor here does not invalidate the returned File's already-decoded
// load commands.
func openMachO(path string) (*macho.File, error) {
	if fat, err := macho.OpenFat(path); err == nil {
		defer fat.Close()
		if len(fat.Arches) == 0 {
			return nil, errEmptyFat{}
		}
		return fat.Arches[0].File, nil
	}
	return macho.Open(path)
}

type errEmptyFat struct{}

func (errEmptyFat) Error() string { return "fat binary has no architectures" }
