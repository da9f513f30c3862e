package probes

import (
	"testing"

	"github.com/ftahirops/hostwarden/adapters"
)

func TestHasMachOMagic(t *testing.T) {
	cases := []struct {
		name string
		b    []byte
		want bool
	}{
		{"thin_64_native", []byte{0xfe, 0xed, 0xfa, 0xcf, 0, 0, 0, 0}, true},
		{"thin_32_native", []byte{0xfe, 0xed, 0xfa, 0xce, 0, 0, 0, 0}, true},
		{"fat_magic", []byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, 0}, true},
		{"byte_swapped_64", []byte{0xcf, 0xfa, 0xed, 0xfe, 0, 0, 0, 0}, true},
		{"not_macho", []byte{0x7f, 'E', 'L', 'F'}, false},
		{"too_short", []byte{0xfe, 0xed}, false},
		{"empty", nil, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := hasMachOMagic(c.b); got != c.want {
				t.Errorf("hasMachOMagic(%x) = %v, want %v", c.b, got, c.want)
			}
		})
	}
}

func TestFirstTextRegion(t *testing.T) {
	cases := []struct {
		name    string
		regions []adapters.VMRegion
		wantOK  bool
		want    uint64
	}{
		{
			name: "skips anonymous, picks file-backed r-x region",
			regions: []adapters.VMRegion{
				{Addr: 0x1000, Size: 0x1000, CurProt: vmProtRead | vmProtWrite, Anonymous: true},
				{Addr: 0x2000, Size: 0x2000, CurProt: vmProtRead | vmProtExecute, Anonymous: false},
			},
			wantOK: true,
			want:   0x2000,
		},
		{
			name: "skips writable+executable region even if file-backed",
			regions: []adapters.VMRegion{
				{Addr: 0x1000, Size: 0x1000, CurProt: vmProtRead | vmProtWrite | vmProtExecute, Anonymous: false},
				{Addr: 0x2000, Size: 0x2000, CurProt: vmProtRead | vmProtExecute, Anonymous: false},
			},
			wantOK: true,
			want:   0x2000,
		},
		{
			name:    "no regions -> not found",
			regions: nil,
			wantOK:  false,
		},
		{
			name: "only anonymous regions -> not found",
			regions: []adapters.VMRegion{
				{Addr: 0x1000, Size: 0x1000, CurProt: vmProtRead | vmProtExecute, Anonymous: true},
			},
			wantOK: false,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := firstTextRegion(c.regions)
			if ok != c.wantOK {
				t.Fatalf("ok = %v, want %v", ok, c.wantOK)
			}
			if ok && got.Addr != c.want {
				t.Errorf("Addr = %#x, want %#x", got.Addr, c.want)
			}
		})
	}
}
