package probes

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ftahirops/hostwarden/adapters"
	"github.com/ftahirops/hostwarden/model"
)

const memoryCarveDir = "/tmp/hostwarden-carve"
const memoryCarveMaxAge = time.Hour

// MemoryCarve concatenates a non-system process's executable memory
// regions into a temp file and hashes it, exposing the hash as evidence
// for an upstream reputation query (this engine does not itself perform
// that lookup — see Non-goals). A cleanup pass removes carve files older
// than memoryCarveMaxAge on every run.
func MemoryCarve(ctx *model.ScanContext) []model.Finding {
	cleanupCarveDir()
	os.MkdirAll(memoryCarveDir, 0o700)

	var findings []model.Finding
	for _, pid := range ctx.Snapshot.PIDs {
		path := ctx.Snapshot.Paths[pid]
		if path == "" || isSystemPath(path) {
			continue
		}
		regions := adapters.MachVMRegions(int32(pid))
		if len(regions) == 0 {
			continue
		}

		var execBytes int64
		for _, r := range regions {
			if r.CurProt&0x4 != 0 {
				execBytes += int64(r.Size)
			}
		}
		if execBytes == 0 {
			continue
		}

		carve, err := os.CreateTemp(memoryCarveDir, "carve-*.bin")
		if err != nil {
			continue
		}
		hasher := sha256.New()
		out := io.MultiWriter(carve, hasher)
		for _, r := range regions {
			if r.CurProt&0x4 != 0 {
				out.Write(adapters.ReadProcessMemory(int32(pid), r.Addr, r.Size))
			}
		}
		carve.Close()
		hash := hex.EncodeToString(hasher.Sum(nil))
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindProcess,
			PID:         pid,
			ProcessPath: path,
			Technique:   "Memory Carve",
			Description: "executable memory regions carved for reputation lookup",
			Severity:    model.SeverityInfo,
			ScannerID:   "memory-carve",
			Evidence:    []string{"hash=" + hash, "exec_bytes=" + itoa(int(execBytes))},
			Timestamp:   ctx.Now,
		})
	}
	return findings
}

func cleanupCarveDir() {
	entries, err := os.ReadDir(memoryCarveDir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-memoryCarveMaxAge)
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(memoryCarveDir, e.Name()))
		}
	}
}
