package adapters

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
)

// CodeSignInfo is the decoded shape CodeSignValidate returns (§4.B).
type CodeSignInfo struct {
	IsSigned              bool
	IsValid               bool
	IsApple               bool
	IsAdhoc               bool
	SigningID             string
	TeamID                string
	DangerousEntitlements []string
}

// DangerousEntitlements is the closed set of entitlement keys a signed
// binary can carry that warrant surfacing even when the signature itself
// validates cleanly (§4.C code integrity probes).
var DangerousEntitlements = map[string]bool{
	"com.apple.security.get-task-allow":                    true,
	"com.apple.security.cs.disable-library-validation":     true,
	"com.apple.security.cs.allow-dyld-environment-variables": true,
	"com.apple.security.cs.allow-unsigned-executable-memory": true,
	"com.apple.security.cs.allow-jit":                      true,
	"com.apple.private.security.no-sandbox":                true,
}

var (
	signingIDRE = regexp.MustCompile(`(?m)^Identifier=(.+)$`)
	teamIDRE    = regexp.MustCompile(`(?m)^TeamIdentifier=(.+)$`)
	authorityRE = regexp.MustCompile(`(?m)^Authority=(.+)$`)
)

// CodeSignValidate shells out to the system codesign(1) tool to read the
// binary's signature and entitlements. Returns a zero IsSigned result on
// any failure, including an unsigned binary.
func CodeSignValidate(path string) CodeSignInfo {
	out := RunBounded("codesign", "-dvvv", path)
	if out == "" {
		return CodeSignInfo{}
	}

	info := CodeSignInfo{IsSigned: true}
	if m := signingIDRE.FindStringSubmatch(out); m != nil {
		info.SigningID = strings.TrimSpace(m[1])
	}
	if m := teamIDRE.FindStringSubmatch(out); m != nil {
		info.TeamID = strings.TrimSpace(m[1])
	}
	info.IsAdhoc = strings.Contains(out, "Signature=adhoc") || strings.Contains(out, "flags=0x2(adhoc)")

	for _, m := range authorityRE.FindAllStringSubmatch(out, -1) {
		if strings.Contains(m[1], "Apple Root CA") || strings.Contains(m[1], "Software Signing") || strings.Contains(m[1], "Apple Code Signing") {
			info.IsApple = true
		}
	}

	// A zero exit from --verify confirms the signature still checks out
	// against the binary on disk, as opposed to merely being present.
	// RunBounded returns "" for a failing exit and for a clean one alike, so
	// the exit status is read directly, under the same timeout.
	verifyCtx, cancel := context.WithTimeout(context.Background(), DefaultCommandTimeout)
	defer cancel()
	info.IsValid = exec.CommandContext(verifyCtx, "codesign", "--verify", "--no-strict", path).Run() == nil

	info.DangerousEntitlements = dangerousEntitlementsIn(entitlementKeys(path))
	return info
}

// entitlementKeys shells out to codesign to extract the embedded
// entitlements plist and returns the top-level <key> names, without
// pulling in a full plist parser for what is, at this layer, a flat list of
// boolean feature flags.
var entitlementKeyRE = regexp.MustCompile(`<key>([^<]+)</key>`)

func entitlementKeys(path string) []string {
	out := RunBounded("codesign", "-d", "--entitlements", ":-", path)
	if out == "" {
		return nil
	}
	var keys []string
	for _, m := range entitlementKeyRE.FindAllStringSubmatch(out, -1) {
		keys = append(keys, m[1])
	}
	return keys
}

func dangerousEntitlementsIn(keys []string) []string {
	var out []string
	for _, k := range keys {
		if DangerousEntitlements[k] {
			out = append(out, k)
		}
	}
	return out
}

// CodeSignKernelInfo is the kernel-level csops(2) view used by contradiction
// probes to compare against the on-disk signature state (§4.B, §4.J).
type CodeSignKernelInfo struct {
	IsValid         bool
	IsDebugged      bool
	FlagBits        uint32
	EntitlementKeys []string
}
