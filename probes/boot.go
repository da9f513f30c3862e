package probes

import (
	"strings"

	"github.com/ftahirops/hostwarden/adapters"
	"github.com/ftahirops/hostwarden/model"
)

// dangerousBootFlags is the closed set of kernel boot-args that weaken
// platform security when present.
var dangerousBootFlags = []string{
	"cs_enforcement_disable=1", "amfi_get_out_of_my_way=1", "-no_compat_check",
	"kext-dev-mode=1", "boot-args-test",
}

// SystemIntegrity reads the AMFI enabled bit, kern.secure_kernel, and
// kern.bootargs, flagging a dangerous boot-arg combination.
func SystemIntegrity(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding

	if !adapters.AmfiEnabled() {
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindFilesystem,
			Technique:   "System Integrity",
			Description: "AMFI (Apple Mobile File Integrity) enforcement is disabled",
			Severity:    model.SeverityCritical,
			MitreID:     "T1553",
			ScannerID:   "system-integrity",
			Evidence:    []string{"path=sysctl:security.mac.amfi.enabled", "amfi_enabled=false"},
			Timestamp:   ctx.Now,
		})
	}

	bootArgs := adapters.BootArgs()
	for _, flag := range dangerousBootFlags {
		if strings.Contains(bootArgs, flag) {
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindFilesystem,
				Technique:   "System Integrity",
				Description: "kernel boot-args contains a known security-weakening flag",
				Severity:    model.SeverityCritical,
				ScannerID:   "system-integrity",
				Evidence:    []string{"path=sysctl:kern.bootargs", "boot_args=" + bootArgs, "flag=" + flag},
				Timestamp:   ctx.Now,
			})
		}
	}

	if !adapters.SecureKernel() {
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindFilesystem,
			Technique:   "System Integrity",
			Description: "kernel does not report a secure-boot chain",
			Severity:    model.SeverityMedium,
			ScannerID:   "system-integrity",
			Evidence:    []string{"path=sysctl:kern.secure_kernel", "secure_kernel=false"},
			Timestamp:   ctx.Now,
		})
	}
	return findings
}

// BootSecurity checks NVRAM boot-args against the same dangerous-flag
// pattern. The Preboot volume is not examined.
func BootSecurity(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	nvramArgs := adapters.NVRAMRead("boot-args")
	for _, flag := range dangerousBootFlags {
		if strings.Contains(nvramArgs, flag) {
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindFilesystem,
				Technique:   "Boot Security",
				Description: "NVRAM boot-args contains a known security-weakening flag",
				Severity:    model.SeverityCritical,
				ScannerID:   "boot-security",
				Evidence:    []string{"path=nvram:boot-args", "boot_args=" + nvramArgs, "flag=" + flag},
				Timestamp:   ctx.Now,
			})
		}
	}

	// The Preboot volume is mounted per APFS volume UUID and is not directly
	// enumerable without first resolving that UUID via diskutil, so its
	// contents are not checked here.

	return findings
}

// macSecurityMACPrefixes is the closed set of acceptable security.mac.*
// sysctl key prefixes.
var macSecurityMACPrefixes = []string{
	"security.mac.amfi",
	"security.mac.sandbox",
	"security.mac.vm",
}

// KernelIntegrity flags hypervisor presence and any security.mac.* sysctl
// key outside the closed set of expected prefixes.
func KernelIntegrity(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding

	for _, line := range strings.Split(adapters.RunBounded("sysctl", "security.mac"), "\n") {
		name, _, ok := cutFirst(line, ":")
		if !ok {
			continue
		}
		if !hasAnyPrefix(name, macSecurityMACPrefixes) {
			findings = append(findings, model.Finding{
				ID:          model.NewFindingID(),
				Kind:        model.KindFilesystem,
				Technique:   "Kernel Integrity",
				Description: "security.mac.* sysctl key outside the known-safe prefix set",
				Severity:    model.SeverityCritical,
				ScannerID:   "kernel-integrity",
				Evidence:    []string{"path=sysctl:" + name},
				Timestamp:   ctx.Now,
			})
		}
	}

	if adapters.IsVM() {
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindFilesystem,
			Technique:   "Kernel Integrity",
			Description: "kernel reports execution under a hypervisor",
			Severity:    model.SeverityLow,
			ScannerID:   "kernel-integrity",
			Evidence:    []string{"path=sysctl:kern.hv_vmm_present", "is_vm=true"},
			Timestamp:   ctx.Now,
		})
	}
	return findings
}

// usbAttackSubstrings matches known malicious USB implant device names.
var usbAttackSubstrings = []string{"Rubber Ducky", "Bash Bunny", "O.MG", "Key Croc"}

// USBDeviceScanner enumerates attached USB devices and flags known
// attack-device name substrings.
func USBDeviceScanner(ctx *model.ScanContext) []model.Finding {
	var findings []model.Finding
	for _, dev := range adapters.IOUSBEnumerate() {
		for _, sub := range usbAttackSubstrings {
			if strings.Contains(dev.Name, sub) {
				findings = append(findings, model.Finding{
					ID:          model.NewFindingID(),
					Kind:        model.KindFilesystem,
					Technique:   "USB Device Scanner",
					Description: "attached USB device name matches a known attack-tool pattern",
					Severity:    model.SeverityHigh,
					MitreID:     "T1200",
					ScannerID:   "usb-device-scanner",
					Evidence:    []string{"path=ioreg:" + dev.Name, "location_id=" + dev.LocationID},
					Timestamp:   ctx.Now,
				})
			}
		}
	}
	return findings
}
