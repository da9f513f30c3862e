package probes

import "regexp"

// mustCompileProgram returns the regexp used to pull a launchd plist's
// Program or first ProgramArguments entry out of its raw XML, without
// pulling in a full plist decoder for a single string field.
func mustCompileProgram() *regexp.Regexp {
	return regexp.MustCompile(`(?s)<key>Program(?:Arguments)?</key>\s*(?:<array>\s*)?<string>([^<]+)</string>`)
}
