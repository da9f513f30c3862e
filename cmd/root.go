package cmd

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ftahirops/hostwarden/allowlist"
	"github.com/ftahirops/hostwarden/assessment"
	"github.com/ftahirops/hostwarden/cmd/scan"
	"github.com/ftahirops/hostwarden/config"
	"github.com/ftahirops/hostwarden/correlation"
	"github.com/ftahirops/hostwarden/diagnostics"
	"github.com/ftahirops/hostwarden/model"
	"github.com/ftahirops/hostwarden/orchestrator"
	"github.com/ftahirops/hostwarden/probes"
)

// Version is set at build time via ldflags.
var Version = "0.1.0"

// ExitCodeError signals a non-zero exit code without calling os.Exit
// directly, so Run stays testable.
type ExitCodeError struct{ Code int }

func (e ExitCodeError) Error() string { return fmt.Sprintf("exit %d", e.Code) }

// Config holds CLI configuration parsed from flags.
type Config struct {
	JSONMode       bool
	BaselineFS     bool
	BaselineTCC    bool
	TierTimeoutSec int
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `hostwarden v%s — macOS endpoint-security introspection engine

Usage:
  hostwarden [OPTIONS]

Modes:
  (default)           Interactive scan progress view (bubbletea)
  -json               Run one scan, print the ThreatScanResult as JSON, exit
  -baseline-fs         Take/overwrite the filesystem baseline and exit
  -baseline-tcc        Take/overwrite the TCC baseline and exit
  -allow SCANNER=KEY   Add an allowlist rule suppressing future matches
  -allow-remove SCANNER=KEY
                       Remove a previously added allowlist rule

Options:
  -tier-timeout N      Seconds allowed per tier; 0 disables the cap (default from config)
  -version             Print version and exit
  -h, -help            Show this help

`, Version)
}

// Run parses flags, builds the shared engine components, and dispatches to
// the selected mode. Errors wrapped in ExitCodeError signal a specific exit
// code without extra "Error:" noise; main.go handles that unwrap.
func Run() error {
	var cfg Config
	var allow, allowRemove string
	var showVersion, showHelp bool

	fs := flag.NewFlagSet("hostwarden", flag.ContinueOnError)
	fs.Usage = printUsage
	fs.BoolVar(&cfg.JSONMode, "json", false, "run one scan, print JSON, exit")
	fs.BoolVar(&cfg.BaselineFS, "baseline-fs", false, "take the filesystem baseline and exit")
	fs.BoolVar(&cfg.BaselineTCC, "baseline-tcc", false, "take the TCC baseline and exit")
	fs.StringVar(&allow, "allow", "", "add allowlist rule, SCANNER=KEY")
	fs.StringVar(&allowRemove, "allow-remove", "", "remove allowlist rule, SCANNER=KEY")
	fs.IntVar(&cfg.TierTimeoutSec, "tier-timeout", -1, "seconds allowed per tier, 0 disables")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.BoolVar(&showHelp, "help", false, "show usage")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return ExitCodeError{Code: 2}
	}
	if showHelp {
		printUsage()
		return nil
	}
	if showVersion {
		fmt.Println(Version)
		return nil
	}

	appCfg := config.Load()
	if cfg.TierTimeoutSec < 0 {
		cfg.TierTimeoutSec = appCfg.TierTimeoutSec
	}

	if cfg.BaselineFS {
		return runBaselineFS(appCfg)
	}
	if cfg.BaselineTCC {
		return runBaselineTCC(appCfg)
	}
	if allow != "" {
		return runAllowlistAdd(appCfg, allow)
	}
	if allowRemove != "" {
		return runAllowlistRemove(appCfg, allowRemove)
	}

	reg, err := buildRegistry(appCfg)
	if err != nil {
		return err
	}
	orch := orchestrator.New(reg.Entries())

	allowStore := allowlist.Load(appCfg.AllowlistPath)
	corrEngine := correlation.NewEngine()

	opts := orchestrator.Options{
		Connections: systemConnections,
		Allowlist:   allowStore,
		Correlator:  corrEngine,
	}
	if cfg.TierTimeoutSec > 0 {
		opts.TierTimeout = time.Duration(cfg.TierTimeoutSec) * time.Second
	}

	if cfg.JSONMode {
		return runJSON(orch, opts)
	}
	return runInteractive(orch, opts, appCfg)
}

func buildRegistry(appCfg config.Config) (*probes.Registry, error) {
	labels, err := loadPersistenceLabels(appCfg.PersistenceLabelsPath)
	if err != nil {
		labels = &model.PersistenceLabels{}
	}
	tccBaseline := loadTCCBaseline(appCfg.TCCBaselinePath)
	return probes.NewRegistry(labels, tccBaseline), nil
}

func loadTCCBaseline(path string) *model.TCCBaseline {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var baseline model.TCCBaseline
	if json.Unmarshal(data, &baseline) != nil {
		return nil
	}
	return &baseline
}

func loadPersistenceLabels(path string) (*model.PersistenceLabels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &model.PersistenceLabels{}, nil
	}
	var labels model.PersistenceLabels
	if err := json.Unmarshal(data, &labels); err != nil {
		return &model.PersistenceLabels{}, err
	}
	return &labels, nil
}

func runJSON(orch *orchestrator.Orchestrator, opts orchestrator.Options) error {
	result, err := orch.Run(newSignalContext(), opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runInteractive(orch *orchestrator.Orchestrator, opts orchestrator.Options, appCfg config.Config) error {
	store := assessment.New()
	reporter, err := diagnostics.New(appCfg.DataDir)
	if err != nil {
		return err
	}

	store.Subscribe(func(result model.ThreatScanResult) {
		if err := reporter.Append(diagnostics.EventFromResult(result)); err != nil {
			log.Printf("hostwarden: error: diagnostics append failed: %v", err)
		}
		if err := reporter.WriteSnapshot(diagnostics.SnapshotFromResult(result)); err != nil {
			log.Printf("hostwarden: error: diagnostics snapshot write failed: %v", err)
		}
	})

	return scan.Run(orch, opts, store)
}

func runBaselineFS(appCfg config.Config) error {
	baseline := probes.TakeBaseline(nil, time.Now())
	if err := probes.SaveBaseline(appCfg.FSBaselinePath, baseline); err != nil {
		return err
	}
	var totalBytes uint64
	for _, e := range baseline.Entries {
		totalBytes += uint64(e.Size)
	}
	fmt.Printf("filesystem baseline written to %s (%d entries, %s hashed)\n",
		appCfg.FSBaselinePath, len(baseline.Entries), humanize.Bytes(totalBytes))
	return nil
}

func runBaselineTCC(appCfg config.Config) error {
	baseline := probes.TakeTCCBaseline(time.Now())
	data, err := json.MarshalIndent(baseline, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(appCfg.TCCBaselinePath, data, 0o600); err != nil {
		return err
	}
	fmt.Printf("TCC baseline written to %s (%d entries)\n", appCfg.TCCBaselinePath, len(baseline.Entries))
	return nil
}

func runAllowlistAdd(appCfg config.Config, spec string) error {
	scanner, key, err := splitAllowSpec(spec)
	if err != nil {
		return err
	}
	store := allowlist.Load(appCfg.AllowlistPath)
	store.Add(model.AllowlistRule{ScannerID: scanner, MatchKey: key})
	if err := store.Save(appCfg.AllowlistPath); err != nil {
		return err
	}
	fmt.Printf("allowlisted %s=%s\n", scanner, key)
	return nil
}

func runAllowlistRemove(appCfg config.Config, spec string) error {
	scanner, key, err := splitAllowSpec(spec)
	if err != nil {
		return err
	}
	store := allowlist.Load(appCfg.AllowlistPath)
	store.Remove(scanner, key)
	if err := store.Save(appCfg.AllowlistPath); err != nil {
		return err
	}
	fmt.Printf("removed allowlist rule %s=%s\n", scanner, key)
	return nil
}

func splitAllowSpec(spec string) (scanner, key string, err error) {
	parts := strings.SplitN(spec, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected SCANNER=KEY, got %q", spec)
	}
	return parts[0], parts[1], nil
}
