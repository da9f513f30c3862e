// Package scan is the interactive "quick answers first" progress view for
// one scan cycle: a bubbletea program that drives the orchestrator in the
// background and renders each probe's result as it lands (§4.F.3.b).
package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ftahirops/hostwarden/assessment"
	"github.com/ftahirops/hostwarden/model"
	"github.com/ftahirops/hostwarden/orchestrator"
)

var (
	colorRed    = lipgloss.Color("#FF5555")
	colorYellow = lipgloss.Color("#F1FA8C")
	colorOrange = lipgloss.Color("#FFB86C")
	colorGreen  = lipgloss.Color("#50FA7B")
	colorCyan   = lipgloss.Color("#8BE9FD")
	colorGray   = lipgloss.Color("#6272A4")
	colorWhite  = lipgloss.Color("#F8F8F2")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	labelStyle = lipgloss.NewStyle().Foreground(colorGray)
	critStyle  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	highStyle  = lipgloss.NewStyle().Foreground(colorOrange).Bold(true)
	medStyle   = lipgloss.NewStyle().Foreground(colorYellow)
	okStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	dimStyle   = lipgloss.NewStyle().Foreground(colorGray)
)

func severityStyle(s model.Severity) lipgloss.Style {
	switch s {
	case model.SeverityCritical:
		return critStyle
	case model.SeverityHigh:
		return highStyle
	case model.SeverityMedium:
		return medStyle
	default:
		return lipgloss.NewStyle().Foreground(colorWhite)
	}
}

type progressMsg model.Progress
type doneMsg struct {
	result model.ThreatScanResult
	err    error
}

type Model struct {
	orch *orchestrator.Orchestrator
	opts orchestrator.Options
	pub  *assessment.Store

	completed int
	total     int
	recent    []model.ScannerResult
	finished  bool
	err       error
	result    model.ThreatScanResult
	width     int
}

// Run starts the bubbletea progress view driving one scan through orch,
// publishing the final result to pub for any other observer (diagnostics,
// future UI pages) to pick up.
func Run(orch *orchestrator.Orchestrator, opts orchestrator.Options, pub *assessment.Store) error {
	m := Model{orch: orch, opts: opts, pub: pub}
	p := tea.NewProgram(m)
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return runScan(m.orch, m.opts)
}

// runScan wires opts.OnProgress to feed progressMsg values back into the
// bubbletea event loop via a channel, since OnProgress itself runs on a
// probe goroutine, not the program's Update loop.
func runScan(orch *orchestrator.Orchestrator, opts orchestrator.Options) tea.Cmd {
	progress := make(chan model.Progress, 64)
	wrapped := opts
	wrapped.OnProgress = func(p model.Progress) {
		progress <- p
		if opts.OnProgress != nil {
			opts.OnProgress(p)
		}
	}

	result := make(chan doneMsg, 1)
	go func() {
		r, err := orch.Run(context.Background(), wrapped)
		close(progress)
		result <- doneMsg{result: r, err: err}
	}()

	return tea.Batch(waitForProgress(progress), waitForDone(result))
}

// waitForProgress delivers the next progress update and then waits for the
// one after it, in order, until the channel is closed.
func waitForProgress(ch <-chan model.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return tea.Sequence(
			func() tea.Msg { return progressMsg(p) },
			waitForProgress(ch),
		)()
	}
}

func waitForDone(ch <-chan doneMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		if m.finished {
			return m, tea.Quit
		}
		return m, nil
	case progressMsg:
		m.completed = msg.Completed
		m.total = msg.Total
		m.recent = append(m.recent, msg.LatestResult)
		if len(m.recent) > 8 {
			m.recent = m.recent[len(m.recent)-8:]
		}
		return m, nil
	case doneMsg:
		m.finished = true
		m.result = msg.result
		m.err = msg.err
		if msg.err == nil && m.pub != nil {
			m.pub.Publish(msg.result)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("hostwarden scan") + "\n\n")

	if m.err != nil {
		b.WriteString(critStyle.Render("scan failed: "+m.err.Error()) + "\n")
		return b.String()
	}

	if !m.finished {
		b.WriteString(labelStyle.Render(fmt.Sprintf("probes complete: %d/%d", m.completed, m.total)) + "\n\n")
		for _, r := range m.recent {
			b.WriteString(renderResultLine(r) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("q to cancel") + "\n")
		return b.String()
	}

	critical, high := m.result.CountsBySeverity()
	b.WriteString(fmt.Sprintf("scan complete in %s — %d processes, %d connections\n\n",
		m.result.Duration.Round(time.Millisecond), m.result.ProcessCount, m.result.ConnectionCount))
	b.WriteString(critStyle.Render(fmt.Sprintf("%d critical", critical)) + "  " +
		highStyle.Render(fmt.Sprintf("%d high", high)) + "\n\n")

	for _, f := range m.result.Anomalies() {
		style := severityStyle(f.Severity)
		b.WriteString(style.Render(fmt.Sprintf("[%s] %s", f.Severity, f.Technique)))
		b.WriteString(" — " + f.Description + "\n")
	}
	if len(m.result.Correlations) > 0 {
		b.WriteString("\n" + labelStyle.Render("correlations:") + "\n")
		for _, c := range m.result.Correlations {
			b.WriteString(critStyle.Render(c.Rule) + " — " + c.Description + "\n")
		}
	}
	if m.result.SuppressedCount > 0 {
		b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("%d findings suppressed by allowlist", m.result.SuppressedCount)) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("q to exit") + "\n")
	return b.String()
}

func renderResultLine(r model.ScannerResult) string {
	status := okStyle.Render("clean")
	if r.Incomplete {
		status = dimStyle.Render("incomplete")
	} else if len(r.Findings) > 0 {
		worst := model.SeverityInfo
		for _, f := range r.Findings {
			worst = model.Max(worst, f.Severity)
		}
		status = severityStyle(worst).Render(fmt.Sprintf("%d findings", len(r.Findings)))
	}
	return fmt.Sprintf("  %-30s %s", r.DisplayName, status)
}

