package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agenthud/engine"
)

// TUI message types
type RefreshMsg struct{ View engine.View }
type StatusMsg struct{ Text string }
type MicMsg struct{ On bool }
type UpdateAvailableMsg struct{ Version string }

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	stateColors = map[engine.State]string{
		engine.StateOffline:   "241",
		engine.StateListening: "39",
		engine.StateThinking:  "220",
		engine.StateSpeaking:  "42",
	}

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
	panelTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	titleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	labelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	missingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	agentStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	partialStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Italic(true)
	updateStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	copiedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// latencyMetric pairs a snapshot field with its chart legend.
type latencyMetric struct {
	key   string
	label string
	color string
}

func latencyMetrics(kind engine.Kind) []latencyMetric {
	if kind == engine.KindRealtime {
		return []latencyMetric{
			{"ttfb", "TTFB", "75"},
			{"e2e_latency", "E2E", "203"},
			{"thinking_delay", "Think", "78"},
		}
	}
	return []latencyMetric{
		{"stt_latency", "STT", "75"},
		{"llm_ttft", "LLM", "203"},
		{"tts_latency", "TTS", "78"},
		{"e2e_latency", "E2E", "221"},
	}
}

type tuiModel struct {
	view          engine.View
	status        string
	micOn         bool
	updateLine    string
	copied        bool
	width, height int
	transcript    viewport.Model
	ready         bool
	toggleMic     func()
}

func NewTUIProgram(toggleMic func()) *tea.Program {
	m := tuiModel{toggleMic: toggleMic}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "m":
			if m.toggleMic != nil {
				m.toggleMic()
			}
		case "c":
			if err := clipboard.WriteAll(transcriptPlainText(m.view.Transcript)); err == nil {
				m.copied = true
			}
		default:
			var cmd tea.Cmd
			m.transcript, cmd = m.transcript.Update(msg)
			return m, cmd
		}

	case RefreshMsg:
		m.view = msg.View
		m.copied = false
		if m.ready {
			atBottom := m.transcript.AtBottom()
			m.transcript.SetContent(m.renderTranscript())
			if atBottom {
				m.transcript.GotoBottom()
			}
		}

	case StatusMsg:
		m.status = msg.Text

	case MicMsg:
		m.micOn = msg.On

	case UpdateAvailableMsg:
		m.updateLine = "update available: " + msg.Version
	}
	return m, nil
}

// layout sizes the transcript viewport from the current terminal size.
func (m *tuiModel) layout() {
	lw := m.leftWidth()
	h := m.height - 2 - latencyPanelHeight // header + help line + latency panel
	if h < 3 {
		h = 3
	}
	m.transcript.Width = lw - 4
	m.transcript.Height = h - 3
	m.transcript.SetContent(m.renderTranscript())
	m.transcript.GotoBottom()
}

const latencyPanelHeight = 9

func (m tuiModel) leftWidth() int {
	lw := m.width * 3 / 5
	if lw < 30 {
		lw = 30
	}
	return lw
}

func (m tuiModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.renderHeader()
	lw := m.leftWidth()
	rw := m.width - lw
	if rw < 24 {
		rw = 24
	}

	bodyH := m.height - 2
	transcriptPanel := panelStyle.Width(lw - 2).Height(bodyH - latencyPanelHeight - 2).Render(
		panelTitleStyle.Render("LIVE TRANSCRIPT") + "\n" + m.transcript.View())
	latencyPanel := panelStyle.Width(lw - 2).Height(latencyPanelHeight - 2).Render(m.renderLatency(lw - 6))

	metricsPanel := panelStyle.Width(rw - 2).Render(m.renderMetricsInfo())
	metricsH := lipgloss.Height(metricsPanel)
	eventsH := bodyH - metricsH - 2
	if eventsH < 3 {
		eventsH = 3
	}
	eventsPanel := panelStyle.Width(rw - 2).Height(eventsH).Render(m.renderEvents(eventsH))

	left := lipgloss.JoinVertical(lipgloss.Left, transcriptPanel, latencyPanel)
	right := lipgloss.JoinVertical(lipgloss.Left, metricsPanel, eventsPanel)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	return header + "\n" + body + "\n" + m.renderHelp()
}

func (m tuiModel) renderHeader() string {
	state := m.view.State
	if state == "" {
		state = engine.StateOffline
	}
	badge := lipgloss.NewStyle().
		Foreground(lipgloss.Color("232")).
		Background(lipgloss.Color(stateColors[state])).
		Padding(0, 1).
		Render(strings.ToUpper(string(state)))

	mic := dimStyle.Render("mic off")
	if m.micOn {
		mic = updateStyle.Render("mic on")
	}

	parts := []string{titleStyle.Render("agenthud"), badge, mic}
	if m.view.Kind != engine.KindUnknown {
		parts = append(parts, dimStyle.Render("pipeline: "+string(m.view.Kind)))
	}
	if m.status != "" {
		parts = append(parts, dimStyle.Render(m.status))
	}
	if m.updateLine != "" {
		parts = append(parts, updateStyle.Render(m.updateLine))
	}
	return strings.Join(parts, "  ")
}

func (m tuiModel) renderHelp() string {
	help := helpStyle.Render("m mic · c copy transcript · ↑/↓ scroll · q quit")
	if m.copied {
		help += "  " + copiedStyle.Render("[✓ copied]")
	}
	return help
}

func (m tuiModel) renderTranscript() string {
	entries := m.view.Transcript
	if len(entries) == 0 {
		return dimStyle.Render("System ready. Waiting for input...")
	}

	width := m.transcript.Width
	if width < 10 {
		width = 10
	}

	var b strings.Builder
	for _, e := range entries {
		label := agentStyle.Render("Agent")
		if e.Role == engine.RoleUser {
			label = userStyle.Render("User")
		}
		text := e.Text
		if e.Partial {
			text += " ▌"
		}
		b.WriteString(label + "\n")
		style := valueStyle
		if e.Partial {
			style = partialStyle
		}
		for _, line := range wrapText(text, width) {
			b.WriteString(style.Render(line) + "\n")
		}
	}
	return b.String()
}

func transcriptPlainText(entries []engine.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		role := "Agent"
		if e.Role == engine.RoleUser {
			role = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, e.Text)
	}
	return b.String()
}

// renderLatency draws one sparkline per metric across the turn history.
func (m tuiModel) renderLatency(width int) string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("LATENCY HISTORY") + "\n")

	history := m.view.History
	if len(history) == 0 || m.view.Kind == engine.KindUnknown {
		b.WriteString(dimStyle.Render("Waiting for latency data..."))
		return b.String()
	}

	metrics := latencyMetrics(m.view.Kind)

	// Shared scale across all metrics; floor of 1s so short turns do not
	// pin the chart to the top.
	maxVal := 1000.0
	for _, h := range history {
		for _, mt := range metrics {
			if v, ok := h.Float(mt.key); ok && v > maxVal {
				maxVal = v
			}
		}
	}

	cols := width - 14
	if cols < 5 {
		cols = 5
	}
	for _, mt := range metrics {
		vals := make([]float64, 0, len(history))
		for _, h := range history {
			v, _ := h.Float(mt.key)
			vals = append(vals, v)
		}
		if len(vals) > cols {
			vals = vals[len(vals)-cols:]
		}
		line := lipgloss.NewStyle().Foreground(lipgloss.Color(mt.color)).Render(sparkline(vals, maxVal))
		last := vals[len(vals)-1]
		fmt.Fprintf(&b, "%s %s %s\n",
			labelStyle.Render(fmt.Sprintf("%-5s", mt.label)),
			line,
			dimStyle.Render(fmt.Sprintf("%5.2fs", last/1000)))
	}

	marks := make([]byte, 0, len(history))
	for _, h := range history {
		if h.Bool("interrupted") {
			marks = append(marks, '!')
		} else {
			marks = append(marks, '.')
		}
	}
	if len(marks) > cols {
		marks = marks[len(marks)-cols:]
	}
	fmt.Fprintf(&b, "%s %s", labelStyle.Render("intr "), dimStyle.Render(string(marks)))
	return b.String()
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

func sparkline(vals []float64, max float64) string {
	if max <= 0 {
		max = 1
	}
	var b strings.Builder
	for _, v := range vals {
		idx := int(v / max * float64(len(sparkRunes)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkRunes) {
			idx = len(sparkRunes) - 1
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

func (m tuiModel) renderMetricsInfo() string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("METRICS") + "\n")

	if !m.view.HasMetrics || m.view.Kind == engine.KindUnknown {
		b.WriteString(dimStyle.Render("No metrics data"))
		return b.String()
	}

	snap := m.view.Metrics
	type row struct{ label, value string }
	var rows []row
	if m.view.Kind == engine.KindRealtime {
		rows = []row{
			{"Provider", strOr(snap, "provider_class_name")},
			{"Model", strOr(snap, "provider_model_name")},
			{"TTFB", formatMs(snap, "ttfb")},
			{"Thinking Delay", formatMs(snap, "thinking_delay")},
			{"E2E Latency", formatMs(snap, "e2e_latency")},
			{"Interrupted", yesNo(snap.Bool("interrupted"))},
			{"A2A Enabled", yesNo(snap.Bool("is_a2a_enabled"))},
			{"Handoff", yesNo(snap.Bool("handoff_occurred"))},
		}
	} else {
		rows = []row{
			{"STT", strOr(snap, "stt_provider_class") + " / " + strOr(snap, "stt_model_name")},
			{"LLM", strOr(snap, "llm_provider_class") + " / " + strOr(snap, "llm_model_name")},
			{"TTS", strOr(snap, "tts_provider_class") + " / " + strOr(snap, "tts_model_name")},
			{"STT Latency", formatMs(snap, "stt_latency")},
			{"LLM Latency", formatMs(snap, "llm_ttft")},
			{"TTS Latency", formatMs(snap, "tts_latency")},
			{"E2E Latency", formatMs(snap, "e2e_latency")},
			{"Total Tokens", numOr(snap, "total_tokens")},
			{"Interrupted", yesNo(snap.Bool("interrupted"))},
		}
	}

	for _, r := range rows {
		style := valueStyle
		if r.value == "-" {
			style = missingStyle
		}
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-15s", r.label)), style.Render(r.value))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m tuiModel) renderEvents(height int) string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("EVENTS") + "\n")

	events := m.view.Events
	if len(events) == 0 {
		b.WriteString(dimStyle.Render("No events yet"))
		return b.String()
	}
	n := height - 2
	if n < 1 {
		n = 1
	}
	if len(events) > n {
		events = events[len(events)-n:]
	}
	for _, ev := range events {
		fmt.Fprintf(&b, "%s %s\n",
			dimStyle.Render(ev.At.Format("15:04:05")),
			valueStyle.Render(ev.Name))
	}
	return strings.TrimRight(b.String(), "\n")
}

func strOr(s engine.Snapshot, key string) string {
	if v, ok := s.Str(key); ok && v != "" {
		return v
	}
	return "-"
}

func numOr(s engine.Snapshot, key string) string {
	if v, ok := s.Float(key); ok {
		return fmt.Sprintf("%.0f", v)
	}
	return "-"
}

func formatMs(s engine.Snapshot, key string) string {
	if v, ok := s.Float(key); ok {
		return fmt.Sprintf("%.2fs", v/1000)
	}
	return "-"
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// wrapText breaks on runes, not bytes, so multibyte text and the partial
// cursor are never split mid-sequence.
func wrapText(text string, width int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(runes) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = runes[splitAt:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}

// tuiSink feeds dashboard updates into the running Bubble Tea program.
type tuiSink struct{}

func (tuiSink) Refresh(v engine.View)          { tuiSend(RefreshMsg{View: v}) }
func (tuiSink) Status(text string)             { tuiSend(StatusMsg{Text: text}) }
func (tuiSink) Mic(on bool)                    { tuiSend(MicMsg{On: on}) }
func (tuiSink) UpdateAvailable(version string) { tuiSend(UpdateAvailableMsg{Version: version}) }
