// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/southspace/lstrelay/pkg/event"
	"github.com/southspace/lstrelay/pkg/groundstation"
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	level     zerolog.Level
}

// Latest transceiver telemetry, from event.LocalTelemetry fields
type telemetryData struct {
	timestamp time.Time
	fields    map[string]interface{}
}

// TUI model
type model struct {
	connInfo      string
	busInfo       string
	busState      func() string
	showAll       bool
	stats         *groundstation.Statistics
	spinner       spinner.Model
	eventLog      []logEntry
	maxLogEntries int
	lastTelemetry *telemetryData
	width         int
	height        int
	quitting      bool
	stopped       bool
	stopErr       error
}

// Messages
type tickMsg time.Time
type eventMsg event.Event
type stoppedMsg struct {
	err error
}

var uptimeUnits = []struct {
	name    string
	seconds uint64
}{
	{"year", 365 * 24 * 3600},
	{"month", 30 * 24 * 3600},
	{"day", 24 * 3600},
	{"hour", 3600},
	{"minute", 60},
	{"second", 1},
}

// formatUptime formats an uptime in seconds to a human-friendly string
func formatUptime(seconds uint64) string {
	parts := []string{}
	for _, u := range uptimeUnits {
		n := seconds / u.seconds
		seconds %= u.seconds
		if n == 0 && !(u.seconds == 1 && len(parts) == 0) {
			continue
		}
		if n == 1 {
			parts = append(parts, "1 "+u.name)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + last
}

func initialModel(p *pipeline, showAll bool) model {
	return model{
		connInfo:      p.connInfo,
		busInfo:       p.busInfo,
		busState:      p.busState,
		showAll:       showAll,
		stats:         p.stats,
		spinner:       spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("11")))),
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

// visible reports whether an event belongs in the event log
func (m model) visible(e event.Event) bool {
	if e.Kind == event.LocalTelemetry {
		return false
	}
	if m.showAll {
		return e.Kind.Level() >= zerolog.DebugLevel
	}
	return e.Kind.Level() >= zerolog.InfoLevel
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stoppedMsg:
		m.stopped = true
		m.stopErr = msg.err
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("relay stopped: %v", msg.err), zerolog.ErrorLevel)
		}

	case eventMsg:
		e := event.Event(msg)
		if e.Kind == event.LocalTelemetry {
			m.lastTelemetry = &telemetryData{timestamp: e.Time, fields: e.Fields}
		}
		if m.visible(e) {
			m.addLogEntry(describeEvent(e), e.Kind.Level())
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, level zerolog.Level) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		level:     level,
	})

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// describeEvent renders an event as a single log line
func describeEvent(e event.Event) string {
	var b strings.Builder
	b.WriteString(e.Kind.Message())
	if e.Source != "" {
		fmt.Fprintf(&b, " [%s]", e.Source)
	}
	if e.Topic != "" {
		fmt.Fprintf(&b, " %s", e.Topic)
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("LSTRELAY - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Bus %s | Press 'q' to quit", m.connInfo, m.busInfo)))
	s.WriteString("\n\n")

	// Bus state
	state := m.busState()
	switch {
	case m.stopped:
		s.WriteString(errorStyle.Render("✗ Relay stopped"))
	case state == "connected":
		s.WriteString(valueStyle.Render("✓ Bus connected"))
	case state == "disabled":
		s.WriteString(headerStyle.Render("Bus disabled (decode only)"))
	default:
		s.WriteString(m.spinner.View() + " " + warningStyle.Render("Bus "+state+"..."))
	}
	s.WriteString("\n\n")

	// Statistics
	c := m.stats.Snapshot()
	errCount := c.Errors()

	stats := strings.Builder{}
	fmt.Fprintf(&stats, "%s %s   %s %s   %s %s\n",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", c.Frames)),
		labelStyle.Render("Beacons:"), valueStyle.Render(fmt.Sprintf("%d", c.BeaconsDecoded)),
		labelStyle.Render("Errors:"), func() string {
			if errCount > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", errCount))
			}
			return valueStyle.Render("0")
		}(),
	)

	if len(c.PerBeacon) > 0 {
		names := make([]string, 0, len(c.PerBeacon))
		for name := range c.PerBeacon {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s %d", headerStyle.Render(name+":"), c.PerBeacon[name])
		}
		stats.WriteString(strings.Join(parts, "  "))
		stats.WriteString("\n")
	}

	if c.CRCErrors > 0 || c.Truncated > 0 {
		fmt.Fprintf(&stats, "%s %s   %s %s\n",
			labelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", c.CRCErrors)),
			labelStyle.Render("Truncated:"), errorStyle.Render(fmt.Sprintf("%d", c.Truncated)),
		)
	}

	fmt.Fprintf(&stats, "%s %s   %s %s",
		labelStyle.Render("Published:"), valueStyle.Render(fmt.Sprintf("%d", c.RecordsPublished)),
		labelStyle.Render("Dropped:"), func() string {
			if c.RecordsDropped > 0 {
				return warningStyle.Render(fmt.Sprintf("%d", c.RecordsDropped))
			}
			return valueStyle.Render("0")
		}(),
	)
	if c.PublishErrors+c.ConnectFailures > 0 {
		fmt.Fprintf(&stats, "   %s %s",
			labelStyle.Render("Bus Errors:"), errorStyle.Render(fmt.Sprintf("%d", c.PublishErrors+c.ConnectFailures)))
	}
	stats.WriteString("\n")

	fmt.Fprintf(&stats, "%s %s   %s %s",
		labelStyle.Render("Frame Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", c.FrameRate)),
		labelStyle.Render("Polls:"), valueStyle.Render(fmt.Sprintf("%d", c.PollsSent)),
	)

	s.WriteString(boxStyle.Render(stats.String()))
	s.WriteString("\n\n")

	// Transceiver telemetry (only shown once received)
	if m.lastTelemetry != nil {
		s.WriteString(labelStyle.Render("Transceiver Telemetry:"))
		s.WriteString("\n")

		f := m.lastTelemetry.fields
		tm := strings.Builder{}
		if up, ok := f["uptime"].(uint32); ok {
			fmt.Fprintf(&tm, "%s %s\n", labelStyle.Render("Uptime:"), valueStyle.Render(formatUptime(uint64(up))))
		}
		fmt.Fprintf(&tm, "%s %s   %s %s\n",
			labelStyle.Render("RSSI:"), valueStyle.Render(fmt.Sprintf("%v", f["rssi"])),
			labelStyle.Render("LQI:"), valueStyle.Render(fmt.Sprintf("%v", f["lqi"])),
		)
		fmt.Fprintf(&tm, "%s %s   %s %v / %v",
			labelStyle.Render("Good:"), valueStyle.Render(fmt.Sprintf("%v", f["packets_good"])),
			labelStyle.Render("Rejected (crc/other):"), f["packets_rejected_checksum"], f["packets_rejected_other"],
		)

		s.WriteString(boxStyle.Render(tm.String()))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 17
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	logContent := strings.Builder{}
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.eventLog[startIdx:] {
			timestamp := headerStyle.Render(entry.timestamp.Format("01/02/06 15:04:05.000"))
			switch {
			case entry.level >= zerolog.ErrorLevel:
				logContent.WriteString(timestamp + " " + errorStyle.Render("✗ "+entry.message) + "\n")
			case entry.level == zerolog.WarnLevel:
				logContent.WriteString(timestamp + " " + warningStyle.Render("! "+entry.message) + "\n")
			default:
				logContent.WriteString(timestamp + " " + valueStyle.Render("ℹ "+entry.message) + "\n")
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
