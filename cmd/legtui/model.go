// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
)

// frameMsg carries one inbound WebSocket text frame into Update.
type frameMsg struct {
	data []byte
}

// disconnectedMsg is sent once readLoop's conn.ReadMessage fails.
type disconnectedMsg struct {
	err error
}

// connectedMsg is sent by the connection supervisor once a (re)dial
// succeeds, carrying the fresh socket for outbound commands to use.
type connectedMsg struct {
	conn *websocket.Conn
}

// sentMsg reports the outcome of an outbound command, so failures land
// in the event log instead of vanishing silently.
type sentMsg struct {
	label string
	err   error
}

// model is legtui's bubbletea state: a connection to one legbrain, the
// latest telemetry snapshot, a scrolling event log, and a single text
// field for entering a sequence name to queue.
type model struct {
	wsURL string
	conn  *websocket.Conn

	connected bool
	lastErr   error

	telemetry   *telemetryMsg
	telemetryAt time.Time

	log           []logEntry
	maxLogEntries int

	input textinput.Model

	width, height int
	quitting      bool
}

func newModel(wsURL string) *model {
	ti := textinput.New()
	ti.Placeholder = "sequence name"
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 32

	return &model{
		wsURL:         wsURL,
		maxLogEntries: maxLogEntries,
		input:         ti,
		width:         80,
		height:        24,
	}
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) addLog(message string, isError bool) {
	m.log = append(m.log, logEntry{at: time.Now(), message: message, isError: isError})
	m.log = trimLog(m.log)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			name := strings.TrimSpace(m.input.Value())
			if name == "" {
				break
			}
			m.input.SetValue("")
			return m, m.sendMotion(name, false)
		case "ctrl+r":
			name := strings.TrimSpace(m.input.Value())
			if name == "" {
				break
			}
			m.input.SetValue("")
			return m, m.sendMotion(name, true)
		case "ctrl+s":
			return m, m.sendSystem("stop", "stop")
		case "ctrl+e":
			return m, m.sendSystem("estop", "ESTOP")
		case "ctrl+x":
			return m, m.sendSystem("clear_estop", "clear estop")
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case frameMsg:
		kind, telemetry, errPayload, ack, err := decodeFrame(msg.data)
		if err != nil {
			m.addLog(err.Error(), true)
			break
		}
		switch kind {
		case "telemetry":
			m.telemetry = telemetry
			m.telemetryAt = time.Now()
		case "error":
			m.addLog(fmt.Sprintf("error %d: %s", errPayload.Code, errPayload.Message), true)
		case "ack":
			m.addLog(fmt.Sprintf("ack: %s", ack.Cmd), false)
		default:
			m.addLog(fmt.Sprintf("unhandled frame type %q", kind), false)
		}

	case disconnectedMsg:
		m.connected = false
		m.conn = nil
		m.lastErr = msg.err
		m.addLog(fmt.Sprintf("disconnected: %v", msg.err), true)

	case connectedMsg:
		m.conn = msg.conn
		m.connected = true
		m.lastErr = nil
		m.addLog("connected", false)

	case sentMsg:
		if msg.err != nil {
			m.addLog(fmt.Sprintf("%s failed: %v", msg.label, msg.err), true)
		} else {
			m.connected = true
			m.addLog(msg.label, false)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) sendMotion(seqName string, continuous bool) tea.Cmd {
	payload, err := encodeMotion(seqName, continuous)
	label := fmt.Sprintf("queued %q", seqName)
	if continuous {
		label = fmt.Sprintf("queued %q (continuous)", seqName)
	}
	return func() tea.Msg {
		if err != nil {
			return sentMsg{label: label, err: err}
		}
		return sentMsg{label: label, err: sendEnvelope(m.conn, payload)}
	}
}

func (m *model) sendSystem(sysCmd, label string) tea.Cmd {
	payload, err := encodeSystem(sysCmd)
	return func() tea.Msg {
		if err != nil {
			return sentMsg{label: label, err: err}
		}
		return sentMsg{label: label, err: sendEnvelope(m.conn, payload)}
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)
	headerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statsLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	statsValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle         = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

func (m *model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("LEGBRAIN CONSOLE"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | enter: queue  ctrl+r: queue continuous  ctrl+s: stop  ctrl+e: ESTOP  ctrl+x: clear estop  q: quit", m.wsURL)))
	s.WriteString("\n\n")

	if m.connected {
		s.WriteString(statsValueStyle.Render("connected"))
	} else {
		s.WriteString(warningStyle.Render("disconnected"))
		if m.lastErr != nil {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (%v)", m.lastErr)))
		}
	}
	s.WriteString("\n\n")

	var telem strings.Builder
	if m.telemetry != nil {
		t := m.telemetry
		telem.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("State:"), stateStyle(t.State).Render(t.State),
			statsLabelStyle.Render("Uptime:"), statsValueStyle.Render(fmt.Sprintf("%ds", t.UptimeS)),
		))
		telem.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Loop:"), statsValueStyle.Render(fmt.Sprintf("%.1f Hz", t.LoopHz)),
			statsLabelStyle.Render("Packets sent:"), statsValueStyle.Render(fmt.Sprintf("%d", t.PacketsSent)),
		))
		telem.WriteString(headerStyle.Render(fmt.Sprintf("as of %s", m.telemetryAt.Format("15:04:05"))))
	} else {
		telem.WriteString(headerStyle.Render("(no telemetry yet)"))
	}
	s.WriteString(boxStyle.Render(telem.String()))
	s.WriteString("\n\n")

	s.WriteString(statsLabelStyle.Render("Queue sequence:"))
	s.WriteString("\n")
	s.WriteString(m.input.View())
	s.WriteString("\n\n")

	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 18
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.log) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	var logContent strings.Builder
	if len(m.log) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.log); i++ {
			entry := m.log[i]
			ts := entry.at.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(ts), errorStyle.Render("x "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(ts), warningStyle.Render("- "+entry.message)))
			}
		}
	}
	width := m.width - 4
	if width < 10 {
		width = 10
	}
	s.WriteString(boxStyle.Width(width).Render(logContent.String()))

	return s.String()
}

func stateStyle(state string) lipgloss.Style {
	switch state {
	case "estop":
		return errorStyle
	case "idle":
		return headerStyle
	default:
		return statsValueStyle
	}
}
