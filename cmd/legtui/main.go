// SPDX-License-Identifier: Apache-2.0

// Command legtui is the operator console: a terminal dashboard that
// dials a legbrain WebSocket endpoint, shows telemetry and recent
// events, and lets the operator queue sequences, stop, and ESTOP/clear
// by hand. Grounded on cmd/tui.go's tickMsg/Update/View dashboard loop
// and cmd/control_tui.go's textinput-driven command entry.
package main

import (
	"context"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var wsURL string

var rootCmd = &cobra.Command{
	Use:   "legtui",
	Short: "Operator console for a running legbrain daemon",
	RunE:  runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&wsURL, "ws-url", "ws://localhost:9000/ws", "legbrain WebSocket URL")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newModel(wsURL)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go runConnectionSupervisor(ctx, p, wsURL)

	_, err := p.Run()
	return err
}

// logEntry mirrors errorLogEntry: a timestamped line in the event feed,
// rendered red for errors and in warningStyle (yellow) for ordinary events.
type logEntry struct {
	at      time.Time
	message string
	isError bool
}

const maxLogEntries = 200

func trimLog(entries []logEntry) []logEntry {
	if len(entries) > maxLogEntries {
		return entries[len(entries)-maxLogEntries:]
	}
	return entries
}
