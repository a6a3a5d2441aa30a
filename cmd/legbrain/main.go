// SPDX-License-Identifier: Apache-2.0

// Command legbrain is the GP-side daemon: it accepts WebSocket and
// serial command surfaces, drives sequence playback and autonomous
// scanning/obstacle avoidance, and is the sole writer to the shared
// ring. Grounded on brain_linux/brain_daemon/main.cpp's startup order
// and cmd/root.go's cobra flag layout.
package main

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	shmPath    string
	wsAddr     string
	serialPort string
	serialBaud int
	eyeSock    string
	configPath string
	logLevel   string
	logFile    string
	simRange   bool
)

var rootCmd = &cobra.Command{
	Use:   "legbrain",
	Short: "GP-side command and sensing daemon",
	Long: `legbrain accepts motion/eyes/sys commands over a WebSocket and a
line-oriented serial port, plays back named motion sequences, sweeps
an obstacle-sensing servo, and is the sole writer to the shared ring
the RT-side legmuscle daemon reads from.`,
	RunE: runBrain,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&shmPath, "shm-path", "/dev/shm/walkctl-ring", "path to the shared ring-backed file")
	rootCmd.PersistentFlags().StringVar(&wsAddr, "ws-addr", ":9000", "WebSocket listen address")
	rootCmd.PersistentFlags().StringVar(&serialPort, "serial-port", "", "serial device for the line command surface (empty disables it)")
	rootCmd.PersistentFlags().IntVar(&serialBaud, "serial-baud", 115200, "serial baud rate")
	rootCmd.PersistentFlags().StringVar(&eyeSock, "eye-sock", "", "Unix socket path for the eye service (empty disables eye events)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "JSON config file to load at startup (empty uses compiled-in defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "log level: DEBUG|INFO|WARN|ERROR")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&simRange, "sim-range", false, "use a simulated range sensor instead of a real VL53L0X")

	rootCmd.AddCommand(scanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configureLogging points the default logger at --log-file if set,
// matching cmd/root.go's flag-driven setup; level filtering is left to
// log.Printf call sites since the daemon has no DEBUG-level traffic
// that isn't already worth keeping.
func configureLogging() (io.Closer, error) {
	if logFile == "" {
		return nil, nil
	}
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return f, nil
}
