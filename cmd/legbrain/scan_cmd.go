// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brindlebot/walkctl/internal/rangesensor"
	"github.com/brindlebot/walkctl/internal/scan"
)

var scanDumpSettle time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Standalone range-sweep diagnostics, independent of a running daemon",
}

var scanDumpCmd = &cobra.Command{
	Use:   "dump <output.cbor>",
	Short: "Sweep with a simulated range sensor for --settle, then save the points as a CBOR snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runScanDump,
}

var scanLoadCmd = &cobra.Command{
	Use:   "load <input.cbor>",
	Short: "Print the points stored in a CBOR scan snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runScanLoad,
}

func init() {
	scanDumpCmd.Flags().DurationVar(&scanDumpSettle, "settle", 5*time.Second, "how long to let the sweep run before dumping")
	scanCmd.AddCommand(scanDumpCmd, scanLoadCmd)
}

func runScanDump(cmd *cobra.Command, args []string) error {
	sensor := rangesensor.NewSim()
	defer sensor.Close()

	ctl := scan.New(nopSink{}, sensor)
	if simRange {
		ctl.SetProfile(scan.DefaultProfile())
	}

	if err := ctl.Start(); err != nil {
		return fmt.Errorf("legbrain: start sweep: %w", err)
	}

	deadline := time.Now().Add(scanDumpSettle)
	for time.Now().Before(deadline) {
		if err := ctl.Tick(); err != nil {
			return fmt.Errorf("legbrain: sweep tick: %w", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := ctl.Stop(); err != nil {
		return fmt.Errorf("legbrain: stop sweep: %w", err)
	}

	points := ctl.ScanData()
	if err := scan.DumpFile(args[0], points); err != nil {
		return fmt.Errorf("legbrain: dump snapshot: %w", err)
	}
	fmt.Printf("wrote %d points to %s\n", len(points), args[0])
	return nil
}

func runScanLoad(cmd *cobra.Command, args []string) error {
	points, err := scan.LoadFile(args[0])
	if err != nil {
		return fmt.Errorf("legbrain: load snapshot: %w", err)
	}
	for _, p := range points {
		fmt.Printf("%4d deg  %5d mm  %s\n", p.AngleDeg, p.DistanceMM, p.Timestamp.Format(time.RFC3339))
	}
	return nil
}
