// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/brindlebot/walkctl/internal/config"
	"github.com/brindlebot/walkctl/internal/eyeclient"
	"github.com/brindlebot/walkctl/internal/lineserial"
	"github.com/brindlebot/walkctl/internal/obstacle"
	"github.com/brindlebot/walkctl/internal/pipeline"
	"github.com/brindlebot/walkctl/internal/rangesensor"
	"github.com/brindlebot/walkctl/internal/ring"
	"github.com/brindlebot/walkctl/internal/scan"
	"github.com/brindlebot/walkctl/internal/telemetry"
	"github.com/brindlebot/walkctl/internal/wsserver"
	"github.com/brindlebot/walkctl/pkg/posepkt"
	"github.com/spf13/cobra"
)

// tickPeriod is the brain-side pipeline/scan/obstacle cadence, well
// under the muscle side's 250 ms heartbeat timeout.
const tickPeriod = 20 * time.Millisecond

// telemetryPeriod is how often the WebSocket surface broadcasts a
// telemetry snapshot to connected clients.
const telemetryPeriod = time.Second

func runBrain(cmd *cobra.Command, args []string) error {
	logCloser, err := configureLogging()
	if err != nil {
		return fmt.Errorf("legbrain: %w", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	cfg := config.New()
	if configPath != "" {
		if err := cfg.Load(configPath); err != nil {
			return fmt.Errorf("legbrain: load config: %w", err)
		}
	}

	mapped, err := ring.OpenShared(shmPath)
	if err != nil {
		return fmt.Errorf("legbrain: open shared ring: %w", err)
	}
	defer mapped.Close()
	r, err := ring.New(mapped.Bytes())
	if err != nil {
		return fmt.Errorf("legbrain: wrap shared ring: %w", err)
	}
	r.ResetHeader(ring.FlagBrainReady)
	defer r.ClearFlag(ring.FlagBrainReady)

	bell, err := ring.NewDoorbell(shmPath + ".brain.sock")
	if err != nil {
		return fmt.Errorf("legbrain: open doorbell: %w", err)
	}
	defer bell.Close()
	bell.Dial(shmPath + ".muscle.sock")

	producer := &pipeline.Producer{Ring: r, Doorbell: bell}

	var eyes *eyeclient.Client
	if eyeSock != "" && cfg.EnableEyeService {
		eyes, err = eyeclient.Dial(eyeSock)
		if err != nil {
			log.Printf("legbrain: eye service unavailable: %v", err)
		} else {
			defer eyes.Close()
		}
	}

	// eyes is a typed nil when dialing failed or was skipped; assigning
	// it to an interface variable unconditionally would produce a
	// non-nil interface wrapping a nil pointer, so only do so once we
	// know the pointer itself is non-nil.
	var plEyes pipeline.EyeNotifier
	var obEyes obstacle.EyeNotifier
	var lineEyes lineserial.EyeNotifier
	if eyes != nil {
		plEyes, obEyes, lineEyes = eyes, eyes, eyes
	}

	pl := pipeline.New(producer, plEyes, nil)
	if err := pl.LoadMotionSequences("sequences.json"); err != nil {
		log.Printf("legbrain: no motion sequences loaded: %v", err)
	}

	sensor, closeSensor := openRangeSensor()
	defer closeSensor()

	scanCtl := scan.New(nopSink{}, sensor)
	scanCtl.SetProfile(cfg.ScanProfile())

	obPolicy := obstacle.New(scanCtl, obEyes)
	obPolicy.SetEnabled(cfg.EnableObstacleAvoidance)

	wsSrv := wsserver.New(wsAddr, pl, eyes)
	if err := wsSrv.Start(); err != nil {
		return fmt.Errorf("legbrain: start websocket server: %w", err)
	}

	var lineSrv *lineserial.Server
	if serialPort != "" {
		lineSrv, err = lineserial.Open(serialPort, serialBaud)
		if err != nil {
			return fmt.Errorf("legbrain: open serial port: %w", err)
		}
		lineSrv.SetHandler(newLineHandler(pl, producer, scanCtl, sensor))
		lineSrv.SetEyes(lineEyes)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if lineSrv != nil {
		go func() {
			if err := lineSrv.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("legbrain: serial loop ended: %v", err)
			}
		}()
		defer lineSrv.Close()
	}

	if cfg.EnableScan {
		if err := scanCtl.Start(); err != nil {
			log.Printf("legbrain: scan start failed: %v", err)
		}
	}

	tracker := telemetry.NewTracker()
	log.Printf("legbrain: running (ws=%s serial=%q shm=%s)", wsAddr, serialPort, shmPath)
	runTickLoop(ctx, pl, scanCtl, obPolicy, wsSrv, tracker)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("legbrain: websocket shutdown: %v", err)
	}
	log.Printf("legbrain: shut down cleanly")
	return nil
}

func runTickLoop(ctx context.Context, pl *pipeline.Pipeline, scanCtl *scan.Controller, obPolicy *obstacle.Policy, wsSrv *wsserver.Server, tracker *telemetry.Tracker) {
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()
	telemetryTicker := time.NewTicker(telemetryPeriod)
	defer telemetryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pl.Tick(); err != nil {
				log.Printf("legbrain: pipeline tick: %v", err)
			}
			if err := scanCtl.Tick(); err != nil {
				log.Printf("legbrain: scan tick: %v", err)
			}
			if err := obPolicy.Tick(); err != nil {
				log.Printf("legbrain: obstacle tick: %v", err)
			}
			tracker.RecordTick()
		case <-telemetryTicker.C:
			snap := tracker.Snapshot(pl.Mode().String())
			payload, err := wsserver.TelemetryResponse(snap.UptimeS, snap.LoopHz, snap.PacketsSent, snap.State)
			if err != nil {
				log.Printf("legbrain: build telemetry: %v", err)
				continue
			}
			wsSrv.Broadcast(payload)
		}
	}
}

// openRangeSensor opens a real VL53L0X unless --sim-range was passed or
// no I2C stack is available, mirroring legmuscle's --sim fallback.
func openRangeSensor() (rangesensor.Sensor, func() error) {
	if simRange {
		sim := rangesensor.NewSim()
		return sim, sim.Close
	}

	if _, err := host.Init(); err != nil {
		log.Printf("legbrain: periph host init failed, using simulated range sensor: %v", err)
		sim := rangesensor.NewSim()
		return sim, sim.Close
	}
	bus, err := i2creg.Open("")
	if err != nil {
		log.Printf("legbrain: no i2c bus available, using simulated range sensor: %v", err)
		sim := rangesensor.NewSim()
		return sim, sim.Close
	}
	dev, err := rangesensor.OpenVL53L0X(bus, rangesensor.DefaultAddr)
	if err != nil {
		bus.Close()
		log.Printf("legbrain: VL53L0X init failed, using simulated range sensor: %v", err)
		sim := rangesensor.NewSim()
		return sim, sim.Close
	}
	return dev, func() error { dev.Close(); return bus.Close() }
}

// nopSink discards scan-servo commands; the brain process has no PWM
// hardware of its own, the scan servo's actual pulse width is carried
// in the pose packets legmuscle applies. Still useful for unit-testing
// scanCtl's sweep math in isolation.
type nopSink struct{}

func (nopSink) SetChannelUs(int, uint16) error                     { return nil }
func (nopSink) SetAllUs([posepkt.ChannelCount]uint16) error        { return nil }
func (nopSink) Sleep() error                                       { return nil }
func (nopSink) Wake() error                                        { return nil }
func (nopSink) Close() error                                       { return nil }
