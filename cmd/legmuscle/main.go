// SPDX-License-Identifier: Apache-2.0

// Command legmuscle is the RT-side daemon: it maps the shared ring,
// runs the watchdog and motion runtime at their fixed priorities, and
// drives a PCA9685 (or simulated) PWM sink. Grounded on
// muscle_rtos/main.c's three-task startup order and cmd/root.go's
// cobra flag layout.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/brindlebot/walkctl/internal/motion"
	"github.com/brindlebot/walkctl/internal/pwmsink"
	"github.com/brindlebot/walkctl/internal/ring"
	"github.com/brindlebot/walkctl/internal/safety"
)

var (
	shmPath  string
	i2cBus   string
	i2cAddr  uint16
	simMode  bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "legmuscle",
	Short: "RT-side motion and PWM daemon",
	Long: `legmuscle drains the brain-side shared ring at a fixed 50 Hz tick,
enforces ESTOP/HOLD precedence ahead of interpolation, and writes the
resulting pose to a PCA9685 PWM controller (or an in-memory sink with
--sim), independently watchdogging heartbeat silence from the brain
process.`,
	RunE: runMuscle,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&shmPath, "shm-path", "/dev/shm/walkctl-ring", "path to the shared ring-backed file")
	rootCmd.PersistentFlags().StringVar(&i2cBus, "pwm-i2c-bus", "", "I2C bus device for the PCA9685 (e.g. /dev/i2c-1)")
	rootCmd.PersistentFlags().Uint16Var(&i2cAddr, "pwm-i2c-addr", pwmsink.DefaultAddr, "I2C address of the PCA9685")
	rootCmd.PersistentFlags().BoolVar(&simMode, "sim", false, "use an in-memory PWM sink instead of real I2C hardware")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "log level: DEBUG|INFO|WARN|ERROR")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMuscle(cmd *cobra.Command, args []string) error {
	sink, closeSink, err := openSink()
	if err != nil {
		return err
	}
	defer closeSink()

	r, closeRing, err := openRing()
	if err != nil {
		return err
	}
	defer closeRing()

	faults := &safety.Faults{}
	wd := safety.NewWatchdog(faults)
	rt := motion.NewRuntime(r, sink, wd, faults)

	wd.OnEstop = func() { log.Printf("legmuscle: watchdog forced ESTOP") }
	wd.OnTimeout = func() { log.Printf("legmuscle: heartbeat timeout") }

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runWatchdogPinned(ctx, wd)

	// Muscle only ORs its own ready bit in rather than resetting the
	// header: it owns read_idx but not write_idx, and zeroing the header
	// is left to the brain side's ResetHeader.
	r.SetFlag(ring.FlagMuscleReady)
	defer r.ClearFlag(ring.FlagMuscleReady)

	log.Printf("legmuscle: running (shm=%s sim=%v)", shmPath, simMode)
	rt.Run(ctx)
	log.Printf("legmuscle: shut down cleanly, faults=0x%08x", faults.All())
	return nil
}

// runWatchdogPinned locks the watchdog's goroutine to its own OS
// thread and raises its scheduling priority where permitted, standing
// in for the original's dedicated highest-priority FreeRTOS task.
func runWatchdogPinned(ctx context.Context, wd *safety.Watchdog) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, -10); err != nil {
		log.Printf("legmuscle: watchdog priority hint unavailable: %v", err)
	}
	wd.Run(ctx)
}

func openSink() (pwmsink.Sink, func(), error) {
	if simMode || i2cBus == "" {
		log.Printf("legmuscle: using simulated PWM sink")
		sim := pwmsink.NewSim()
		return sim, func() { sim.Close() }, nil
	}

	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("legmuscle: periph host init: %w", err)
	}
	bus, err := i2creg.Open(i2cBus)
	if err != nil {
		return nil, nil, fmt.Errorf("legmuscle: open i2c bus %s: %w", i2cBus, err)
	}
	dev, err := pwmsink.OpenPCA9685(bus, i2cAddr)
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("legmuscle: init PCA9685: %w", err)
	}
	return dev, func() { dev.Close(); bus.Close() }, nil
}

func openRing() (*ring.Ring, func(), error) {
	mapped, err := ring.OpenShared(shmPath)
	if err != nil {
		return nil, nil, fmt.Errorf("legmuscle: open shared ring: %w", err)
	}
	r, err := ring.New(mapped.Bytes())
	if err != nil {
		mapped.Close()
		return nil, nil, fmt.Errorf("legmuscle: wrap shared ring: %w", err)
	}
	return r, func() { mapped.Close() }, nil
}
