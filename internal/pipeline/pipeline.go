// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/brindlebot/walkctl/internal/ring"
	"github.com/brindlebot/walkctl/internal/sequence"
	"github.com/brindlebot/walkctl/pkg/posepkt"
)

// HeartbeatPeriod is the minimum cadence at which a HOLD packet carrying
// the current pose goes out even when nothing else changed, so the
// muscle side's watchdog never starves during an idle period.
const HeartbeatPeriod = 100 * time.Millisecond

// EyeNotifier is the minimal surface the pipeline needs from the eye
// client: fire-and-forget JSON mood/look events. Satisfied by
// internal/eyeclient.Client; a nil EyeNotifier is a silent no-op so the
// pipeline can run headless in tests.
type EyeNotifier interface {
	SendEvent(json string) error
}

type nopEyeNotifier struct{}

func (nopEyeNotifier) SendEvent(string) error { return nil }

// Producer is the outbound half of the shared ring: push a packet into
// the slot array, then ring the doorbell so the muscle side wakes up
// without polling.
type Producer struct {
	Ring     *ring.Ring
	Doorbell *ring.Doorbell

	// mu serializes Send: the ring takes one producer at a time, and
	// both the pipeline's tick loop and direct line commands call Send.
	mu sync.Mutex
}

// Send pushes pkt into the ring and rings the doorbell. Exported so
// command surfaces that bypass sequence playback (direct SERVO/MOVE
// commands from internal/lineserial) can reach the same ring without
// going through the pipeline's queue.
func (p *Producer) Send(pkt posepkt.Packet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Ring.Push(pkt); err != nil {
		return fmt.Errorf("pipeline: push: %w", err)
	}
	if err := p.Doorbell.Notify(ring.CmdMotionPacket, pkt.Seq); err != nil {
		return fmt.Errorf("pipeline: notify: %w", err)
	}
	return nil
}

// Pipeline is the brain-side command loop: it owns the current pose,
// the command queue, sequence playback, and heartbeat cadence. The
// line-serial direct-drive commands push to the same shared ring through
// its Producer, outside this queue (see NextSeq). Grounded on
// archive/brain_daemon_skeleton/task_manager.cpp's TaskManager.
type Pipeline struct {
	producer *Producer
	eyes     EyeNotifier
	store    *sequence.Store

	mu sync.Mutex

	mode            Mode
	estopActive     bool
	currentPose     [posepkt.ChannelCount]uint16
	packetSeq       uint32
	lastHeartbeat   time.Time
	queue           []Command
	iterator        *sequence.Iterator
	currentSeqName  string
	continuous      bool
	frameStart      time.Time
	frameStartIsSet bool
}

// New builds a Pipeline that sends packets through producer and, if
// eyes is non-nil, emits mood events through it. store may be nil and
// loaded later with LoadMotionSequences.
func New(producer *Producer, eyes EyeNotifier, store *sequence.Store) *Pipeline {
	if eyes == nil {
		eyes = nopEyeNotifier{}
	}
	pl := &Pipeline{
		producer:      producer,
		eyes:          eyes,
		store:         store,
		lastHeartbeat: time.Now(),
		// seq 0 is reserved for "uninitialized": the consumer's
		// lastSeq starts at 0 and accepts anything > lastSeq, so a
		// packet with seq 0 would be indistinguishable from nothing
		// having been sent yet and gets silently dropped.
		packetSeq: 1,
	}
	for i := range pl.currentPose {
		pl.currentPose[i] = posepkt.PWMNeutralUs
	}
	return pl
}

// LoadMotionSequences loads named sequences from a JSON file, replacing
// any previously loaded set.
func (pl *Pipeline) LoadMotionSequences(path string) error {
	store, err := sequence.LoadFile(path)
	if err != nil {
		return err
	}
	pl.mu.Lock()
	pl.store = store
	pl.mu.Unlock()
	return nil
}

// Mode reports the pipeline's current motion mode.
func (pl *Pipeline) Mode() Mode {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.mode
}

// IsEstop reports whether ESTOP is currently latched.
func (pl *Pipeline) IsEstop() bool {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.estopActive
}

// CurrentPose returns a copy of the pose last sent to the muscle side.
func (pl *Pipeline) CurrentPose() [posepkt.ChannelCount]uint16 {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.currentPose
}

// QueueMotion enqueues a motion command for the next Tick to pick up.
// Commands are dropped while ESTOP is latched, matching the original's
// refusal to queue motion during an emergency stop.
func (pl *Pipeline) QueueMotion(cmd Command) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.estopActive {
		return
	}
	pl.queue = append(pl.queue, cmd)
}

// Stop clears the pending queue and returns to idle without touching
// the ESTOP latch.
func (pl *Pipeline) Stop() {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.queue = nil
	pl.mode = ModeIdle
}

// Estop latches the emergency stop, drops the queue, sends an ESTOP
// packet immediately, and tells the eyes to look angry.
func (pl *Pipeline) Estop() error {
	pl.mu.Lock()
	pl.estopActive = true
	pl.queue = nil
	pl.mode = ModeIdle

	pkt := posepkt.New(pl.nextSeq())
	pkt.Flags |= posepkt.FlagEstop
	pl.mu.Unlock()

	if err := pl.producer.Send(pkt); err != nil {
		return err
	}
	return pl.eyes.SendEvent(`{"v":"3.1","type":"eyes","msg":{"cmd":"mood","mood":"angry"}}`)
}

// ClearEstop unlatches the emergency stop and tells the eyes to return
// to neutral. It does not resume motion; a fresh QueueMotion is
// required, matching the original.
func (pl *Pipeline) ClearEstop() error {
	pl.mu.Lock()
	pl.estopActive = false
	pl.mu.Unlock()
	return pl.eyes.SendEvent(`{"v":"3.1","type":"eyes","msg":{"cmd":"mood","mood":"neutral"}}`)
}

func (pl *Pipeline) nextSeq() uint32 {
	s := pl.packetSeq
	pl.packetSeq++
	return s
}

// NextSeq hands out the next packet sequence number under the
// pipeline's own lock. Anything else that writes packets to the same
// ring producer (the line-serial direct-drive commands, for instance)
// must draw from this counter too, or its packets and the pipeline's
// own heartbeats/motion frames will race each other's sequence numbers
// and the motion runtime's seq<=last_seq staleness check will spuriously
// reject valid packets.
func (pl *Pipeline) NextSeq() uint32 {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.nextSeq()
}

// Tick advances the pipeline by one step: emits a heartbeat if due,
// drains one queued command, and advances whichever motion mode is
// active. Call it on a fixed period (the brain's 20-50 ms tick);
// Tick itself does no sleeping.
func (pl *Pipeline) Tick() error {
	if err := pl.maybeSendHeartbeat(); err != nil {
		return err
	}
	pl.processMotionQueue()

	pl.mu.Lock()
	mode := pl.mode
	pl.mu.Unlock()

	switch mode {
	case ModeLegacyProgram:
		return pl.runLegacyProgram()
	default:
		return nil
	}
}

func (pl *Pipeline) maybeSendHeartbeat() error {
	pl.mu.Lock()
	due := time.Since(pl.lastHeartbeat) >= HeartbeatPeriod
	if !due {
		pl.mu.Unlock()
		return nil
	}
	pl.lastHeartbeat = time.Now()
	pkt := posepkt.New(pl.nextSeq())
	pkt.Flags = posepkt.FlagClampEnable | posepkt.FlagHold
	pkt.ServoUs = pl.currentPose
	pl.mu.Unlock()

	return pl.producer.Send(pkt)
}

func (pl *Pipeline) processMotionQueue() {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if len(pl.queue) == 0 {
		return
	}
	cmd := pl.queue[0]
	pl.queue = pl.queue[1:]
	pl.continuous = cmd.Continuous

	if pl.store == nil || !pl.store.Has(cmd.Name) {
		return
	}
	pl.startSequenceLocked(cmd.Name)
	pl.mode = ModeLegacyProgram
}

func (pl *Pipeline) startSequenceLocked(name string) {
	pl.iterator = sequence.NewIterator(pl.store.Get(name))
	pl.currentSeqName = name
	pl.frameStartIsSet = false
}

func (pl *Pipeline) runLegacyProgram() error {
	pl.mu.Lock()

	if pl.iterator == nil {
		pl.mode = ModeIdle
		pl.mu.Unlock()
		return nil
	}

	if pl.iterator.IsComplete() {
		if pl.continuous && pl.currentSeqName != "" {
			pl.iterator.Reset()
			pl.frameStartIsSet = false
		} else {
			pl.mode = ModeIdle
			pl.mu.Unlock()
			return nil
		}
	}

	if !pl.iterator.HasNext() {
		pl.mu.Unlock()
		return nil
	}

	frame := pl.iterator.Current()

	if !pl.frameStartIsSet {
		pl.currentPose = sequence.ExpandPose(frame)
		pkt := pl.buildPosePacketLocked(frame)
		pl.frameStart = time.Now()
		pl.frameStartIsSet = true
		pl.mu.Unlock()
		return pl.producer.Send(pkt)
	}

	elapsed := time.Since(pl.frameStart)
	if elapsed >= time.Duration(frame.TMs)*time.Millisecond {
		pl.iterator.Next()
		pl.frameStartIsSet = false
	}
	pl.mu.Unlock()
	return nil
}

// buildPosePacketLocked must be called with pl.mu held.
func (pl *Pipeline) buildPosePacketLocked(frame sequence.Frame) posepkt.Packet {
	pkt := posepkt.New(pl.nextSeq())
	pkt.ServoUs = pl.currentPose
	pkt.Flags = posepkt.FlagClampEnable
	if pl.iterator.HasNext() {
		pkt.TMs = pl.iterator.Current().TMs
	} else {
		pkt.TMs = 20
	}
	return pkt
}
