// SPDX-License-Identifier: Apache-2.0

// Package lineserial runs the text-based line command interface over a
// serial port, supporting the same command set as the WebSocket
// server for embedded controllers that can't speak JSON-over-WS.
// Grounded verbatim on brain_linux/src/serial_control.cpp's command
// table (STATUS/SERVO/SERVOS/MOVE/SCAN/ESTOP/RESUME/EYE/DISTANCE).
package lineserial

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial"

	"github.com/brindlebot/walkctl/pkg/posepkt"
)

// Handler is the robot-side surface the line commands drive. Satisfied
// by a thin adapter over internal/pipeline, internal/scan, and
// internal/rangesensor in cmd/legbrain.
type Handler interface {
	SetServo(channel int, us uint16) error
	SetServos(us [posepkt.ChannelCount]uint16) error
	Move(tMs uint32, us [posepkt.ChannelCount]uint16) error
	SetScan(us uint16) error
	Estop() error
	Resume() error
	Status() string
	Distance() (int, error)
}

// EyeNotifier is the minimal eye-service surface EYE commands need.
// Satisfied by internal/eyeclient.Client.
type EyeNotifier interface {
	SendEvent(json string) error
}

// Server owns one open serial port and the line-parsing loop over it.
type Server struct {
	port    serial.Port
	reader  *bufio.Reader
	handler Handler
	eyes    EyeNotifier

	// responseSink, when set, receives every outgoing response instead
	// of the serial port; tests use this to capture responses without
	// a real port.
	responseSink func(string)
}

// Open opens path at baud with 8-N-1 framing, matching the original's
// termios setup (raw mode, no flow control).
func Open(path string, baud int) (*Server, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("lineserial: open %s: %w", path, err)
	}
	return &Server{port: port, reader: bufio.NewReader(port)}, nil
}

// SetHandler installs the command handler.
func (s *Server) SetHandler(h Handler) { s.handler = h }

// SetEyes installs the eye-service notifier for EYE commands.
func (s *Server) SetEyes(eyes EyeNotifier) { s.eyes = eyes }

// Close releases the underlying port.
func (s *Server) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}

// Run reads lines until ctx is canceled or the port errors, dispatching
// each non-empty line to processLine.
func (s *Server) Run(ctx context.Context) error {
	s.sendResponse("OK Spider v3.1 Serial Ready")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, err := s.reader.ReadString('\n')
		if line != "" {
			s.processLine(strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			return err
		}
	}
}

func (s *Server) sendResponse(msg string) {
	if s.responseSink != nil {
		s.responseSink(msg)
		return
	}
	if s.port == nil {
		return
	}
	s.port.Write([]byte(msg + "\r\n"))
}

func (s *Server) processLine(line string) {
	if line == "" {
		return
	}

	cmd, args, _ := strings.Cut(line, " ")
	cmd = strings.ToUpper(cmd)

	switch cmd {
	case "STATUS":
		s.handleStatus()
	case "SERVO":
		s.handleServo(args)
	case "SERVOS":
		s.handleServos(args)
	case "MOVE":
		s.handleMove(args)
	case "SCAN":
		s.handleScan(args)
	case "ESTOP":
		s.handleEstop()
	case "RESUME":
		s.handleResume()
	case "EYE":
		s.handleEye(args)
	case "DISTANCE":
		s.handleDistance()
	case "HELP", "?":
		s.sendResponse("OK Commands: STATUS SERVO SERVOS MOVE SCAN ESTOP RESUME EYE DISTANCE")
	default:
		s.sendResponse("ERR unknown command")
	}
}

func (s *Server) handleStatus() {
	if s.handler == nil {
		s.sendResponse("OK ready")
		return
	}
	s.sendResponse("OK " + s.handler.Status())
}

func (s *Server) handleServo(args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		s.sendResponse("ERR usage: SERVO <ch> <us>")
		return
	}
	channel, err1 := strconv.Atoi(fields[0])
	us, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		s.sendResponse("ERR usage: SERVO <ch> <us>")
		return
	}
	if channel < 0 || channel >= posepkt.ChannelCount {
		s.sendResponse("ERR invalid channel (0-12)")
		return
	}
	if uint16(us) < posepkt.PWMMinUs || uint16(us) > posepkt.PWMMaxUs {
		s.sendResponse("ERR us out of range (500-2500)")
		return
	}

	if s.handler != nil {
		if err := s.handler.SetServo(channel, uint16(us)); err != nil {
			s.sendResponse("ERR " + err.Error())
			return
		}
	}
	s.sendResponse(fmt.Sprintf("OK %d %d", channel, us))
}

func (s *Server) handleServos(args string) {
	values, err := parseUsList(args)
	if err != nil {
		s.sendResponse("ERR " + err.Error())
		return
	}
	if len(values) != posepkt.ChannelCount {
		s.sendResponse(fmt.Sprintf("ERR expected %d values, got %d", posepkt.ChannelCount, len(values)))
		return
	}

	var us [posepkt.ChannelCount]uint16
	copy(us[:], values)

	if s.handler != nil {
		if err := s.handler.SetServos(us); err != nil {
			s.sendResponse("ERR " + err.Error())
			return
		}
	}
	s.sendResponse("OK")
}

func (s *Server) handleMove(args string) {
	fields := strings.Fields(args)
	if len(fields) != posepkt.ChannelCount+1 {
		s.sendResponse(fmt.Sprintf("ERR expected t_ms + %d values, got %d", posepkt.ChannelCount, max(0, len(fields)-1)))
		return
	}

	tMs, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		s.sendResponse("ERR invalid t_ms")
		return
	}

	var us [posepkt.ChannelCount]uint16
	for i := 0; i < posepkt.ChannelCount; i++ {
		v, err := strconv.Atoi(fields[i+1])
		if err != nil || uint16(v) < posepkt.PWMMinUs || uint16(v) > posepkt.PWMMaxUs {
			s.sendResponse("ERR servo value out of range (500-2500)")
			return
		}
		us[i] = uint16(v)
	}

	if s.handler != nil {
		if err := s.handler.Move(uint32(tMs), us); err != nil {
			s.sendResponse("ERR " + err.Error())
			return
		}
	}
	s.sendResponse(fmt.Sprintf("OK t=%d", tMs))
}

func (s *Server) handleScan(args string) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		s.sendResponse("ERR usage: SCAN <us>")
		return
	}
	us, err := strconv.Atoi(fields[0])
	if err != nil {
		s.sendResponse("ERR usage: SCAN <us>")
		return
	}
	if uint16(us) < posepkt.PWMMinUs || uint16(us) > posepkt.PWMMaxUs {
		s.sendResponse("ERR us out of range (500-2500)")
		return
	}

	if s.handler != nil {
		if err := s.handler.SetScan(uint16(us)); err != nil {
			s.sendResponse("ERR " + err.Error())
			return
		}
	}
	s.sendResponse(fmt.Sprintf("OK scan=%d", us))
}

func (s *Server) handleEstop() {
	if s.handler != nil {
		if err := s.handler.Estop(); err != nil {
			s.sendResponse("ERR " + err.Error())
			return
		}
	}
	s.sendResponse("OK ESTOP")
}

func (s *Server) handleResume() {
	if s.handler != nil {
		if err := s.handler.Resume(); err != nil {
			s.sendResponse("ERR " + err.Error())
			return
		}
	}
	s.sendResponse("OK RESUMED")
}

func (s *Server) handleDistance() {
	if s.handler == nil {
		s.sendResponse("ERR distance sensor unavailable")
		return
	}
	distance, err := s.handler.Distance()
	if err != nil || distance < 0 {
		s.sendResponse("ERR distance read failed")
		return
	}
	s.sendResponse(fmt.Sprintf("OK %d", distance))
}

func (s *Server) handleEye(args string) {
	if s.eyes == nil {
		s.sendResponse("ERR eye service unavailable")
		return
	}

	subcmd, subargs, _ := strings.Cut(args, " ")
	subcmd = strings.ToUpper(subcmd)

	switch subcmd {
	case "MOOD":
		s.handleEyeMood(subargs)
	case "LOOK":
		s.handleEyeLook(subargs)
	case "BLINK":
		s.sendEyeEvent(`{"v":"3.1","type":"eyes","msg":{"cmd":"blink"}}`, "OK blink")
	case "WINK":
		s.handleEyeWink(subargs)
	default:
		s.sendResponse("ERR unknown eye command (MOOD|LOOK|BLINK|WINK)")
	}
}

func (s *Server) handleEyeMood(arg string) {
	mood := strings.ToLower(arg)
	switch mood {
	case "normal", "angry", "happy", "sleepy":
	default:
		s.sendResponse("ERR mood must be: normal|angry|happy|sleepy")
		return
	}
	s.sendEyeEvent(`{"v":"3.1","type":"eyes","msg":{"cmd":"mood","mood":"`+mood+`"}}`, "OK mood="+mood)
}

func (s *Server) handleEyeLook(args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		s.sendResponse("ERR usage: EYE LOOK <x> <y>")
		return
	}
	x, err1 := strconv.ParseFloat(fields[0], 64)
	y, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		s.sendResponse("ERR usage: EYE LOOK <x> <y>")
		return
	}
	x = clamp(x, -1, 1)
	y = clamp(y, -1, 1)

	event := fmt.Sprintf(`{"v":"3.1","type":"eyes","msg":{"cmd":"look","L":{"x":%.2f,"y":%.2f},"R":{"x":%.2f,"y":%.2f}}}`, x, y, x, y)
	s.sendEyeEvent(event, fmt.Sprintf("OK look=%.2f,%.2f", x, y))
}

func (s *Server) handleEyeWink(arg string) {
	eye := strings.ToLower(arg)
	if eye != "left" && eye != "right" {
		s.sendResponse("ERR wink must be: left|right")
		return
	}
	s.sendEyeEvent(`{"v":"3.1","type":"eyes","msg":{"cmd":"wink","eye":"`+eye+`"}}`, "OK wink="+eye)
}

func (s *Server) sendEyeEvent(event, okResponse string) {
	if err := s.eyes.SendEvent(event); err != nil {
		s.sendResponse("ERR eye command failed")
		return
	}
	s.sendResponse(okResponse)
}

func parseUsList(args string) ([]uint16, error) {
	fields := strings.Fields(args)
	out := make([]uint16, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", f)
		}
		if uint16(v) < posepkt.PWMMinUs || uint16(v) > posepkt.PWMMaxUs {
			return nil, fmt.Errorf("value out of range (500-2500)")
		}
		out = append(out, uint16(v))
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
