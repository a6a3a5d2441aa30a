// SPDX-License-Identifier: Apache-2.0

package lineserial

import (
	"strings"
	"testing"

	"github.com/brindlebot/walkctl/pkg/posepkt"
)

type fakeHandler struct {
	lastServoCh int
	lastServoUs uint16
	servos      [posepkt.ChannelCount]uint16
	moveTMs     uint32
	moveUs      [posepkt.ChannelCount]uint16
	scanUs      uint16
	estopped    bool
	resumed     bool
	status      string
	distance    int
	distanceErr error
}

func (f *fakeHandler) SetServo(channel int, us uint16) error {
	f.lastServoCh, f.lastServoUs = channel, us
	return nil
}
func (f *fakeHandler) SetServos(us [posepkt.ChannelCount]uint16) error { f.servos = us; return nil }
func (f *fakeHandler) Move(tMs uint32, us [posepkt.ChannelCount]uint16) error {
	f.moveTMs, f.moveUs = tMs, us
	return nil
}
func (f *fakeHandler) SetScan(us uint16) error { f.scanUs = us; return nil }
func (f *fakeHandler) Estop() error            { f.estopped = true; return nil }
func (f *fakeHandler) Resume() error           { f.resumed = true; return nil }
func (f *fakeHandler) Status() string          { return f.status }
func (f *fakeHandler) Distance() (int, error)  { return f.distance, f.distanceErr }

type fakeEyes struct {
	events []string
}

func (f *fakeEyes) SendEvent(json string) error {
	f.events = append(f.events, json)
	return nil
}

func newTestServer(h Handler, eyes EyeNotifier) *Server {
	return &Server{handler: h, eyes: eyes}
}

func captureResponses(s *Server, line string) []string {
	var got []string
	s.responseSink = func(msg string) { got = append(got, msg) }
	s.processLine(line)
	return got
}

func TestHandleServoAcceptsValidCommand(t *testing.T) {
	h := &fakeHandler{}
	s := newTestServer(h, nil)
	got := captureResponses(s, "SERVO 3 1800")
	if len(got) != 1 || got[0] != "OK 3 1800" {
		t.Fatalf("responses = %v, want OK 3 1800", got)
	}
	if h.lastServoCh != 3 || h.lastServoUs != 1800 {
		t.Fatalf("handler received ch=%d us=%d, want 3 1800", h.lastServoCh, h.lastServoUs)
	}
}

func TestHandleServoRejectsOutOfRange(t *testing.T) {
	h := &fakeHandler{}
	s := newTestServer(h, nil)
	got := captureResponses(s, "SERVO 3 9999")
	if len(got) != 1 || !strings.HasPrefix(got[0], "ERR") {
		t.Fatalf("responses = %v, want ERR", got)
	}
}

func TestHandleServoRejectsBadChannel(t *testing.T) {
	h := &fakeHandler{}
	s := newTestServer(h, nil)
	got := captureResponses(s, "SERVO 99 1500")
	if len(got) != 1 || !strings.HasPrefix(got[0], "ERR") {
		t.Fatalf("responses = %v, want ERR", got)
	}
}

func TestHandleEstopAndResume(t *testing.T) {
	h := &fakeHandler{}
	s := newTestServer(h, nil)
	captureResponses(s, "ESTOP")
	if !h.estopped {
		t.Fatalf("handler.estopped = false after ESTOP")
	}
	captureResponses(s, "RESUME")
	if !h.resumed {
		t.Fatalf("handler.resumed = false after RESUME")
	}
}

func TestHandleDistance(t *testing.T) {
	h := &fakeHandler{distance: 123}
	s := newTestServer(h, nil)
	got := captureResponses(s, "DISTANCE")
	if len(got) != 1 || got[0] != "OK 123" {
		t.Fatalf("responses = %v, want OK 123", got)
	}
}

func TestHandleEyeMoodValidatesChoices(t *testing.T) {
	eyes := &fakeEyes{}
	s := newTestServer(nil, eyes)
	got := captureResponses(s, "EYE MOOD angry")
	if len(got) != 1 || got[0] != "OK mood=angry" {
		t.Fatalf("responses = %v, want OK mood=angry", got)
	}
	if len(eyes.events) != 1 {
		t.Fatalf("eyes.events = %v, want one event", eyes.events)
	}
}

func TestHandleEyeMoodRejectsUnknown(t *testing.T) {
	eyes := &fakeEyes{}
	s := newTestServer(nil, eyes)
	got := captureResponses(s, "EYE MOOD confused")
	if len(got) != 1 || !strings.HasPrefix(got[0], "ERR") {
		t.Fatalf("responses = %v, want ERR", got)
	}
}

func TestUnknownCommandReturnsErr(t *testing.T) {
	s := newTestServer(nil, nil)
	got := captureResponses(s, "BOGUS")
	if len(got) != 1 || got[0] != "ERR unknown command" {
		t.Fatalf("responses = %v, want ERR unknown command", got)
	}
}
