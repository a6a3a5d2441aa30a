// SPDX-License-Identifier: Apache-2.0

// Package wsserver exposes the brain daemon's JSON protocol v3.1 over
// a WebSocket, replacing the original's hand-rolled string-scanning
// parser and its own TODO-stub socket loop with encoding/json envelope
// decoding and a real gorilla/websocket server. Grounded on
// brain_daemon/json_protocol.cpp (envelope/type schema) and
// brain_daemon/ws_server.cpp (dispatch table).
package wsserver

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the only envelope version this package accepts.
const ProtocolVersion = "3.1"

// Envelope is the outer shape of every message in both directions:
// {"v":"3.1","type":"...","msg":{...}}.
type Envelope struct {
	V    string          `json:"v"`
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

// MotionMsg is the payload of a "motion" envelope.
type MotionMsg struct {
	Mode      string  `json:"mode,omitempty"`
	Cmd       string  `json:"cmd"`
	Interp    string  `json:"interp,omitempty"`
	VecFwd    float64 `json:"vec_fwd,omitempty"`
	VecStrafe float64 `json:"vec_strafe,omitempty"`
	VecTurn   float64 `json:"vec_turn,omitempty"`
	Stride    float64 `json:"stride,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Lift      float64 `json:"lift,omitempty"`
}

type motionVec struct {
	Fwd    float64 `json:"fwd"`
	Strafe float64 `json:"strafe"`
	Turn   float64 `json:"turn"`
}

// rawMotionMsg mirrors the wire shape nested under "vec", which
// MotionMsg flattens for callers.
type rawMotionMsg struct {
	Mode   string     `json:"mode"`
	Cmd    string     `json:"cmd"`
	Interp string     `json:"interp"`
	Vec    *motionVec `json:"vec,omitempty"`
	Stride float64    `json:"stride,omitempty"`
	Speed  float64    `json:"speed,omitempty"`
	Lift   float64    `json:"lift,omitempty"`
}

// EyeMsg is the payload of an "eyes" envelope.
type EyeMsg struct {
	Cmd       string  `json:"cmd"`
	Mode      string  `json:"mode,omitempty"`
	Mood      string  `json:"mood,omitempty"`
	Eye       string  `json:"eye,omitempty"`
	Backlight int     `json:"bl,omitempty"`
	LX        float64 `json:"lx,omitempty"`
	LY        float64 `json:"ly,omitempty"`
	RX        float64 `json:"rx,omitempty"`
	RY        float64 `json:"ry,omitempty"`
}

// SystemMsg is the payload of a "sys" envelope.
type SystemMsg struct {
	Cmd      string `json:"cmd"`
	Wakepose string `json:"wakepose,omitempty"`
}

// ParseResult is the decoded form of one client message.
type ParseResult struct {
	Type   string
	Motion *MotionMsg
	Eye    *EyeMsg
	System *SystemMsg
}

// ParseMessage validates the envelope and decodes its msg payload into
// the field matching its type.
func ParseMessage(data []byte) (ParseResult, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ParseResult{}, fmt.Errorf("wsserver: invalid envelope: %w", err)
	}
	if env.V != ProtocolVersion {
		return ParseResult{}, fmt.Errorf("wsserver: unsupported protocol version %q", env.V)
	}
	if env.Type == "" {
		return ParseResult{}, fmt.Errorf("wsserver: missing type")
	}

	result := ParseResult{Type: env.Type}
	switch env.Type {
	case "motion":
		var raw rawMotionMsg
		if err := json.Unmarshal(env.Msg, &raw); err != nil {
			return ParseResult{}, fmt.Errorf("wsserver: invalid motion msg: %w", err)
		}
		m := &MotionMsg{Mode: raw.Mode, Cmd: raw.Cmd, Interp: raw.Interp, Stride: raw.Stride, Speed: raw.Speed, Lift: raw.Lift}
		if m.Interp == "" {
			m.Interp = "float"
		}
		if raw.Vec != nil {
			m.VecFwd = clampFloat(raw.Vec.Fwd, -1, 1)
			m.VecStrafe = clampFloat(raw.Vec.Strafe, -1, 1)
			m.VecTurn = clampFloat(raw.Vec.Turn, -1, 1)
		}
		result.Motion = m
	case "eyes":
		var e EyeMsg
		if err := json.Unmarshal(env.Msg, &e); err != nil {
			return ParseResult{}, fmt.Errorf("wsserver: invalid eyes msg: %w", err)
		}
		if e.Eye == "" {
			e.Eye = "both"
		}
		e.Backlight = clampInt(e.Backlight, 0, 255)
		result.Eye = &e
	case "sys":
		var s SystemMsg
		if err := json.Unmarshal(env.Msg, &s); err != nil {
			return ParseResult{}, fmt.Errorf("wsserver: invalid sys msg: %w", err)
		}
		result.System = &s
	default:
		return ParseResult{}, fmt.Errorf("wsserver: unknown type %q", env.Type)
	}
	return result, nil
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// TelemetryResponse builds a "telemetry" envelope.
func TelemetryResponse(uptimeS uint32, loopHz float64, packetsSent uint32, state string) ([]byte, error) {
	return json.Marshal(struct {
		V    string `json:"v"`
		Type string `json:"type"`
		Msg  struct {
			UptimeS     uint32  `json:"uptime_s"`
			LoopHz      float64 `json:"loop_hz"`
			PacketsSent uint32  `json:"packets_sent"`
			State       string  `json:"state"`
		} `json:"msg"`
	}{
		V: ProtocolVersion, Type: "telemetry",
		Msg: struct {
			UptimeS     uint32  `json:"uptime_s"`
			LoopHz      float64 `json:"loop_hz"`
			PacketsSent uint32  `json:"packets_sent"`
			State       string  `json:"state"`
		}{UptimeS: uptimeS, LoopHz: loopHz, PacketsSent: packetsSent, State: state},
	})
}

// ErrorResponse builds an "error" envelope.
func ErrorResponse(code int, message string) ([]byte, error) {
	return json.Marshal(struct {
		V    string `json:"v"`
		Type string `json:"type"`
		Msg  struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"msg"`
	}{
		V: ProtocolVersion, Type: "error",
		Msg: struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}{Code: code, Message: message},
	})
}

// AckResponse builds an "ack" envelope.
func AckResponse(cmd string) ([]byte, error) {
	return json.Marshal(struct {
		V    string `json:"v"`
		Type string `json:"type"`
		Msg  struct {
			Cmd string `json:"cmd"`
		} `json:"msg"`
	}{
		V: ProtocolVersion, Type: "ack",
		Msg: struct {
			Cmd string `json:"cmd"`
		}{Cmd: cmd},
	})
}
