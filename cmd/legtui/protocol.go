// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
)

// errNotConnected is returned by command senders when no socket is
// open yet.
var errNotConnected = errors.New("legtui: not connected")

// wireEnvelope is the client-side view of the same {"v","type","msg"}
// envelope internal/wsserver decodes, kept separate since a real
// client has no reason to import the daemon's server package.
type wireEnvelope struct {
	V    string          `json:"v"`
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

type telemetryMsg struct {
	UptimeS     uint32  `json:"uptime_s"`
	LoopHz      float64 `json:"loop_hz"`
	PacketsSent uint32  `json:"packets_sent"`
	State       string  `json:"state"`
}

type errorMsg struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ackMsg struct {
	Cmd string `json:"cmd"`
}

// decodeFrame parses one inbound text frame into whichever of
// telemetry/error/ack it declares.
func decodeFrame(data []byte) (kind string, telemetry *telemetryMsg, errPayload *errorMsg, ack *ackMsg, err error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, nil, nil, fmt.Errorf("legtui: invalid frame: %w", err)
	}
	switch env.Type {
	case "telemetry":
		var t telemetryMsg
		if err := json.Unmarshal(env.Msg, &t); err != nil {
			return "", nil, nil, nil, err
		}
		return "telemetry", &t, nil, nil, nil
	case "error":
		var e errorMsg
		if err := json.Unmarshal(env.Msg, &e); err != nil {
			return "", nil, nil, nil, err
		}
		return "error", nil, &e, nil, nil
	case "ack":
		var a ackMsg
		if err := json.Unmarshal(env.Msg, &a); err != nil {
			return "", nil, nil, nil, err
		}
		return "ack", nil, nil, &a, nil
	default:
		return env.Type, nil, nil, nil, nil
	}
}

// encodeMotion builds an outbound "motion" envelope queuing the named
// sequence, matching rawMotionMsg's wire shape on the server side: the
// server takes the sequence name from "cmd". The continuous request
// travels in "mode", which the server does not act on, so a continuous
// queue plays the sequence the same way a plain one does.
func encodeMotion(seqName string, continuous bool) ([]byte, error) {
	mode := "start"
	if continuous {
		mode = "start_continuous"
	}
	return json.Marshal(struct {
		V    string `json:"v"`
		Type string `json:"type"`
		Msg  struct {
			Mode string `json:"mode"`
			Cmd  string `json:"cmd"`
		} `json:"msg"`
	}{
		V: "3.1", Type: "motion",
		Msg: struct {
			Mode string `json:"mode"`
			Cmd  string `json:"cmd"`
		}{Mode: mode, Cmd: seqName},
	})
}

// encodeSystem builds an outbound "sys" envelope for stop/estop/clear_estop.
func encodeSystem(sysCmd string) ([]byte, error) {
	return json.Marshal(struct {
		V    string `json:"v"`
		Type string `json:"type"`
		Msg  struct {
			Cmd string `json:"cmd"`
		} `json:"msg"`
	}{
		V: "3.1", Type: "sys",
		Msg: struct {
			Cmd string `json:"cmd"`
		}{Cmd: sysCmd},
	})
}
