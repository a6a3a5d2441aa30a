// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	tea "github.com/charmbracelet/bubbletea"
)

// dialWebSocket opens conn to url, grounded on cmd/connection.go's
// OpenWebSocketConnection dialer setup minus the HTTP Basic auth this
// protocol has no use for.
func dialWebSocket(ctx context.Context, url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// readLoop drains text frames from conn and forwards each as a tea.Msg
// until the connection errors or ctx is canceled, mirroring the
// original client's blocking read loop without needing the model to
// own the socket directly. It blocks until the connection drops.
func readLoop(ctx context.Context, p *tea.Program, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			p.Send(disconnectedMsg{err: err})
			return
		}
		p.Send(frameMsg{data: data})
	}
}

const reconnectBackoff = 2 * time.Second

// runConnectionSupervisor keeps a WebSocket connection alive for the
// lifetime of ctx: dial, hand the socket to the model, block in
// readLoop until it drops, then redial after a short backoff.
func runConnectionSupervisor(ctx context.Context, p *tea.Program, url string) {
	for ctx.Err() == nil {
		conn, err := dialWebSocket(ctx, url)
		if err != nil {
			p.Send(disconnectedMsg{err: err})
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectBackoff):
				continue
			}
		}

		p.Send(connectedMsg{conn: conn})
		readLoop(ctx, p, conn)
		conn.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectBackoff):
		}
	}
}

// sendEnvelope writes an outbound JSON envelope as a text frame.
func sendEnvelope(conn *websocket.Conn, payload []byte) error {
	if conn == nil {
		return errNotConnected
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
