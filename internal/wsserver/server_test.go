// SPDX-License-Identifier: Apache-2.0

package wsserver

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brindlebot/walkctl/internal/pipeline"
)

type fakeDispatcher struct {
	queued  []pipeline.Command
	stopped bool
	estop   bool
}

func (f *fakeDispatcher) QueueMotion(cmd pipeline.Command) { f.queued = append(f.queued, cmd) }
func (f *fakeDispatcher) Stop()                            { f.stopped = true }
func (f *fakeDispatcher) Estop() error                     { f.estop = true; return nil }
func (f *fakeDispatcher) ClearEstop() error                { f.estop = false; return nil }

func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestServerDispatchesMotionCommand(t *testing.T) {
	addr := freePort(t)
	task := &fakeDispatcher{}
	s := New(addr, task, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Shutdown(context.Background())

	conn := dialTestServer(t, addr)
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"v":"3.1","type":"motion","msg":{"cmd":"wave"}}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	waitForAck(t, conn)

	if len(task.queued) != 1 || task.queued[0].Name != "wave" {
		t.Fatalf("task.queued = %v, want one command named wave", task.queued)
	}
}

func TestServerDispatchesEstopAndClear(t *testing.T) {
	addr := freePort(t)
	task := &fakeDispatcher{}
	s := New(addr, task, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Shutdown(context.Background())

	conn := dialTestServer(t, addr)
	defer conn.Close()

	conn.WriteMessage(websocket.TextMessage, []byte(`{"v":"3.1","type":"sys","msg":{"cmd":"estop"}}`))
	waitForAck(t, conn)
	if !task.estop {
		t.Fatalf("task.estop = false after estop command")
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"v":"3.1","type":"sys","msg":{"cmd":"clear_estop"}}`))
	waitForAck(t, conn)
	if task.estop {
		t.Fatalf("task.estop = true after clear_estop command")
	}
}

func TestServerRespondsErrorOnInvalidEnvelope(t *testing.T) {
	addr := freePort(t)
	s := New(addr, &fakeDispatcher{}, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Shutdown(context.Background())

	conn := dialTestServer(t, addr)
	defer conn.Close()

	conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if !strings.Contains(string(data), `"type":"error"`) {
		t.Fatalf("response = %s, want an error envelope", data)
	}
}

func dialTestServer(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	var conn *websocket.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, _, err = websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
		if err == nil {
			return conn
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Dial() error = %v", err)
	return nil
}

func waitForAck(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if !strings.Contains(string(data), `"type":"ack"`) {
		t.Fatalf("response = %s, want ack", data)
	}
}
