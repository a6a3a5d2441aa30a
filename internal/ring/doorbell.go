// SPDX-License-Identifier: Apache-2.0

package ring

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
)

// Doorbell command codes, carried as the single byte that precedes the
// 4-byte little-endian parameter in every datagram (original_source
// mailbox.h CMD_MOTION_PACKET/CMD_HEARTBEAT/CMD_ESTOP over
// /dev/cvi-rtos-cmdqu, here a unixgram socket since neither process can
// claim the other's ioctl device node).
const (
	CmdHeartbeat    byte = 0x10
	CmdMotionPacket byte = 0x20
	CmdMotionAck    byte = 0x21
	CmdEstop        byte = 0x23
)

// Doorbell notifies a peer process across a unixgram socket that a new
// entry landed in the shared ring, replacing the mailbox IRQ the
// original raised through its ioctl command queue.
type Doorbell struct {
	conn *net.UnixConn
	peer *net.UnixAddr
}

// NewDoorbell binds a unixgram socket at localPath and, once Dial is
// called, sends to peerPath. localPath is removed and recreated on
// bind; callers on both ends must agree on which path is whose.
func NewDoorbell(localPath string) (*Doorbell, error) {
	addr := &net.UnixAddr{Name: localPath, Net: "unixgram"}
	_ = os.Remove(localPath)

	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("doorbell: listen %s: %w", localPath, err)
	}
	return &Doorbell{conn: conn}, nil
}

// Dial sets the peer address datagrams are sent to.
func (d *Doorbell) Dial(peerPath string) {
	d.peer = &net.UnixAddr{Name: peerPath, Net: "unixgram"}
}

// Notify sends a 5-byte doorbell datagram: cmd (1) + param (4, little
// endian), mirroring cmdqu_t's cmd_id/param_ptr pairing without the
// ip_id/block/resv fields the Linux-only transport has no use for.
func (d *Doorbell) Notify(cmd byte, param uint32) error {
	if d.peer == nil {
		return fmt.Errorf("doorbell: no peer dialed")
	}
	var buf [5]byte
	buf[0] = cmd
	binary.LittleEndian.PutUint32(buf[1:], param)

	_, err := d.conn.WriteToUnix(buf[:], d.peer)
	if err != nil {
		return fmt.Errorf("doorbell: write: %w", err)
	}
	return nil
}

// Recv blocks for the next doorbell datagram and returns its command
// and parameter.
func (d *Doorbell) Recv() (cmd byte, param uint32, err error) {
	var buf [5]byte
	n, _, err := d.conn.ReadFromUnix(buf[:])
	if err != nil {
		return 0, 0, fmt.Errorf("doorbell: read: %w", err)
	}
	if n < 5 {
		return 0, 0, fmt.Errorf("doorbell: short datagram (%d bytes)", n)
	}
	return buf[0], binary.LittleEndian.Uint32(buf[1:5]), nil
}

// Close releases the underlying socket.
func (d *Doorbell) Close() error {
	return d.conn.Close()
}
