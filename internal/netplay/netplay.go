// Package netplay implements the Pokémon Mini's IR-link netplay
// transport: a 2-byte-message TCP protocol carrying IR bits between
// two cores, plus a cooperative "hard sync" lockstep that bounds how
// far either peer's clock may drift ahead of the other.
//
// There is no message-framing or netcode library anywhere in the
// retrieved pack (the nearest precedent, tap_device.go, talks directly
// to a TUN/TAP file descriptor via syscalls, not a socket library), so
// netplay reaches for stdlib net directly; its error-wrapping idiom
// is grounded on tap_device.go's own fmt.Errorf("...: %w", err) calls.
package netplay

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"time"
)

// messageTag identifies the 1-byte tag of each 2-byte wire message.
type messageTag uint8

const (
	tagIRBit     messageTag = 0x40 // payload byte: 0/1, the transmitted IR bit
	tagSyncReq   messageTag = 0xFF // payload: sync_balance delta request
	tagSyncAck   messageTag = 0xF0 // payload unused
	tagSyncReady messageTag = 0xF1 // payload unused
	tagHeartbeat messageTag = 0x80 // payload unused, keeps the hard-sync timeout alive
)

// syncTimeout bounds how long Link.Sync will wait for the peer before
// giving up and returning an error.
const syncTimeout = 1 * time.Second

// Link is one end of a netplay connection.
type Link struct {
	conn net.Conn
	r    *bufio.Reader

	syncBalance int // this peer's lead, in instructions, over its partner
}

// Dial connects to a peer already listening via Listen.
func Dial(address string) (*Link, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("netplay: dial %s: %w", address, err)
	}
	return newLink(conn), nil
}

// Listen accepts one incoming peer connection on address and blocks
// until it arrives.
func Listen(address string) (*Link, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("netplay: listen on %s: %w", address, err)
	}
	defer ln.Close()

	conn, err := ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("netplay: accept connection: %w", err)
	}
	return newLink(conn), nil
}

func newLink(conn net.Conn) *Link {
	return &Link{conn: conn, r: bufio.NewReader(conn)}
}

// Close shuts down the underlying connection.
func (l *Link) Close() error { return l.conn.Close() }

func (l *Link) send(tag messageTag, payload uint8) error {
	buf := [2]uint8{uint8(tag), payload}
	if _, err := l.conn.Write(buf[:]); err != nil {
		return fmt.Errorf("netplay: send: %w", err)
	}
	return nil
}

func (l *Link) recv() (messageTag, uint8, error) {
	var buf [2]uint8
	if _, err := l.r.Read(buf[:1]); err != nil {
		return 0, 0, fmt.Errorf("netplay: recv tag: %w", err)
	}
	if _, err := l.r.Read(buf[1:2]); err != nil {
		return 0, 0, fmt.Errorf("netplay: recv payload: %w", err)
	}
	return messageTag(buf[0]), buf[1], nil
}

// SendIRBit transmits one bit of the local IR output to the peer,
// called from internal/irlink.Link's Remote hook.
func (l *Link) SendIRBit(bit bool) error {
	var payload uint8
	if bit {
		payload = 1
	}
	return l.send(tagIRBit, payload)
}

// PollIRBit does a single non-blocking-style read attempt for a queued
// IR bit message rather than one blocking Read call. Callers loop this
// once per scheduler tick; ok is false when nothing was queued to read
// yet.
func (l *Link) PollIRBit(deadline time.Time) (bit bool, ok bool, err error) {
	if err := l.conn.SetReadDeadline(deadline); err != nil {
		return false, false, fmt.Errorf("netplay: set deadline: %w", err)
	}
	tag, payload, err := l.recv()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return false, false, nil
		}
		return false, false, err
	}
	if tag != tagIRBit {
		return false, false, nil
	}
	return payload != 0, true, nil
}

// Sync performs one round of the hard-sync protocol: it reports this
// peer's current instruction-count lead via localBalance, exchanges it
// with the remote peer, and returns how many instructions this peer
// should stall to let the other catch up (always >= 0).
func (l *Link) Sync(localBalance int) (stallInstructions int, err error) {
	if err := l.conn.SetDeadline(time.Now().Add(syncTimeout)); err != nil {
		return 0, fmt.Errorf("netplay: set sync deadline: %w", err)
	}
	defer l.conn.SetDeadline(time.Time{})

	if err := l.sendBalance(localBalance); err != nil {
		return 0, err
	}

	remoteBalance, err := l.recvBalance()
	if err != nil {
		return 0, err
	}

	l.syncBalance = localBalance - remoteBalance
	if l.syncBalance <= 0 {
		return 0, nil
	}
	return l.syncBalance, nil
}

func (l *Link) sendBalance(balance int) error {
	payload := clampToByte(balance)
	if err := l.send(tagSyncReq, payload); err != nil {
		return err
	}
	return nil
}

func (l *Link) recvBalance() (int, error) {
	tag, payload, err := l.recv()
	if err != nil {
		return 0, fmt.Errorf("netplay: sync: %w", err)
	}
	if tag != tagSyncReq {
		return 0, fmt.Errorf("netplay: sync: unexpected message tag 0x%02X", tag)
	}
	return int(int8(payload)), nil
}

func clampToByte(v int) uint8 {
	if v > 127 {
		v = 127
	}
	if v < -128 {
		v = -128
	}
	return uint8(int8(v))
}
