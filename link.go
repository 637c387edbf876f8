package etun

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// HelloMagic opens the handshake a client sends on a new link.
const HelloMagic byte = 0x42

// MaxCompactFrameSize is the largest compact frame a link carries.
const MaxCompactFrameSize = 0xffff

// WelcomeStatus is the server's answer to a Hello.
type WelcomeStatus byte

const (
	WelcomeOK WelcomeStatus = iota
	WelcomeCatalogMismatch
	WelcomeNoAddress
)

var (
	InvalidMagicError    = errors.New("invalid magic byte")
	CatalogMismatchError = errors.New("peer uses a different ethertype catalog")
	NoAddressError       = errors.New("server has no address left")
	FrameTooLargeError   = errors.New("compact frame too large for link")
	UnknownWelcomeError  = errors.New("unknown welcome status")
)

// Link carries ethernet frames over a stream. Each frame is sent as a 2-byte
// big-endian length followed by its compact encoding.
//
// WriteFrame may be called concurrently. ReadFrame must only be called from one
// goroutine at a time.
type Link struct {
	conn  io.ReadWriteCloser
	table *EtherTypeTable

	txMu   sync.Mutex
	header [2]byte
}

func NewLink(conn io.ReadWriteCloser, table *EtherTypeTable) *Link {
	return &Link{
		conn:  conn,
		table: table,
	}
}

// Table returns the table the link translates EtherTypes with.
func (l *Link) Table() *EtherTypeTable {
	return l.table
}

// RemoteAddr returns the peer address if the link runs over a net.Conn.
func (l *Link) RemoteAddr() net.Addr {
	if conn, ok := l.conn.(net.Conn); ok {
		return conn.RemoteAddr()
	}
	return nil
}

func (l *Link) WriteFrame(frame EthernetFrame) error {
	data, err := EncodeCompactFrame(l.table, frame)
	if err != nil {
		return err
	}
	if len(data) > MaxCompactFrameSize {
		return fmt.Errorf("%w: %d bytes", FrameTooLargeError, len(data))
	}

	buf := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(buf, uint16(len(data)))
	copy(buf[2:], data)

	l.txMu.Lock()
	defer l.txMu.Unlock()

	_, err = l.conn.Write(buf)
	return err
}

func (l *Link) ReadFrame() (EthernetFrame, error) {
	if _, err := io.ReadFull(l.conn, l.header[:]); err != nil {
		return nil, err
	}

	data := make([]byte, binary.BigEndian.Uint16(l.header[:]))
	if _, err := io.ReadFull(l.conn, data); err != nil {
		return nil, err
	}

	return DecodeCompactFrame(l.table, data)
}

func (l *Link) Close() error {
	return l.conn.Close()
}

// SendHello announces mac and the link's catalog fingerprint to the server.
//
// Layout: magic(1) | fingerprint(4) | mac(6)
func (l *Link) SendHello(mac net.HardwareAddr) error {
	buf := make([]byte, 1+4+6)
	buf[0] = HelloMagic
	binary.BigEndian.PutUint32(buf[1:5], l.table.Fingerprint())
	copy(buf[5:], mac)

	l.txMu.Lock()
	defer l.txMu.Unlock()

	_, err := l.conn.Write(buf)
	return err
}

// ReadHello reads a client's hello. A hello from a peer with another catalog
// returns the peer's MAC together with CatalogMismatchError.
func (l *Link) ReadHello() (net.HardwareAddr, error) {
	buf := make([]byte, 1+4+6)
	if _, err := io.ReadFull(l.conn, buf); err != nil {
		return nil, err
	}

	if buf[0] != HelloMagic {
		return nil, fmt.Errorf("%w: 0x%02x", InvalidMagicError, buf[0])
	}

	mac := net.HardwareAddr(buf[5:11])
	if fp := binary.BigEndian.Uint32(buf[1:5]); fp != l.table.Fingerprint() {
		return mac, fmt.Errorf("%w: fingerprint %08x, expected %08x", CatalogMismatchError, fp, l.table.Fingerprint())
	}

	return mac, nil
}

// SendWelcome answers a hello. addr is ignored unless status is WelcomeOK.
//
// Layout: status(1) | ipv4(4) | prefix length(1)
func (l *Link) SendWelcome(status WelcomeStatus, addr *net.IPNet) error {
	buf := make([]byte, 1+4+1)
	buf[0] = byte(status)
	if status == WelcomeOK {
		copy(buf[1:5], addr.IP.To4())
		ones, _ := addr.Mask.Size()
		buf[5] = byte(ones)
	}

	l.txMu.Lock()
	defer l.txMu.Unlock()

	_, err := l.conn.Write(buf)
	return err
}

// ReadWelcome returns the address the server assigned to this end of the link.
func (l *Link) ReadWelcome() (*net.IPNet, error) {
	buf := make([]byte, 1+4+1)
	if _, err := io.ReadFull(l.conn, buf); err != nil {
		return nil, err
	}

	switch WelcomeStatus(buf[0]) {
	case WelcomeOK:
		if buf[5] > 32 {
			return nil, fmt.Errorf("%w: prefix length %d", UnknownWelcomeError, buf[5])
		}
		return &net.IPNet{
			IP:   net.IPv4(buf[1], buf[2], buf[3], buf[4]).To4(),
			Mask: net.CIDRMask(int(buf[5]), 32),
		}, nil
	case WelcomeCatalogMismatch:
		return nil, CatalogMismatchError
	case WelcomeNoAddress:
		return nil, NoAddressError
	}
	return nil, fmt.Errorf("%w: %d", UnknownWelcomeError, buf[0])
}
