package vswitch_test

import (
	"bytes"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"etun"
	"etun/vswitch"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	macA = net.HardwareAddr{0x42, 0x69, 0x00, 0x00, 0x00, 0x01}
	macB = net.HardwareAddr{0x42, 0x69, 0x00, 0x00, 0x00, 0x02}
	macC = net.HardwareAddr{0x42, 0x69, 0x00, 0x00, 0x00, 0x03}
)

// syncBuffer lets the test read log output written by handler goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type peer struct {
	conn   net.Conn
	link   *etun.Link
	remote *etun.Link
}

func attach(t *testing.T, h *vswitch.Handler, table *etun.EtherTypeTable) peer {
	c1, c2 := net.Pipe()
	p := peer{conn: c1, link: etun.NewLink(c1, table), remote: etun.NewLink(c2, table)}
	go h.Handle(p.remote)
	t.Cleanup(func() { _ = p.link.Close() })
	return p
}

func frame(t *testing.T, dst, src net.HardwareAddr, payload string) etun.EthernetFrame {
	f, err := etun.NewEthernetFrame(dst, src, etun.WithTagging(etun.TaggingUntagged),
		etun.NewRawPayload(etun.EtherTypeIPv4, []byte(payload)))
	require.NoError(t, err)
	return *f
}

func waitForPort(t *testing.T, h *vswitch.Handler, mac net.HardwareAddr) {
	assert.Eventually(t, func() bool {
		for _, port := range h.Ports() {
			if port == mac.String() {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func TestHandlerLearnAndForward(t *testing.T) {
	buff := &syncBuffer{}
	log.SetOutput(buff)
	log.SetLevel(log.DebugLevel)
	defer log.SetOutput(os.Stderr)
	defer log.SetLevel(log.InfoLevel)

	table := etun.DefaultTable()
	h := vswitch.New()
	a := attach(t, h, table)
	b := attach(t, h, table)

	// Nobody else is known yet, so the frame is flooded to no one.
	require.NoError(t, a.link.WriteFrame(frame(t, macB, macA, "hello b")))
	waitForPort(t, h, macA)

	require.NoError(t, b.link.WriteFrame(frame(t, macA, macB, "hello a")))
	received, err := a.link.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "hello a", string(received.Payload()))
	assert.Equal(t, macB, received.Source())
	waitForPort(t, h, macB)

	require.NoError(t, a.link.WriteFrame(frame(t, macB, macA, "hello again")))
	received, err = b.link.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "hello again", string(received.Payload()))
	assert.Equal(t, etun.EtherTypeIPv4, received.EtherType())

	assert.Contains(t, buff.String(), "learned new mac address")
}

func TestHandlerFlood(t *testing.T) {
	table := etun.DefaultTable()
	h := vswitch.New()
	a := attach(t, h, table)
	b := attach(t, h, table)
	c := attach(t, h, table)

	for _, p := range []struct {
		peer peer
		mac  net.HardwareAddr
	}{{a, macA}, {b, macB}, {c, macC}} {
		// Frames to self are dropped by the switch.
		require.NoError(t, p.peer.link.WriteFrame(frame(t, p.mac, p.mac, "register")))
		waitForPort(t, h, p.mac)
	}

	// The switch writes to one port after the other, so both have to be read
	// concurrently.
	results := make(chan etun.EthernetFrame, 2)
	for _, p := range []peer{b, c} {
		go func(p peer) {
			received, err := p.link.ReadFrame()
			assert.NoError(t, err)
			results <- received
		}(p)
	}

	require.NoError(t, a.link.WriteFrame(frame(t, etun.BroadcastMAC, macA, "who has")))

	for i := 0; i < 2; i++ {
		select {
		case received := <-results:
			require.NotNil(t, received)
			assert.Equal(t, "who has", string(received.Payload()))
			assert.Equal(t, etun.BroadcastMAC, received.Destination())
		case <-time.After(time.Second):
			t.Fatal("flooded frame not received")
		}
	}
}

func TestHandlerDropsUndecodableFrame(t *testing.T) {
	table := etun.DefaultTable()
	h := vswitch.New()
	a := attach(t, h, table)
	b := attach(t, h, table)

	require.NoError(t, b.link.WriteFrame(frame(t, macB, macB, "register")))
	waitForPort(t, h, macB)

	// length 14, compact kind, unassigned id 200
	raw := append([]byte{0x00, 0x0e, 0x01}, macB...)
	raw = append(raw, macA...)
	raw = append(raw, 200)
	_, err := a.conn.Write(raw)
	require.NoError(t, err)

	require.NoError(t, a.link.WriteFrame(frame(t, macB, macA, "still up")))
	received, err := b.link.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "still up", string(received.Payload()))
}

func TestHandlerForgetsDisconnectedLink(t *testing.T) {
	table := etun.DefaultTable()
	h := vswitch.New()
	a := attach(t, h, table)
	b := attach(t, h, table)

	require.NoError(t, a.link.WriteFrame(frame(t, macA, macA, "register")))
	require.NoError(t, b.link.WriteFrame(frame(t, macB, macB, "register")))
	waitForPort(t, h, macA)
	waitForPort(t, h, macB)

	require.NoError(t, b.link.Close())

	assert.Eventually(t, func() bool {
		return len(h.Ports()) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, []string{macA.String()}, h.Ports())
}

func TestHandlerAttach(t *testing.T) {
	table := etun.DefaultTable()
	h := vswitch.New()
	a := attach(t, h, table)
	b := attach(t, h, table)

	h.Attach(b.remote, macB)
	assert.Equal(t, []string{macB.String()}, h.Ports())

	require.NoError(t, a.link.WriteFrame(frame(t, macB, macA, "direct")))
	received, err := b.link.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "direct", string(received.Payload()))
}
