package vswitch

import (
	"errors"
	"io"
	"net"
	"sync"

	"etun"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// VPort is the switch side of a MAC address learned on a link.
type VPort struct {
	id   string
	mac  string
	link *etun.Link
}

func (v *VPort) Write(frame etun.EthernetFrame, src string) error {
	log.WithField("dst", v.mac).
		WithField("src", src).
		WithField("port", v.id).
		Trace("writing frame to vPort")

	return v.link.WriteFrame(frame)
}

func (v *VPort) Mac() string {
	return v.mac
}

// Handler is a learning switch between tunnel links.
type Handler struct {
	connections   map[string]*VPort
	connectionsMu sync.RWMutex
}

func (v *Handler) registerMacIfNotExists(mac string, link *etun.Link) *VPort {
	v.connectionsMu.Lock()
	defer v.connectionsMu.Unlock()

	if port, ok := v.connections[mac]; ok && port.link == link {
		return port
	}

	port := &VPort{
		id:   uuid.New().String(),
		mac:  mac,
		link: link,
	}

	log.WithField("mac", mac).
		WithField("id", port.id).
		Debug("learned new mac address")

	v.connections[mac] = port
	return port
}

func (v *Handler) getPortByMac(mac string) *VPort {
	v.connectionsMu.RLock()
	defer v.connectionsMu.RUnlock()

	if port, ok := v.connections[mac]; ok {
		return port
	}

	return nil
}

// Attach learns mac on link before any frame was read from it, so that the
// port receives unicast frames right away.
func (v *Handler) Attach(link *etun.Link, mac net.HardwareAddr) {
	v.registerMacIfNotExists(mac.String(), link)
}

// Ports returns the MAC addresses currently learned by the switch.
func (v *Handler) Ports() []string {
	v.connectionsMu.RLock()
	defer v.connectionsMu.RUnlock()

	macs := make([]string, 0, len(v.connections))
	for mac := range v.connections {
		macs = append(macs, mac)
	}
	return macs
}

// flood writes frame to every link but the one it came from. A link with several
// learned MACs receives the frame once.
func (v *Handler) flood(src *VPort, frame etun.EthernetFrame) {
	v.connectionsMu.RLock()
	targets := make(map[*etun.Link]*VPort)
	for _, port := range v.connections {
		if port.link != src.link {
			targets[port.link] = port
		}
	}
	v.connectionsMu.RUnlock()

	for _, port := range targets {
		if err := port.Write(frame, src.mac); err != nil {
			log.WithField("error", err).
				WithField("dst", port.mac).
				Error("failed to flood frame")
		}
	}
}

// Handle switches frames read from link until the link fails, then forgets
// every MAC learned on it and closes it.
func (v *Handler) Handle(link *etun.Link) {
	defer func() {
		if err := v.disconnect(link); err != nil {
			log.WithField("error", err).Error("failed to disconnect")
		}
	}()

	for {
		frame, err := link.ReadFrame()
		if err != nil {
			if etun.IsDecodeError(err) {
				log.WithField("error", err).
					WithField("remote_addr", link.RemoteAddr()).
					Warn("dropping undecodable frame")
				continue
			}
			if !errors.Is(err, io.EOF) {
				log.WithField("error", err).
					WithField("remote_addr", link.RemoteAddr()).
					Debug("link read failed")
			}
			return
		}

		dst := frame.Destination()
		dstStr := dst.String()
		srcStr := frame.Source().String()
		srcPort := v.registerMacIfNotExists(srcStr, link)

		log.WithField("src", srcStr).
			WithField("dst", dstStr).
			WithField("ethertype", frame.EtherType().String()).
			Trace("received frame")

		var dstPort *VPort
		if !isMulticast(dst) {
			dstPort = v.getPortByMac(dstStr)
		}

		if dstPort == nil {
			log.WithField("src", srcStr).
				WithField("dst", dstStr).
				Debug("no destination port found, flooding frame")

			v.flood(srcPort, frame)
			continue
		}

		if dstPort.link == link {
			continue
		}

		if err := dstPort.Write(frame, srcStr); err != nil {
			log.WithField("error", err).
				WithField("dst", dstStr).
				Error("failed to forward frame")
		}
	}
}

// isMulticast also holds for the broadcast address.
func isMulticast(mac net.HardwareAddr) bool {
	return mac[0]&0x01 != 0
}

func (v *Handler) disconnect(link *etun.Link) error {
	log.WithField("remote_addr", link.RemoteAddr()).Info("closing link")

	v.connectionsMu.Lock()
	for mac, port := range v.connections {
		if port.link == link {
			delete(v.connections, mac)
		}
	}
	v.connectionsMu.Unlock()

	return link.Close()
}
