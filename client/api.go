package client

import (
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"etun"
	"etun/config"
	log "github.com/sirupsen/logrus"
	"github.com/songgao/packets/ethernet"
	"github.com/songgao/water"
)

const dialTimeout = 5 * time.Second

type Client struct {
	ifce   *water.Interface
	server string
	table  *etun.EtherTypeTable
}

func New(cfg config.ClientConfig, table *etun.EtherTypeTable) (*Client, error) {
	name := cfg.TapName
	if name == "" {
		var err error
		name, err = nextTapName()
		if err != nil {
			return nil, err
		}
	}

	waterConfig := water.Config{
		DeviceType: water.TAP,
	}
	waterConfig.Name = name

	ifce, err := water.New(waterConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create tap interface %s: %w", name, err)
	}

	return &Client{
		ifce:   ifce,
		server: cfg.Server,
		table:  table,
	}, nil
}

// nextTapName returns tapN, N being one past the highest tap device number in use.
func nextTapName() (string, error) {
	out, err := exec.Command("ip", "tuntap").Output()
	if err != nil {
		return "", fmt.Errorf("failed to list tap interfaces: %w", err)
	}
	return tapNameAfter(string(out)), nil
}

func tapNameAfter(ipTuntapOutput string) string {
	highestTap := 0
	for _, line := range strings.Split(ipTuntapOutput, "\n") {
		if !strings.HasPrefix(line, "tap") {
			continue
		}
		tapNum, err := strconv.Atoi(strings.Split(line, ":")[0][3:])
		if err != nil {
			continue
		}
		if tapNum >= highestTap {
			highestTap = tapNum + 1
		}
	}
	return "tap" + strconv.Itoa(highestTap)
}

func (c *Client) Run() error {
	log.WithField("server", c.server).Info("starting client")

	iface, err := net.InterfaceByName(c.ifce.Name())
	if err != nil {
		return fmt.Errorf("failed to get mac address: %w", err)
	}
	mac := iface.HardwareAddr

	log.WithField("mac", mac.String()).Debug("got mac address of tap interface")

	conn, err := net.DialTimeout("tcp", c.server, dialTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	link := etun.NewLink(conn, c.table)
	defer link.Close()

	log.WithField("remote_addr", conn.RemoteAddr().String()).Info("connected to server")

	if err := link.SendHello(mac); err != nil {
		return fmt.Errorf("failed to send hello: %w", err)
	}

	log.WithField("remote_addr", conn.RemoteAddr().String()).Debug("sent hello")

	_ = conn.SetReadDeadline(time.Now().Add(dialTimeout))
	addr, err := link.ReadWelcome()
	if err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	ipStr := addr.String()
	log.WithField("ip", ipStr).Debug("received ip address")

	if err := exec.Command("ip", "addr", "add", ipStr, "dev", c.ifce.Name()).Run(); err != nil {
		return fmt.Errorf("failed to add ip address: %w", err)
	}

	log.WithField("ip", ipStr).Debug("added ip address to tap interface")

	if err := exec.Command("ip", "link", "set", "dev", c.ifce.Name(), "up").Run(); err != nil {
		return fmt.Errorf("failed to set tap interface up: %w", err)
	}

	log.WithField("ifce", c.ifce.Name()).Debug("tap interface set to up")

	log.WithField("ip", ipStr).Info("client started")

	errChan := make(chan error, 2)
	go func() {
		errChan <- c.linkToTap(link)
	}()
	go func() {
		errChan <- c.tapToLink(link)
	}()

	return <-errChan
}

func (c *Client) linkToTap(link *etun.Link) error {
	for {
		frame, err := link.ReadFrame()
		if err != nil {
			if etun.IsDecodeError(err) {
				log.WithField("error", err).Warn("dropping undecodable frame")
				continue
			}
			return fmt.Errorf("failed to read from server: %w", err)
		}

		log.Trace("frame received from remote")

		if _, err := c.ifce.Write(frame); err != nil {
			return fmt.Errorf("failed to write to tap interface: %w", err)
		}
	}
}

func (c *Client) tapToLink(link *etun.Link) error {
	var frame ethernet.Frame
	for {
		frame.Resize(1500)
		n, err := c.ifce.Read(frame)
		if err != nil {
			return fmt.Errorf("failed to read from tap interface: %w", err)
		}
		frame = frame[:n]

		f := etun.EthernetFrame(frame)
		if !f.Valid() {
			log.WithField("length", n).Warn("dropping short frame")
			continue
		}

		log.WithField("ethertype", f.EtherType().String()).
			Trace("frame received from tap interface")

		if err := link.WriteFrame(f); err != nil {
			return fmt.Errorf("failed to write to server: %w", err)
		}
	}
}

func (c *Client) Close() error {
	return c.ifce.Close()
}
