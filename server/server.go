package server

import (
	"errors"
	"net"
	"time"

	"etun"
	"etun/config"
	"etun/vswitch"
	log "github.com/sirupsen/logrus"
)

const defaultHandshakeTimeout = 5 * time.Second

func New(cfg config.ServerConfig, table *etun.EtherTypeTable) (*Server, error) {
	pool, err := NewIPPool(cfg.Subnet)
	if err != nil {
		return nil, err
	}

	tcp, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, err
	}

	log.WithField("listen", tcp.Addr().String()).
		WithField("subnet", cfg.Subnet).
		WithField("catalog_size", table.Len()).
		Info("starting server")

	handshakeTimeout := cfg.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}

	return &Server{
		tcp:              tcp,
		table:            table,
		pool:             pool,
		handler:          vswitch.New(),
		handshakeTimeout: handshakeTimeout,
	}, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() net.Addr {
	return s.tcp.Addr()
}

// Run accepts links until Close is called.
func (s *Server) Run() error {
	for {
		conn, err := s.tcp.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.WithField("error", err).Warn("failed to accept connection")
				continue
			}
			return err
		}

		log.WithField("remote_addr", conn.RemoteAddr()).Info("accepted new connection")

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)
		}()
	}
}

// Close stops accepting links. Links already accepted keep running until their
// peer goes away.
func (s *Server) Close() error {
	s.closedMu.Lock()
	s.closed = true
	s.closedMu.Unlock()

	return s.tcp.Close()
}

// Wait blocks until every accepted link is gone.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) isClosed() bool {
	s.closedMu.Lock()
	defer s.closedMu.Unlock()

	return s.closed
}

func (s *Server) serve(conn net.Conn) {
	link := etun.NewLink(conn, s.table)

	_ = conn.SetReadDeadline(time.Now().Add(s.handshakeTimeout))
	mac, err := link.ReadHello()
	if err != nil {
		log.WithField("error", err).
			WithField("remote_addr", conn.RemoteAddr()).
			Error("failed to read hello")

		if errors.Is(err, etun.CatalogMismatchError) {
			_ = link.SendWelcome(etun.WelcomeCatalogMismatch, nil)
		}
		_ = link.Close()
		return
	}

	_ = conn.SetReadDeadline(time.Time{})

	log.WithField("remote_addr", conn.RemoteAddr()).
		WithField("mac", mac.String()).
		Debug("received hello")

	ip, err := s.pool.Allocate(mac)
	if err != nil {
		log.WithField("error", err).
			WithField("remote_addr", conn.RemoteAddr()).
			Error("failed to allocate address")

		_ = link.SendWelcome(etun.WelcomeNoAddress, nil)
		_ = link.Close()
		return
	}
	defer s.pool.Release(ip)

	s.handler.Attach(link, mac)

	if err := link.SendWelcome(etun.WelcomeOK, &net.IPNet{IP: ip, Mask: s.pool.Mask()}); err != nil {
		log.WithField("error", err).
			WithField("remote_addr", conn.RemoteAddr()).
			Error("failed to send ip address to client")

		// Handle fails on the broken link right away and forgets mac.
		_ = link.Close()
	} else {
		log.WithField("remote_addr", conn.RemoteAddr()).
			WithField("ip", ip.String()).
			Debug("sent ip address to client")
	}

	s.handler.Handle(link)

	log.WithField("remote_addr", conn.RemoteAddr()).
		WithField("ip", ip.String()).
		Info("client disconnected")
}
