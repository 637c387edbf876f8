package server

import (
	"net"
	"sync"
	"time"

	"etun"
)

type Server struct {
	tcp     net.Listener
	table   *etun.EtherTypeTable
	pool    *IPPool
	handler Handler

	// handshakeTimeout bounds the wait for a client's hello.
	handshakeTimeout time.Duration

	closed   bool
	closedMu sync.Mutex
	wg       sync.WaitGroup
}

// Handler takes over a link once its handshake completed. Attach is called
// with the MAC from the client's hello before the welcome is sent. Handle
// returns when the link is gone.
type Handler interface {
	Attach(link *etun.Link, mac net.HardwareAddr)
	Handle(link *etun.Link)
}
