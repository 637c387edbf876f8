package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
)

var PoolExhaustedError = errors.New("no free address in pool")

// IPPool hands out the host addresses of an IPv4 subnet. The first host address
// is kept for the gateway.
//
// An address stays reserved for the MAC it was first given to, so a client
// that comes back gets the same address while nobody else holds it. Reserved
// addresses are only handed to other MACs once no unreserved one is left.
type IPPool struct {
	subnet *net.IPNet
	first  uint32
	last   uint32

	used         map[uint32]bool
	reservations map[string]uint32
	reservedBy   map[uint32]string
	usedMu       sync.Mutex
}

func NewIPPool(cidr string) (*IPPool, error) {
	_, subnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}

	base := subnet.IP.To4()
	if base == nil {
		return nil, fmt.Errorf("not an IPv4 subnet: %s", cidr)
	}

	ones, bits := subnet.Mask.Size()
	if bits-ones < 2 {
		return nil, fmt.Errorf("subnet too small: %s", cidr)
	}

	network := binary.BigEndian.Uint32(base)
	broadcast := network | (1<<uint(bits-ones) - 1)

	return &IPPool{
		subnet:       subnet,
		first:        network + 2,
		last:         broadcast - 1,
		used:         make(map[uint32]bool),
		reservations: make(map[string]uint32),
		reservedBy:   make(map[uint32]string),
	}, nil
}

// Gateway returns the address kept for the server side of the subnet.
func (p *IPPool) Gateway() net.IP {
	return toIP(p.first - 1)
}

// Mask returns the subnet mask of the pool.
func (p *IPPool) Mask() net.IPMask {
	return p.subnet.Mask
}

// Allocate returns the address reserved for mac if it is free, otherwise the
// lowest free address nobody reserved, otherwise the lowest free address.
func (p *IPPool) Allocate(mac net.HardwareAddr) (net.IP, error) {
	key := mac.String()

	p.usedMu.Lock()
	defer p.usedMu.Unlock()

	if ip, ok := p.reservations[key]; ok && !p.used[ip] {
		p.used[ip] = true
		return toIP(ip), nil
	}

	var fallback uint32
	for ip := p.first; ip <= p.last; ip++ {
		if p.used[ip] {
			continue
		}
		if _, ok := p.reservedBy[ip]; !ok {
			return p.take(key, ip), nil
		}
		if fallback == 0 {
			fallback = ip
		}
	}

	if fallback != 0 {
		return p.take(key, fallback), nil
	}
	return nil, PoolExhaustedError
}

// take marks ip as used and reserves it for mac, dropping any reservation
// another MAC held on it. A MAC keeps its first reservation.
func (p *IPPool) take(mac string, ip uint32) net.IP {
	p.used[ip] = true

	if owner, ok := p.reservedBy[ip]; ok {
		delete(p.reservations, owner)
		delete(p.reservedBy, ip)
	}
	if _, ok := p.reservations[mac]; !ok {
		p.reservations[mac] = ip
		p.reservedBy[ip] = mac
	}
	return toIP(ip)
}

// Release gives ip back to the pool. Addresses outside the pool are ignored.
func (p *IPPool) Release(ip net.IP) {
	v4 := ip.To4()
	if v4 == nil {
		return
	}

	p.usedMu.Lock()
	defer p.usedMu.Unlock()

	delete(p.used, binary.BigEndian.Uint32(v4))
}

// Available returns the number of free addresses.
func (p *IPPool) Available() int {
	p.usedMu.Lock()
	defer p.usedMu.Unlock()

	return int(p.last-p.first+1) - len(p.used)
}

func toIP(v uint32) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, v)
	return ip
}
