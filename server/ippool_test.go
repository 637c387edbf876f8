package server_test

import (
	"net"
	"testing"

	"etun/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostMAC(n byte) net.HardwareAddr {
	return net.HardwareAddr{0x42, 0x69, 0x00, 0x00, 0x00, n}
}

func TestIPPool(t *testing.T) {
	pool, err := server.NewIPPool("10.0.0.0/29")
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1", pool.Gateway().String())
	assert.Equal(t, 5, pool.Available())

	var got []string
	for i := 0; i < 5; i++ {
		ip, err := pool.Allocate(hostMAC(byte(i + 1)))
		require.NoError(t, err)
		got = append(got, ip.String())
	}
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5", "10.0.0.6"}, got)

	_, err = pool.Allocate(hostMAC(6))
	assert.ErrorIs(t, err, server.PoolExhaustedError)
	assert.Equal(t, 0, pool.Available())

	pool.Release(net.ParseIP("10.0.0.4"))
	assert.Equal(t, 1, pool.Available())

	// Only reserved addresses are left, so the one of the absent MAC is reused.
	ip, err := pool.Allocate(hostMAC(6))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.4", ip.String())

	pool.Release(net.ParseIP("192.168.0.1"))
	pool.Release(net.ParseIP("::1"))
	assert.Equal(t, 0, pool.Available())
}

func TestIPPoolKeepsReservation(t *testing.T) {
	pool, err := server.NewIPPool("10.0.0.0/24")
	require.NoError(t, err)

	a, err := pool.Allocate(hostMAC(1))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", a.String())

	b, err := pool.Allocate(hostMAC(2))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.3", b.String())

	pool.Release(a)

	c, err := pool.Allocate(hostMAC(3))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.4", c.String())

	again, err := pool.Allocate(hostMAC(1))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", again.String())

	// Reserved address still in use: the MAC gets another one but keeps its
	// reservation for later.
	twice, err := pool.Allocate(hostMAC(1))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", twice.String())

	pool.Release(again)
	pool.Release(twice)

	back, err := pool.Allocate(hostMAC(1))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", back.String())
}

func TestIPPoolInvalid(t *testing.T) {
	_, err := server.NewIPPool("not a subnet")
	assert.Error(t, err)

	_, err = server.NewIPPool("fd00::/64")
	assert.Error(t, err)

	_, err = server.NewIPPool("10.0.0.0/31")
	assert.Error(t, err)
}
