package etun

import (
	"fmt"

	"github.com/google/gopacket/layers"
)

// EtherType is a type used represent the EtherType of an ethernet frame.
// Defined as a 2-byte array in network byte order, variables of this type are
// intended to be used as immutable values.
type EtherType [2]byte

// NewEtherType converts a host-order 16-bit value into an EtherType.
func NewEtherType(v uint16) EtherType {
	return EtherType{byte(v >> 8), byte(v)}
}

func (e EtherType) Equal(other EtherType) bool {
	return e[0] == other[0] && e[1] == other[1]
}

// Uint16 returns the EtherType as a host-order integer.
func (e EtherType) Uint16() uint16 {
	return uint16(e[0])<<8 | uint16(e[1])
}

// Name returns the protocol name of the EtherType, or an empty string for values
// gopacket has no decoder for.
func (e EtherType) Name() string {
	name := layers.EthernetType(e.Uint16()).String()
	if name == "UnknownEthernetType" {
		return ""
	}
	return name
}

func (e EtherType) String() string {
	if name := e.Name(); name != "" {
		return fmt.Sprintf("0x%04x (%s)", e.Uint16(), name)
	}
	return fmt.Sprintf("0x%04x", e.Uint16())
}

// Common EtherType values
var (
	EtherTypeIPv4                = EtherType{0x08, 0x00}
	EtherTypeARP                 = EtherType{0x08, 0x06}
	EtherTypeWakeOnLAN           = EtherType{0x08, 0x42}
	EtherTypeRARP                = EtherType{0x80, 0x35}
	EtherTypeAppleTalk           = EtherType{0x80, 0x9B}
	EtherTypeAARP                = EtherType{0x80, 0xF3}
	EtherTypeVLAN                = EtherType{0x81, 0x00}
	EtherTypeQNXQnet             = EtherType{0x82, 0x04}
	EtherTypeIPv6                = EtherType{0x86, 0xDD}
	EtherTypeEthernetFlowControl = EtherType{0x88, 0x08}
	EtherTypeMPLSUnicast         = EtherType{0x88, 0x47}
	EtherTypeMPLSMulticast       = EtherType{0x88, 0x48}
	EtherTypePPPoEDiscovery      = EtherType{0x88, 0x63}
	EtherTypePPPoESession        = EtherType{0x88, 0x64}
	EtherTypeJumboFrames         = EtherType{0x88, 0x70}
	EtherTypeEAPOL               = EtherType{0x88, 0x8E}
	EtherTypePROFINET            = EtherType{0x88, 0x92}
	EtherTypeServiceVLAN         = EtherType{0x88, 0xA8}
	EtherTypeLLDP                = EtherType{0x88, 0xCC}
	EtherTypeMRP                 = EtherType{0x88, 0xE3}
	EtherTypeMACsec              = EtherType{0x88, 0xE5}
	EtherTypePTP                 = EtherType{0x88, 0xF7}
	EtherTypeFCoE                = EtherType{0x89, 0x06}
	EtherTypeRoCE                = EtherType{0x89, 0x15}
)
