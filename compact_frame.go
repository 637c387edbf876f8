package etun

import (
	"errors"
	"fmt"
	"net"
)

// A compact frame is an ethernet frame as it travels on a tunnel link:
//
//	kind(1) | dst(6) | src(6) | tags(0/4/8) | type(1 or 2) | payload
//
// Bit 0 of kind is set when type is a one byte compact id, otherwise type is the
// full EtherType. Bits 1-2 hold the number of VLAN tags.
const (
	compactKindCompact  byte = 0x01
	compactKindTagMask  byte = 0x06
	compactKindTagShift      = 1
)

var (
	InvalidFrameError       = errors.New("frame shorter than its ethernet header")
	ShortCompactFrameError  = errors.New("compact frame truncated")
	InvalidCompactKindError = errors.New("invalid compact frame kind")
)

// IsDecodeError reports whether err only concerns the frame being decoded, so
// that the link carrying it stays usable.
func IsDecodeError(err error) bool {
	return errors.Is(err, UnassignedCompactIdError) ||
		errors.Is(err, InvalidCompactKindError) ||
		errors.Is(err, ShortCompactFrameError)
}

// EncodeCompactFrame encodes frame for a tunnel link. The EtherType is replaced
// by its compact id when table knows it, and is carried verbatim otherwise.
func EncodeCompactFrame(table *EtherTypeTable, frame EthernetFrame) ([]byte, error) {
	if !frame.Valid() {
		return nil, InvalidFrameError
	}

	tags := frame.Tags()
	kind := byte(len(tags)/4) << compactKindTagShift

	etherType := frame.EtherType()
	id, err := table.CompactId(etherType.Uint16())
	switch {
	case err == nil:
		kind |= compactKindCompact
	case !errors.Is(err, UnsupportedEtherTypeError):
		return nil, err
	}

	payload := frame.Payload()
	out := make([]byte, 0, 1+12+len(tags)+2+len(payload))
	out = append(out, kind)
	out = append(out, frame[:12]...)
	out = append(out, tags...)
	if kind&compactKindCompact != 0 {
		out = append(out, id)
	} else {
		out = append(out, etherType[0], etherType[1])
	}
	return append(out, payload...), nil
}

// DecodeCompactFrame rebuilds the ethernet frame carried by a compact frame.
func DecodeCompactFrame(table *EtherTypeTable, data []byte) (EthernetFrame, error) {
	if len(data) < 1+12 {
		return nil, ShortCompactFrameError
	}

	kind := data[0]
	if kind&^(compactKindCompact|compactKindTagMask) != 0 {
		return nil, fmt.Errorf("%w: 0x%02x", InvalidCompactKindError, kind)
	}
	tagCount := int(kind&compactKindTagMask) >> compactKindTagShift
	if tagCount > 2 {
		return nil, fmt.Errorf("%w: %d tags", InvalidCompactKindError, tagCount)
	}

	pos := 1 + 12
	tags := data[pos:]
	if len(tags) < tagCount*4 {
		return nil, ShortCompactFrameError
	}
	tags = tags[:tagCount*4]
	if !validTags(tags) {
		return nil, fmt.Errorf("%w: tag block % x", InvalidCompactKindError, tags)
	}
	pos += len(tags)

	var etherType EtherType
	if kind&compactKindCompact != 0 {
		if len(data) < pos+1 {
			return nil, ShortCompactFrameError
		}
		v, err := table.EtherType(data[pos])
		if err != nil {
			return nil, err
		}
		etherType = NewEtherType(v)
		pos++
	} else {
		if len(data) < pos+2 {
			return nil, ShortCompactFrameError
		}
		etherType = EtherType{data[pos], data[pos+1]}
		pos += 2
	}

	payload := data[pos:]
	frame := EthernetFrame{}
	frame.prepare(net.HardwareAddr(data[1:7]), net.HardwareAddr(data[7:13]), tags, etherType, len(payload))
	copy(frame.Payload(), payload)
	return frame, nil
}

// validTags reports whether tags carries the TPIDs EthernetFrame.Tagging expects
// for its length: 0x8100 for one tag, 0x88a8 then 0x8100 for two.
func validTags(tags []byte) bool {
	switch len(tags) {
	case 0:
		return true
	case 4:
		return tags[0] == 0x81 && tags[1] == 0x00
	case 8:
		return tags[0] == 0x88 && tags[1] == 0xa8 && tags[4] == 0x81 && tags[5] == 0x00
	}
	return false
}
