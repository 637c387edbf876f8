package etun

type EthernetPayload interface {
	EtherType() EtherType
	MarshalBinary() ([]byte, error)
}

// RawPayload is an opaque payload of a given EtherType.
type RawPayload struct {
	Type EtherType
	Data []byte
}

func (p *RawPayload) EtherType() EtherType {
	return p.Type
}

func (p *RawPayload) MarshalBinary() ([]byte, error) {
	return p.Data, nil
}

func NewRawPayload(etherType EtherType, data []byte) *RawPayload {
	return &RawPayload{
		Type: etherType,
		Data: data,
	}
}
