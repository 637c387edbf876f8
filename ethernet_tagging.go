package etun

// TagData holds the Tag Control Information (TCI) of each VLAN tag of a frame,
// outermost first.
type TagData []byte

// WithTagging returns the tag data for tagging with the given TCIs, outermost
// first. Missing TCIs are zero and extra ones are ignored.
func WithTagging(tagging VlanTagging, tags ...uint16) TagData {
	tci := func(i int) uint16 {
		if i < len(tags) {
			return tags[i]
		}
		return 0
	}

	switch tagging {
	case TaggingTagged:
		return TagData{
			byte(tci(0) >> 8),
			byte(tci(0)),
		}
	case TaggingDoubleTagged:
		return TagData{
			byte(tci(0) >> 8),
			byte(tci(0)),
			byte(tci(1) >> 8),
			byte(tci(1)),
		}
	}
	return TagData{}
}

// GetTagging returns the tagging t describes. Tag data that is neither one nor
// two TCIs long is treated as untagged.
func (t TagData) GetTagging() VlanTagging {
	switch len(t) {
	case 2:
		return TaggingTagged
	case 4:
		return TaggingDoubleTagged
	}
	return TaggingUntagged
}

// Tags returns the tag part of a frame carrying t, TPIDs included.
func (t TagData) Tags() []byte {
	switch t.GetTagging() {
	case TaggingTagged:
		return []byte{0x81, 0x00, t[0], t[1]}
	case TaggingDoubleTagged:
		return []byte{0x88, 0xa8, t[0], t[1], 0x81, 0x00, t[2], t[3]}
	}
	return nil
}
