package etun

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// MaxCatalogSize is the number of distinct compact ids an 8-bit index can hold.
const MaxCatalogSize = 256

var (
	UnsupportedEtherTypeError = errors.New("unsupported ethertype")
	UnassignedCompactIdError  = errors.New("unassigned compact id")

	CatalogTooLargeError    = errors.New("catalog holds more than 256 entries")
	DuplicateEtherTypeError = errors.New("ethertype assigned twice in catalog")
	DuplicateCompactIdError = errors.New("compact id assigned twice in catalog")
)

// CatalogEntry assigns a compact id to an EtherType.
type CatalogEntry struct {
	EtherType uint16 `mapstructure:"ethertype" yaml:"ethertype"`
	CompactId uint8  `mapstructure:"id" yaml:"id"`
}

// EtherTypeTable translates between 16-bit EtherTypes and the 8-bit compact ids
// of a catalog. A table is immutable once built and safe for concurrent use.
type EtherTypeTable struct {
	forward  map[uint16]uint8
	reverse  [MaxCatalogSize]uint16
	assigned *bitset.BitSet
	entries  []CatalogEntry
}

// NewEtherTypeTable builds the forward and reverse indices of catalog. A catalog
// with more than MaxCatalogSize entries, or one that repeats an EtherType or a
// compact id, is rejected.
func NewEtherTypeTable(catalog []CatalogEntry) (*EtherTypeTable, error) {
	if len(catalog) > MaxCatalogSize {
		return nil, fmt.Errorf("%w: got %d", CatalogTooLargeError, len(catalog))
	}

	t := &EtherTypeTable{
		forward:  make(map[uint16]uint8, len(catalog)),
		assigned: bitset.New(MaxCatalogSize),
		entries:  make([]CatalogEntry, len(catalog)),
	}
	copy(t.entries, catalog)

	for _, entry := range t.entries {
		if _, ok := t.forward[entry.EtherType]; ok {
			return nil, fmt.Errorf("%w: 0x%04x", DuplicateEtherTypeError, entry.EtherType)
		}
		if t.assigned.Test(uint(entry.CompactId)) {
			return nil, fmt.Errorf("%w: %d", DuplicateCompactIdError, entry.CompactId)
		}

		t.forward[entry.EtherType] = entry.CompactId
		t.reverse[entry.CompactId] = entry.EtherType
		t.assigned.Set(uint(entry.CompactId))
	}

	sort.Slice(t.entries, func(i, j int) bool {
		return t.entries[i].CompactId < t.entries[j].CompactId
	})

	return t, nil
}

// MustNewEtherTypeTable is like NewEtherTypeTable but panics on a malformed catalog.
func MustNewEtherTypeTable(catalog []CatalogEntry) *EtherTypeTable {
	t, err := NewEtherTypeTable(catalog)
	if err != nil {
		panic(err)
	}
	return t
}

// CompactId returns the compact id assigned to etherType. An EtherType missing
// from the catalog yields an error matching UnsupportedEtherTypeError.
func (t *EtherTypeTable) CompactId(etherType uint16) (uint8, error) {
	id, ok := t.forward[etherType]
	if !ok {
		return 0, fmt.Errorf("%w: 0x%04x", UnsupportedEtherTypeError, etherType)
	}
	return id, nil
}

// EtherType returns the EtherType that id was assigned to. An id missing from
// the catalog yields an error matching UnassignedCompactIdError.
func (t *EtherTypeTable) EtherType(id uint8) (uint16, error) {
	if !t.assigned.Test(uint(id)) {
		return 0, fmt.Errorf("%w: %d", UnassignedCompactIdError, id)
	}
	return t.reverse[id], nil
}

// Len returns the number of catalog entries.
func (t *EtherTypeTable) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the catalog ordered by compact id.
func (t *EtherTypeTable) Entries() []CatalogEntry {
	entries := make([]CatalogEntry, len(t.entries))
	copy(entries, t.entries)
	return entries
}

// Fingerprint hashes the catalog so both ends of a tunnel can check they
// translate compact ids the same way. Catalog order does not matter.
func (t *EtherTypeTable) Fingerprint() uint32 {
	h := fnv.New32a()
	buf := make([]byte, 3)
	for _, entry := range t.entries {
		binary.BigEndian.PutUint16(buf, entry.EtherType)
		buf[2] = entry.CompactId
		_, _ = h.Write(buf)
	}
	return h.Sum32()
}
