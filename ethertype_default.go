package etun

import "sync"

// DefaultCatalog only assigns the well-known network layer protocols. Deployments
// supply their own catalog through configuration.
var DefaultCatalog = []CatalogEntry{
	{EtherType: EtherTypeIPv4.Uint16(), CompactId: 1},
	{EtherType: EtherTypeARP.Uint16(), CompactId: 2},
	{EtherType: EtherTypeIPv6.Uint16(), CompactId: 3},
}

var (
	defaultTable     *EtherTypeTable
	defaultTableOnce sync.Once
)

// DefaultTable returns the table built from DefaultCatalog. It is built on first
// use.
func DefaultTable() *EtherTypeTable {
	defaultTableOnce.Do(func() {
		defaultTable = MustNewEtherTypeTable(DefaultCatalog)
	})
	return defaultTable
}

// CompactId looks up etherType in the default table.
func CompactId(etherType uint16) (uint8, error) {
	return DefaultTable().CompactId(etherType)
}

// LookupEtherType looks up id in the default table.
func LookupEtherType(id uint8) (uint16, error) {
	return DefaultTable().EtherType(id)
}
