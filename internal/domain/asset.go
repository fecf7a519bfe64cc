package domain

// Asset is a registered real-world asset (a vehicle) owned by a partner.
type Asset struct {
	ID          uint64
	Partner     string
	MetadataURI string
	CreatedAt   int64 // unix seconds
}

// RevenueTokenIDFor returns the revenue token id derived from an asset id.
// Asset ids are allocated even, so the derived odd id never names another asset.
func RevenueTokenIDFor(assetID uint64) uint64 {
	return assetID + 1
}

// RevenueToken is the fungible token granting rights to an asset's future earnings.
type RevenueToken struct {
	ID           uint64
	AssetID      uint64
	Price        uint64 // minor units per token at mint
	Supply       uint64 // fixed at mint
	MaturityDate int64  // unix seconds
	MintedAt     int64  // unix seconds
}
