package domain

// AssetEarnings is the running aggregate of revenue distributions for an asset.
// All counters are monotonically non-decreasing.
type AssetEarnings struct {
	AssetID             uint64
	TotalEarnings       uint64 // cumulative net to investors, after protocol fee
	TotalRevenue        uint64 // cumulative gross reported revenue
	DistributionCount   uint64
	FirstDistributionAt int64 // set once, on the first distribution
	LastDistributionAt  int64 // updated on every distribution
}

// Distribution is a single earnings deposit, as projected for analytics.
type Distribution struct {
	EventID         string
	AssetID         uint64
	TokenID         uint64
	Partner         string
	TotalRevenue    uint64
	InvestorPortion uint64
	PartnerPortion  uint64
	ProtocolFee     uint64
	NetToInvestors  uint64
	ExternalTokens  uint64
	TotalSupply     uint64
	DistributedAt   int64 // unix seconds
}
