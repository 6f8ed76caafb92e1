package ledger

// AccountStorageOverhead is the per-account metadata size charged by rent.
const AccountStorageOverhead = 128

// Rent holds the rent-exemption parameters of the bank.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
}

// DefaultRent mirrors the mainnet rent parameters.
func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: 3480, ExemptionThreshold: 2.0}
}

// MinimumBalance returns the lamports an account holding dataLen bytes needs
// to be rent exempt.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	bytes := uint64(AccountStorageOverhead + dataLen)
	return uint64(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}
