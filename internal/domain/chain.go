package domain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Chain describes one supported EVM chain and the marketplace contracts deployed on it.
// The reconciliation engine is parameterized by this descriptor instead of carrying
// per-chain handler sets.
type Chain struct {
	// Name is the configuration key of the chain (e.g. "ethereum", "polygon")
	Name string
	// ChainID is the numeric EVM chain id
	ChainID int64
	// MintContract is the lower-cased address of the mint (collection factory / ERC721) contract
	MintContract string
	// AuctionContract is the lower-cased address of the auction and fixed-price sale contract
	AuctionContract string
	// Decimals is the number of decimals between the smallest unit and the display unit
	Decimals int32
}

// NewChain creates a chain descriptor with normalized contract addresses
func NewChain(name string, chainID int64, mintContract, auctionContract string, decimals int32) Chain {
	if decimals <= 0 {
		decimals = DEFAULT_DECIMALS
	}
	return Chain{
		Name:            name,
		ChainID:         chainID,
		MintContract:    NormalizeAddress(mintContract),
		AuctionContract: NormalizeAddress(auctionContract),
		Decimals:        decimals,
	}
}

// FromWei converts an amount in the chain's smallest unit to a decimal amount.
// The conversion is exact: ToWei(FromWei(x)) == x for every integer x.
func (c Chain) FromWei(amount *big.Int) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -c.decimals())
}

// ToWei converts a decimal amount back to the chain's smallest unit.
// Digits below the smallest unit are truncated.
func (c Chain) ToWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(c.decimals()).Truncate(0).BigInt()
}

// IsMintContract reports whether the address is the chain's mint contract
func (c Chain) IsMintContract(address string) bool {
	return c.MintContract != "" && NormalizeAddress(address) == c.MintContract
}

// IsAuctionContract reports whether the address is the chain's auction contract
func (c Chain) IsAuctionContract(address string) bool {
	return c.AuctionContract != "" && NormalizeAddress(address) == c.AuctionContract
}

// IsMarketplaceContract reports whether the address is one of the marketplace's own contracts
func (c Chain) IsMarketplaceContract(address string) bool {
	return c.IsMintContract(address) || c.IsAuctionContract(address)
}

func (c Chain) decimals() int32 {
	if c.Decimals <= 0 {
		return DEFAULT_DECIMALS
	}
	return c.Decimals
}

// NormalizeAddress lower-cases an address so it can be compared with plain string equality.
// Valid hex addresses are also zero-padded to their canonical 20-byte form.
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}
	if common.IsHexAddress(address) {
		return strings.ToLower(common.HexToAddress(address).Hex())
	}
	return strings.ToLower(address)
}

// IsZeroAddress checks whether the address is empty or the zero address
func IsZeroAddress(address string) bool {
	address = NormalizeAddress(address)
	return address == "" || address == ETHEREUM_ZERO_ADDRESS
}
