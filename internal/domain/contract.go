package domain

import (
	"math/big"
	"time"
)

// AuctionInfo is the on-chain state of an auction as returned by the auction contract's
// AuctionList getter. Amounts are in the chain's smallest unit.
type AuctionInfo struct {
	Owner             string
	CollectionAddress string
	TokenID           *big.Int
	StartPrice        *big.Int
	LatestBid         *big.Int
	EndTime           time.Time
}

// SaleInfo is the on-chain state of a fixed-price sale as returned by the SaleList getter
type SaleInfo struct {
	Owner             string
	CollectionAddress string
	TokenID           *big.Int
	Price             *big.Int
}
