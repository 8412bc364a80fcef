package domain

const (
	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

	// DEFAULT_DECIMALS is the number of decimals between wei and ether on EVM chains
	DEFAULT_DECIMALS int32 = 18

	// Chain names used as keys in configuration and persisted rows
	CHAIN_ETHEREUM = "ethereum"
	CHAIN_POLYGON  = "polygon"
)

// Raw contract event names emitted by the mint contract
const (
	EventNameNewCollection = "NewCollection"
	EventNameTransfer      = "Transfer"
)

// Raw contract event names emitted by the auction contract
const (
	EventNameNewAuction    = "NewAuction"
	EventNameNewBid        = "NewBid"
	EventNameNFTClaim      = "NFTClaim"
	EventNameNFTSale       = "NFTSale"
	EventNameClaimBack     = "ClaimBack"
	EventNameNewSale       = "NewSale"
	EventNameSaleCancelled = "SaleCancelled"
	EventNameSaleCompleted = "SaleCompleted"
)
