package ethereum

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/feral-file/ff-marketplace/internal/domain"
)

// Event names emitted by the marketplace contracts
const (
	EventNewCollection = "NewCollection"
	EventTransfer      = "Transfer"
	EventNewAuction    = "NewAuction"
	EventNewBid        = "NewBid"
	EventNFTClaim      = "NFTClaim"
	EventNFTSale       = "NFTSale"
	EventClaimBack     = "ClaimBack"
	EventNewSale       = "NewSale"
	EventSaleCancelled = "SaleCancelled"
	EventSaleCompleted = "SaleCompleted"
)

// marketplaceABIJSON covers the events of the mint and auction contracts, the ERC721
// Transfer of deployed collections and the read-only calls used to complete payloads
const marketplaceABIJSON = `[
	{"type":"event","name":"NewCollection","anonymous":false,"inputs":[
		{"name":"CollectionAddress","type":"address","indexed":false},
		{"name":"owner","type":"address","indexed":false},
		{"name":"colName","type":"string","indexed":false}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true}]},
	{"type":"event","name":"NewAuction","anonymous":false,"inputs":[
		{"name":"colAddress","type":"address","indexed":false},
		{"name":"tokenId","type":"uint256","indexed":false},
		{"name":"aucId","type":"uint256","indexed":false}]},
	{"type":"event","name":"NewBid","anonymous":false,"inputs":[
		{"name":"bid","type":"uint256","indexed":false},
		{"name":"bidder","type":"address","indexed":false},
		{"name":"aucId","type":"uint256","indexed":false}]},
	{"type":"event","name":"NFTClaim","anonymous":false,"inputs":[
		{"name":"aucId","type":"uint256","indexed":false},
		{"name":"newOwner","type":"address","indexed":false}]},
	{"type":"event","name":"NFTSale","anonymous":false,"inputs":[
		{"name":"aucId","type":"uint256","indexed":false},
		{"name":"owner","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"ClaimBack","anonymous":false,"inputs":[
		{"name":"aucId","type":"uint256","indexed":false}]},
	{"type":"event","name":"NewSale","anonymous":false,"inputs":[
		{"name":"colAddress","type":"address","indexed":false},
		{"name":"tokenId","type":"uint256","indexed":false},
		{"name":"saleId","type":"uint256","indexed":false},
		{"name":"price","type":"uint256","indexed":false}]},
	{"type":"event","name":"SaleCancelled","anonymous":false,"inputs":[
		{"name":"saleId","type":"uint256","indexed":false}]},
	{"type":"event","name":"SaleCompleted","anonymous":false,"inputs":[
		{"name":"saleId","type":"uint256","indexed":false},
		{"name":"newOwner","type":"address","indexed":false}]},
	{"type":"function","name":"AuctionList","stateMutability":"view","inputs":[
		{"name":"aucId","type":"uint256"}],"outputs":[
		{"name":"owner","type":"address"},
		{"name":"colAddress","type":"address"},
		{"name":"tokenId","type":"uint256"},
		{"name":"startPrice","type":"uint256"},
		{"name":"latestBid","type":"uint256"},
		{"name":"endTime","type":"uint256"}]},
	{"type":"function","name":"SaleList","stateMutability":"view","inputs":[
		{"name":"saleId","type":"uint256"}],"outputs":[
		{"name":"owner","type":"address"},
		{"name":"colAddress","type":"address"},
		{"name":"tokenId","type":"uint256"},
		{"name":"price","type":"uint256"}]},
	{"type":"function","name":"tokenURI","stateMutability":"view","inputs":[
		{"name":"tokenId","type":"uint256"}],"outputs":[
		{"name":"","type":"string"}]}
]`

var (
	marketplaceABI = mustParseABI(marketplaceABIJSON)

	// eventTopics are the signatures of every event the source subscribes to
	eventTopics = func() []common.Hash {
		topics := make([]common.Hash, 0, len(marketplaceABI.Events))
		for _, event := range marketplaceABI.Events {
			topics = append(topics, event.ID)
		}
		return topics
	}()
)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("invalid marketplace ABI: %v", err))
	}
	return parsed
}

// decodeLog turns a contract log into a raw event with string-encoded values.
// It returns nil for logs the marketplace does not handle, such as ERC20 transfers
// that share the ERC721 Transfer signature.
func decodeLog(chain string, vLog types.Log, observedAt time.Time) (*domain.RawEvent, error) {
	if len(vLog.Topics) == 0 {
		return nil, nil
	}

	event, err := marketplaceABI.EventByID(vLog.Topics[0])
	if err != nil {
		return nil, nil
	}

	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(vLog.Topics) != len(indexed)+1 {
		// Same signature, different indexing
		return nil, nil
	}

	values := make(map[string]any, len(event.Inputs))
	if err := event.Inputs.UnpackIntoMap(values, vLog.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack %s data: %w", event.Name, err)
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(values, indexed, vLog.Topics[1:]); err != nil {
			return nil, fmt.Errorf("failed to parse %s topics: %w", event.Name, err)
		}
	}

	fields := make(map[string]any, len(values))
	for name, value := range values {
		fields[name] = stringify(value)
	}

	return &domain.RawEvent{
		Chain:       chain,
		Contract:    strings.ToLower(vLog.Address.Hex()),
		Name:        event.Name,
		Fields:      fields,
		TxHash:      vLog.TxHash.Hex(),
		BlockNumber: vLog.BlockNumber,
		LogIndex:    vLog.Index,
		Timestamp:   observedAt,
	}, nil
}

// stringify keeps uint256 values exact once the event is serialized to JSON
func stringify(value any) any {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return "0"
		}
		return v.String()
	case common.Address:
		return strings.ToLower(v.Hex())
	case string, bool:
		return v
	default:
		return fmt.Sprint(v)
	}
}
