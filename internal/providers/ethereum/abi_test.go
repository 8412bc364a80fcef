package ethereum

import (
	"errors"
	"math/big"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/logger"
)

var (
	mintContract    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	auctionContract = common.HexToAddress("0x2222222222222222222222222222222222222222")
	collection      = common.HexToAddress("0x3333333333333333333333333333333333333333")
	alice           = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	bob             = common.HexToAddress("0xB0B0000000000000000000000000000000000002")
	observedAt      = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// eventLog builds a log for an event whose inputs are all non-indexed
func eventLog(t *testing.T, contract common.Address, block uint64, index uint, name string, args ...interface{}) types.Log {
	t.Helper()

	event, ok := marketplaceABI.Events[name]
	require.True(t, ok, name)
	data, err := event.Inputs.NonIndexed().Pack(args...)
	require.NoError(t, err)

	return types.Log{
		Address:     contract,
		Topics:      []common.Hash{event.ID},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block*1000 + uint64(index))),
		Index:       index,
	}
}

func transferLog(contract common.Address, block uint64, index uint, from, to common.Address, tokenID int64) types.Log {
	return types.Log{
		Address: contract,
		Topics: []common.Hash{
			marketplaceABI.Events[EventTransfer].ID,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(big.NewInt(tokenID)),
		},
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block*1000 + uint64(index))),
		Index:       index,
	}
}

func lower(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func TestDecodeLog(t *testing.T) {
	huge, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)

	tests := []struct {
		name   string
		log    types.Log
		event  string
		fields map[string]any
	}{
		{
			name:   "NewCollection",
			log:    eventLog(t, mintContract, 1, 0, EventNewCollection, collection, alice, "Genesis"),
			event:  EventNewCollection,
			fields: map[string]any{"CollectionAddress": lower(collection), "owner": lower(alice), "colName": "Genesis"},
		},
		{
			name:   "Transfer",
			log:    transferLog(collection, 1, 1, alice, bob, 9),
			event:  EventTransfer,
			fields: map[string]any{"from": lower(alice), "to": lower(bob), "tokenId": "9"},
		},
		{
			name:   "NewAuction",
			log:    eventLog(t, auctionContract, 1, 2, EventNewAuction, collection, big.NewInt(5), big.NewInt(7)),
			event:  EventNewAuction,
			fields: map[string]any{"colAddress": lower(collection), "tokenId": "5", "aucId": "7"},
		},
		{
			name:   "NewBid keeps every digit",
			log:    eventLog(t, auctionContract, 1, 3, EventNewBid, huge, bob, big.NewInt(7)),
			event:  EventNewBid,
			fields: map[string]any{"bid": huge.String(), "bidder": lower(bob), "aucId": "7"},
		},
		{
			name:   "NFTClaim",
			log:    eventLog(t, auctionContract, 1, 4, EventNFTClaim, big.NewInt(7), bob),
			event:  EventNFTClaim,
			fields: map[string]any{"aucId": "7", "newOwner": lower(bob)},
		},
		{
			name:   "NFTSale",
			log:    eventLog(t, auctionContract, 1, 5, EventNFTSale, big.NewInt(7), alice, big.NewInt(150)),
			event:  EventNFTSale,
			fields: map[string]any{"aucId": "7", "owner": lower(alice), "amount": "150"},
		},
		{
			name:   "ClaimBack",
			log:    eventLog(t, auctionContract, 1, 6, EventClaimBack, big.NewInt(7)),
			event:  EventClaimBack,
			fields: map[string]any{"aucId": "7"},
		},
		{
			name:   "NewSale",
			log:    eventLog(t, auctionContract, 1, 7, EventNewSale, collection, big.NewInt(8), big.NewInt(3), big.NewInt(50)),
			event:  EventNewSale,
			fields: map[string]any{"colAddress": lower(collection), "tokenId": "8", "saleId": "3", "price": "50"},
		},
		{
			name:   "SaleCancelled",
			log:    eventLog(t, auctionContract, 1, 8, EventSaleCancelled, big.NewInt(3)),
			event:  EventSaleCancelled,
			fields: map[string]any{"saleId": "3"},
		},
		{
			name:   "SaleCompleted",
			log:    eventLog(t, auctionContract, 1, 9, EventSaleCompleted, big.NewInt(3), bob),
			event:  EventSaleCompleted,
			fields: map[string]any{"saleId": "3", "newOwner": lower(bob)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := decodeLog(domain.CHAIN_ETHEREUM, tt.log, observedAt)
			require.NoError(t, err)
			require.NotNil(t, raw)

			assert.Equal(t, tt.event, raw.Name)
			assert.Equal(t, tt.fields, raw.Fields)
			assert.Equal(t, domain.CHAIN_ETHEREUM, raw.Chain)
			assert.Equal(t, lower(tt.log.Address), raw.Contract)
			assert.Equal(t, tt.log.TxHash.Hex(), raw.TxHash)
			assert.Equal(t, tt.log.Index, raw.LogIndex)
			assert.Equal(t, observedAt, raw.Timestamp)
		})
	}
}

func TestDecodeLog_Skipped(t *testing.T) {
	erc20 := transferLog(collection, 1, 0, alice, bob, 0)
	erc20.Topics = erc20.Topics[:3]
	erc20.Data = common.BigToHash(big.NewInt(1000)).Bytes()

	unknown := types.Log{Topics: []common.Hash{common.HexToHash("0xdeadbeef")}}

	for name, log := range map[string]types.Log{
		"erc20 transfer": erc20,
		"unknown topic":  unknown,
		"no topics":      {},
	} {
		t.Run(name, func(t *testing.T) {
			raw, err := decodeLog(domain.CHAIN_ETHEREUM, log, observedAt)
			require.NoError(t, err)
			assert.Nil(t, raw)
		})
	}
}

func TestDecodeLog_TruncatedData(t *testing.T) {
	log := eventLog(t, auctionContract, 1, 0, EventNewBid, big.NewInt(1), bob, big.NewInt(7))
	log.Data = log.Data[:40]

	_, err := decodeLog(domain.CHAIN_ETHEREUM, log, observedAt)
	assert.Error(t, err)
}

func TestIsTooManyResultsError(t *testing.T) {
	assert.True(t, isTooManyResultsError(errors.New("query returned more than 10000 results")))
	assert.True(t, isTooManyResultsError(errors.New("Log response size exceeded maximum")))
	assert.False(t, isTooManyResultsError(errors.New("connection refused")))
	assert.False(t, isTooManyResultsError(nil))
}
