package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/ff-marketplace/internal/adapter"
	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/reconciler"
)

type contractReader struct {
	chain  domain.Chain
	client adapter.EthClient
	clock  adapter.Clock
}

// NewReader creates a read-only reader of the marketplace contracts of one chain
func NewReader(chain domain.Chain, client adapter.EthClient, clock adapter.Clock) reconciler.ChainReader {
	return &contractReader{chain: chain, client: client, clock: clock}
}

// AuctionList reads the on-chain state of an auction
func (r *contractReader) AuctionList(ctx context.Context, auctionID *big.Int) (*domain.AuctionInfo, error) {
	values, err := r.call(ctx, r.chain.AuctionContract, "AuctionList", auctionID)
	if err != nil {
		return nil, err
	}
	if len(values) != 6 {
		return nil, fmt.Errorf("unexpected AuctionList result: %d values", len(values))
	}

	owner, _ := values[0].(common.Address)
	collection, _ := values[1].(common.Address)
	tokenID, _ := values[2].(*big.Int)
	startPrice, _ := values[3].(*big.Int)
	latestBid, _ := values[4].(*big.Int)
	endTime, _ := values[5].(*big.Int)

	info := &domain.AuctionInfo{
		Owner:             strings.ToLower(owner.Hex()),
		CollectionAddress: strings.ToLower(collection.Hex()),
		TokenID:           tokenID,
		StartPrice:        startPrice,
		LatestBid:         latestBid,
	}
	if endTime != nil && endTime.Sign() > 0 && endTime.IsInt64() {
		info.EndTime = r.clock.Unix(endTime.Int64(), 0).UTC()
	}
	return info, nil
}

// SaleList reads the on-chain state of a fixed-price sale
func (r *contractReader) SaleList(ctx context.Context, saleID *big.Int) (*domain.SaleInfo, error) {
	values, err := r.call(ctx, r.chain.AuctionContract, "SaleList", saleID)
	if err != nil {
		return nil, err
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("unexpected SaleList result: %d values", len(values))
	}

	owner, _ := values[0].(common.Address)
	collection, _ := values[1].(common.Address)
	tokenID, _ := values[2].(*big.Int)
	price, _ := values[3].(*big.Int)

	return &domain.SaleInfo{
		Owner:             strings.ToLower(owner.Hex()),
		CollectionAddress: strings.ToLower(collection.Hex()),
		TokenID:           tokenID,
		Price:             price,
	}, nil
}

// TokenURI fetches the tokenURI from an ERC721 contract
func (r *contractReader) TokenURI(ctx context.Context, contract string, tokenID *big.Int) (string, error) {
	values, err := r.call(ctx, contract, "tokenURI", tokenID)
	if err != nil {
		return "", err
	}
	if len(values) != 1 {
		return "", fmt.Errorf("unexpected tokenURI result: %d values", len(values))
	}

	uri, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected tokenURI result type %T", values[0])
	}
	return uri, nil
}

func (r *contractReader) call(ctx context.Context, contract string, method string, args ...interface{}) ([]interface{}, error) {
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("invalid contract address %q", contract)
	}

	data, err := marketplaceABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	to := common.HexToAddress(contract)
	result, err := r.client.CallContract(callCtx, ethereum.CallMsg{
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s on %s: %w", method, contract, err)
	}

	values, err := marketplaceABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return values, nil
}
