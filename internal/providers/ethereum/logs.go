package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace/internal/adapter"
	"github.com/feral-file/ff-marketplace/internal/logger"
)

const (
	// defaultLogRange is the block span of one eth_getLogs request
	defaultLogRange = uint64(10_000)
	// minLogRange stops the range from shrinking further
	minLogRange = uint64(1)
)

// filterLogs fetches the logs of [fromBlock, toBlock] in ranges, halving the range
// whenever the node refuses a request for returning too many results
func filterLogs(ctx context.Context, client adapter.EthClient, query ethereum.FilterQuery, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	step := defaultLogRange

	for from := fromBlock; from <= toBlock; {
		to := from + step - 1
		if to > toBlock {
			to = toBlock
		}

		rangeQuery := query
		rangeQuery.FromBlock = new(big.Int).SetUint64(from)
		rangeQuery.ToBlock = new(big.Int).SetUint64(to)

		result, err := client.FilterLogs(ctx, rangeQuery)
		if err == nil {
			logs = append(logs, result...)
			from = to + 1
			continue
		}

		if !isTooManyResultsError(err) || step <= minLogRange {
			return nil, fmt.Errorf("failed to filter logs %d-%d: %w", from, to, err)
		}

		step /= 2
		logger.WarnCtx(ctx, "Too many results, reducing log range",
			zap.Uint64("newRange", step),
			zap.Uint64("fromBlock", from),
			zap.Uint64("toBlock", to))
	}

	return logs, nil
}

// isTooManyResultsError checks if the error is related to too many results
func isTooManyResultsError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "query returned more than 10000 results") ||
		strings.Contains(errStr, "query timeout exceeded") ||
		strings.Contains(errStr, "too many results") ||
		strings.Contains(errStr, "exceeded maximum")
}
