package normalizer

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/ff-marketplace/internal/domain"
)

// fields is the untyped return-value bag of a raw event
type fields map[string]any

func (f fields) has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

func (f fields) get(key string) (any, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("missing field %q", key)
	}
	return v, nil
}

// bigInt reads an unsigned integer field. Accepts big integers, integral numbers and
// decimal or 0x-prefixed hex strings.
func (f fields) bigInt(key string) (*big.Int, error) {
	v, err := f.get(key)
	if err != nil {
		return nil, err
	}

	var out *big.Int
	switch n := v.(type) {
	case *big.Int:
		out = new(big.Int).Set(zeroIfNil(n))
	case big.Int:
		out = new(big.Int).Set(&n)
	case json.Number:
		return fields{key: string(n)}.bigInt(key)
	case string:
		s := strings.TrimSpace(n)
		var ok bool
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			out, ok = new(big.Int).SetString(s[2:], 16)
		} else {
			out, ok = new(big.Int).SetString(s, 10)
		}
		if !ok {
			return nil, fmt.Errorf("field %q is not an integer: %q", key, n)
		}
	case uint8:
		out = new(big.Int).SetUint64(uint64(n))
	case uint16:
		out = new(big.Int).SetUint64(uint64(n))
	case uint32:
		out = new(big.Int).SetUint64(uint64(n))
	case uint64:
		out = new(big.Int).SetUint64(n)
	case uint:
		out = new(big.Int).SetUint64(uint64(n))
	case int:
		out = big.NewInt(int64(n))
	case int32:
		out = big.NewInt(int64(n))
	case int64:
		out = big.NewInt(n)
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return nil, fmt.Errorf("field %q is not an integer: %v", key, n)
		}
		out, _ = big.NewFloat(n).Int(nil)
	default:
		return nil, fmt.Errorf("field %q has unsupported type %T", key, v)
	}

	if out.Sign() < 0 {
		return nil, fmt.Errorf("field %q is negative", key)
	}
	return out, nil
}

// address reads an address field and lower-cases it
func (f fields) address(key string) (string, error) {
	v, err := f.get(key)
	if err != nil {
		return "", err
	}

	switch a := v.(type) {
	case common.Address:
		return domain.NormalizeAddress(a.Hex()), nil
	case *common.Address:
		if a == nil {
			return "", fmt.Errorf("missing field %q", key)
		}
		return domain.NormalizeAddress(a.Hex()), nil
	case string:
		if !common.IsHexAddress(a) {
			return "", fmt.Errorf("field %q is not an address: %q", key, a)
		}
		return domain.NormalizeAddress(a), nil
	default:
		return "", fmt.Errorf("field %q has unsupported type %T", key, v)
	}
}

func (f fields) string(key string) (string, error) {
	v, err := f.get(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q has unsupported type %T", key, v)
	}
	return s, nil
}
