package dex

import (
	"encoding/json"
	"fmt"
	"math/big"

	"mindswap/internal/chain"
	"mindswap/internal/model"
)

// PoolState is the pool data read from a pool object.
type PoolState struct {
	PoolID       string
	BaseAsset    string
	QuoteAsset   string
	TickSize     uint64
	LotSize      uint64
	MinSize      uint64
	BaseBalance  *big.Int
	QuoteBalance *big.Int
}

type poolFieldsJSON struct {
	BaseAsset    typeName   `json:"base_asset"`
	QuoteAsset   typeName   `json:"quote_asset"`
	TickSize     flexUint64 `json:"tick_size"`
	LotSize      flexUint64 `json:"lot_size"`
	MinSize      flexUint64 `json:"min_size"`
	BaseBalance  flexBig    `json:"base_balance"`
	QuoteBalance flexBig    `json:"quote_balance"`
}

// ParsePoolObject reads reserves and parameters from a pool object. Assets
// missing from the fields are taken from the object's type arguments.
func ParsePoolObject(resp chain.ObjectResponse) (PoolState, error) {
	if resp.Error != nil {
		return PoolState{}, fmt.Errorf("object %s: %s", resp.Error.ObjectID, resp.Error.Code)
	}
	if resp.Data == nil || resp.Data.Content == nil {
		return PoolState{}, fmt.Errorf("object has no content")
	}
	data := resp.Data

	poolID, err := model.NormalizeAddress(data.ObjectID)
	if err != nil {
		return PoolState{}, err
	}

	var fields poolFieldsJSON
	if err := json.Unmarshal(data.Content.Fields, &fields); err != nil {
		return PoolState{}, fmt.Errorf("pool %s fields: %w", poolID, err)
	}

	baseText, quoteText := string(fields.BaseAsset), string(fields.QuoteAsset)
	if baseText == "" || quoteText == "" {
		args := typeArguments(firstNonEmpty(data.Type, data.Content.Type))
		if len(args) >= 2 {
			baseText = firstNonEmpty(baseText, args[0])
			quoteText = firstNonEmpty(quoteText, args[1])
		}
	}
	base, err := model.NormalizeCoinType(baseText)
	if err != nil {
		return PoolState{}, fmt.Errorf("pool %s base asset: %w", poolID, err)
	}
	quote, err := model.NormalizeCoinType(quoteText)
	if err != nil {
		return PoolState{}, fmt.Errorf("pool %s quote asset: %w", poolID, err)
	}
	if fields.BaseBalance.v == nil || fields.QuoteBalance.v == nil {
		return PoolState{}, fmt.Errorf("pool %s: missing reserve balances", poolID)
	}

	return PoolState{
		PoolID:       poolID,
		BaseAsset:    base,
		QuoteAsset:   quote,
		TickSize:     uint64(fields.TickSize),
		LotSize:      uint64(fields.LotSize),
		MinSize:      uint64(fields.MinSize),
		BaseBalance:  fields.BaseBalance.v,
		QuoteBalance: fields.QuoteBalance.v,
	}, nil
}

// ParseCoinObject returns the coin type and balance of a Coin<T> object.
func ParseCoinObject(resp chain.ObjectResponse) (string, *big.Int, error) {
	if resp.Error != nil {
		return "", nil, fmt.Errorf("object %s: %s", resp.Error.ObjectID, resp.Error.Code)
	}
	if resp.Data == nil || resp.Data.Content == nil {
		return "", nil, fmt.Errorf("object has no content")
	}

	objectType := firstNonEmpty(resp.Data.Type, resp.Data.Content.Type)
	coinType, ok := model.CoinTypeFromObjectType(objectType)
	if !ok {
		return "", nil, fmt.Errorf("object %s is not a coin: %s", resp.Data.ObjectID, objectType)
	}

	var fields struct {
		Balance flexBig `json:"balance"`
	}
	if err := json.Unmarshal(resp.Data.Content.Fields, &fields); err != nil {
		return "", nil, fmt.Errorf("coin %s fields: %w", resp.Data.ObjectID, err)
	}
	if fields.Balance.v == nil {
		return "", nil, fmt.Errorf("coin %s: missing balance", resp.Data.ObjectID)
	}
	return coinType, fields.Balance.v, nil
}

// typeArguments returns the top-level generic arguments of a Move type.
func typeArguments(moveType string) []string {
	start := -1
	for i, r := range moveType {
		if r == '<' {
			start = i
			break
		}
	}
	if start < 0 || moveType[len(moveType)-1] != '>' {
		return nil
	}
	inner := moveType[start+1 : len(moveType)-1]

	var out []string
	depth, from := 0, 0
	for i, r := range inner {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, inner[from:i])
				from = i + 1
			}
		}
	}
	out = append(out, inner[from:])
	for i := range out {
		out[i] = firstNonEmpty(out[i])
	}
	return out
}
