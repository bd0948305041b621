package dex

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"mindswap/internal/chain"
	"mindswap/internal/model"
)

// PoolCreated is the decoded payload of a pool creation event.
type PoolCreated struct {
	PoolID     string
	BaseAsset  string
	QuoteAsset string
	TickSize   uint64
	LotSize    uint64
	MinSize    uint64
}

// PoolCreatedDecoder decodes <package>::<module>::PoolCreated events.
type PoolCreatedDecoder struct {
	eventType string
}

// NewPoolCreatedDecoder builds a decoder for the given package and module.
func NewPoolCreatedDecoder(packageID, module string) (*PoolCreatedDecoder, error) {
	eventType, err := model.NormalizeCoinType(packageID + "::" + module + "::PoolCreated")
	if err != nil {
		return nil, fmt.Errorf("pool created event type: %w", err)
	}
	return &PoolCreatedDecoder{eventType: eventType}, nil
}

// EventType returns the canonical Move event type this decoder accepts.
func (d *PoolCreatedDecoder) EventType() string { return d.eventType }

// CanDecode checks if the event type is supported.
func (d *PoolCreatedDecoder) CanDecode(eventType string) bool {
	normalized, err := model.NormalizeCoinType(eventType)
	return err == nil && normalized == d.eventType
}

type poolCreatedJSON struct {
	PoolID     string     `json:"pool_id"`
	PoolIDAlt  string     `json:"poolId"`
	BaseAsset  typeName   `json:"base_asset"`
	BaseAlt    typeName   `json:"baseAsset"`
	QuoteAsset typeName   `json:"quote_asset"`
	QuoteAlt   typeName   `json:"quoteAsset"`
	TickSize   flexUint64 `json:"tick_size"`
	TickAlt    flexUint64 `json:"tickSize"`
	LotSize    flexUint64 `json:"lot_size"`
	LotAlt     flexUint64 `json:"lotSize"`
	MinSize    flexUint64 `json:"min_size"`
	MinAlt     flexUint64 `json:"minSize"`
}

// Decode converts an event into a PoolCreated record.
func (d *PoolCreatedDecoder) Decode(event chain.Event) (PoolCreated, error) {
	if !d.CanDecode(event.Type) {
		return PoolCreated{}, fmt.Errorf("unsupported event type: %s", event.Type)
	}
	if len(event.ParsedJSON) == 0 {
		return PoolCreated{}, fmt.Errorf("event %s: missing parsed json", event.ID.TxDigest)
	}

	var payload poolCreatedJSON
	if err := json.Unmarshal(event.ParsedJSON, &payload); err != nil {
		return PoolCreated{}, fmt.Errorf("event %s: %w", event.ID.TxDigest, err)
	}

	poolID := firstNonEmpty(payload.PoolID, payload.PoolIDAlt)
	if poolID == "" {
		return PoolCreated{}, fmt.Errorf("event %s: missing pool id", event.ID.TxDigest)
	}
	poolID, err := model.NormalizeAddress(poolID)
	if err != nil {
		return PoolCreated{}, err
	}

	base, err := model.NormalizeCoinType(firstNonEmpty(string(payload.BaseAsset), string(payload.BaseAlt)))
	if err != nil {
		return PoolCreated{}, fmt.Errorf("pool %s base asset: %w", poolID, err)
	}
	quote, err := model.NormalizeCoinType(firstNonEmpty(string(payload.QuoteAsset), string(payload.QuoteAlt)))
	if err != nil {
		return PoolCreated{}, fmt.Errorf("pool %s quote asset: %w", poolID, err)
	}

	return PoolCreated{
		PoolID:     poolID,
		BaseAsset:  base,
		QuoteAsset: quote,
		TickSize:   firstNonZero(payload.TickSize, payload.TickAlt),
		LotSize:    firstNonZero(payload.LotSize, payload.LotAlt),
		MinSize:    firstNonZero(payload.MinSize, payload.MinAlt),
	}, nil
}

// typeName accepts either "0x2::sui::SUI" or {"name": "0x2::sui::SUI"}.
type typeName string

func (t *typeName) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = typeName(s)
		return nil
	}
	var wrapped struct {
		Name   string `json:"name"`
		Fields *struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return fmt.Errorf("type name: %w", err)
	}
	if wrapped.Fields != nil && wrapped.Name == "" {
		wrapped.Name = wrapped.Fields.Name
	}
	*t = typeName(wrapped.Name)
	return nil
}

// flexUint64 accepts a u64 encoded as a JSON string or number.
type flexUint64 uint64

func (f *flexUint64) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(data), `"`)
	if text == "" || text == "null" {
		return nil
	}
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return fmt.Errorf("u64: %w", err)
	}
	*f = flexUint64(v)
	return nil
}

// flexBig accepts an arbitrary-size unsigned integer as a JSON string or number.
type flexBig struct {
	v *big.Int
}

func (f *flexBig) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(data), `"`)
	if text == "" || text == "null" {
		return nil
	}
	v, ok := new(big.Int).SetString(text, 10)
	if !ok || v.Sign() < 0 {
		return fmt.Errorf("invalid unsigned integer: %s", text)
	}
	f.v = v
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstNonZero(values ...flexUint64) uint64 {
	for _, v := range values {
		if v != 0 {
			return uint64(v)
		}
	}
	return 0
}
