package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AddressLength is the byte length of a ledger account/object address.
const AddressLength = 32

// NormalizeAddress validates a hex address and left-pads it to the full
// 32-byte form, so "0x2" and "0x000...02" compare equal.
func NormalizeAddress(input string) (string, error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "0x") && !strings.HasPrefix(input, "0X") {
		return "", fmt.Errorf("invalid address: %s", input)
	}
	digits := strings.ToLower(input[2:])
	if digits == "" || len(digits) > AddressLength*2 {
		return "", fmt.Errorf("invalid address: %s", input)
	}
	padded := strings.Repeat("0", AddressLength*2-len(digits)) + digits
	if _, err := hexutil.Decode("0x" + padded); err != nil {
		return "", fmt.Errorf("invalid address: %s", input)
	}
	return "0x" + padded, nil
}

// NormalizeCoinType canonicalizes a coin type such as "0x2::sui::SUI",
// including nested generic arguments.
func NormalizeCoinType(coinType string) (string, error) {
	coinType = strings.TrimSpace(coinType)
	if coinType == "" {
		return "", fmt.Errorf("coin type is empty")
	}

	head, generics := coinType, ""
	if idx := strings.Index(coinType, "<"); idx >= 0 {
		if !strings.HasSuffix(coinType, ">") {
			return "", fmt.Errorf("invalid coin type: %s", coinType)
		}
		head, generics = coinType[:idx], coinType[idx+1:len(coinType)-1]
	}

	parts := strings.Split(head, "::")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("invalid coin type: %s", coinType)
	}
	addr := parts[0]
	if !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	addr, err := NormalizeAddress(addr)
	if err != nil {
		return "", fmt.Errorf("invalid coin type %s: %w", coinType, err)
	}

	out := addr + "::" + parts[1] + "::" + parts[2]
	if generics == "" {
		return out, nil
	}

	args := splitTypeArgs(generics)
	normalized := make([]string, 0, len(args))
	for _, arg := range args {
		n, err := NormalizeCoinType(arg)
		if err != nil {
			return "", err
		}
		normalized = append(normalized, n)
	}
	return out + "<" + strings.Join(normalized, ", ") + ">", nil
}

// CoinTypeFromObjectType extracts T from an object type "0x2::coin::Coin<T>".
func CoinTypeFromObjectType(objectType string) (string, bool) {
	start := strings.Index(objectType, "<")
	if start < 0 || !strings.HasSuffix(objectType, ">") {
		return "", false
	}
	wrapper, err := NormalizeCoinType(objectType[:start])
	if err != nil || wrapper != coinWrapperType {
		return "", false
	}
	inner := objectType[start+1 : len(objectType)-1]
	normalized, err := NormalizeCoinType(inner)
	if err != nil {
		return "", false
	}
	return normalized, true
}

var coinWrapperType = mustNormalize("0x2::coin::Coin")

func mustNormalize(coinType string) string {
	n, err := NormalizeCoinType(coinType)
	if err != nil {
		panic(err)
	}
	return n
}

func splitTypeArgs(input string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range input {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(input[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(input[start:]))
}
