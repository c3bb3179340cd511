// pkg/network/soroban/scval.go
package soroban

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"

	"github.com/stellar/go-stellar-sdk/xdr"
)

// maxSymbolLen is the longest symbol a contract accepts.
const maxSymbolLen = 32

var (
	two64  = new(big.Int).Lsh(big.NewInt(1), 64)
	two127 = new(big.Int).Lsh(big.NewInt(1), 127)
	two128 = new(big.Int).Lsh(big.NewInt(1), 128)
)

// ScVals converts decoded JSON arguments into contract values. See ScVal for the mapping.
func ScVals(args []any) ([]xdr.ScVal, error) {
	out := make([]xdr.ScVal, 0, len(args))
	for i, arg := range args {
		v, err := ScVal(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ScVal converts one decoded JSON value into a contract value:
//
//	null                       void
//	true/false                 bool
//	integer                    i64, or i128 when it does not fit
//	"G..." / "C..." strkey     address
//	other string               string
//	array                      vec
//	object                     map with symbol keys, sorted
//	{"type": T, "value": V}    explicit type T (bool, u32, i32, u64, i64, u128, i128,
//	                           string, symbol, address, bytes as hex, void)
func ScVal(v any) (xdr.ScVal, error) {
	switch t := v.(type) {
	case nil:
		return xdr.ScVal{Type: xdr.ScValTypeScvVoid}, nil
	case bool:
		return scBool(t), nil
	case int:
		return scI64(int64(t)), nil
	case int32:
		return scI64(int64(t)), nil
	case int64:
		return scI64(t), nil
	case uint32:
		return scU64(uint64(t)), nil
	case uint64:
		return scU64(t), nil
	case float64:
		if t != math.Trunc(t) || t < math.MinInt64 || t >= math.MaxInt64 {
			return xdr.ScVal{}, fmt.Errorf("number %v is not an integer in the i64 range", t)
		}
		return scI64(int64(t)), nil
	case json.Number:
		return scInteger(t.String())
	case string:
		if IsAddress(t) {
			return scAddress(t)
		}
		return scString(t), nil
	case []any:
		items := make([]xdr.ScVal, 0, len(t))
		for i, item := range t {
			sv, err := ScVal(item)
			if err != nil {
				return xdr.ScVal{}, fmt.Errorf("element %d: %w", i, err)
			}
			items = append(items, sv)
		}
		return scVec(items), nil
	case map[string]any:
		if typ, value, ok := typedValue(t); ok {
			return scTyped(typ, value)
		}
		return scMap(t)
	default:
		return xdr.ScVal{}, fmt.Errorf("unsupported argument type %T", v)
	}
}

// IsSymbol reports whether s can be encoded as a contract symbol.
func IsSymbol(s string) bool {
	if s == "" || len(s) > maxSymbolLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

func typedValue(m map[string]any) (string, any, bool) {
	if len(m) != 2 {
		return "", nil, false
	}
	typ, ok := m["type"].(string)
	if !ok {
		return "", nil, false
	}
	value, ok := m["value"]
	return typ, value, ok
}

func scTyped(typ string, value any) (xdr.ScVal, error) {
	text := fmt.Sprint(value)
	switch typ {
	case "void":
		return xdr.ScVal{Type: xdr.ScValTypeScvVoid}, nil
	case "bool":
		b, ok := value.(bool)
		if !ok {
			return xdr.ScVal{}, fmt.Errorf("bool value expected, got %T", value)
		}
		return scBool(b), nil
	case "u32":
		n, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return xdr.ScVal{}, fmt.Errorf("u32: %w", err)
		}
		u := xdr.Uint32(n)
		return xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &u}, nil
	case "i32":
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return xdr.ScVal{}, fmt.Errorf("i32: %w", err)
		}
		i := xdr.Int32(n)
		return xdr.ScVal{Type: xdr.ScValTypeScvI32, I32: &i}, nil
	case "u64":
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return xdr.ScVal{}, fmt.Errorf("u64: %w", err)
		}
		return scU64(n), nil
	case "i64":
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return xdr.ScVal{}, fmt.Errorf("i64: %w", err)
		}
		return scI64(n), nil
	case "u128":
		n, ok := new(big.Int).SetString(text, 10)
		if !ok || n.Sign() < 0 || n.Cmp(two128) >= 0 {
			return xdr.ScVal{}, fmt.Errorf("u128: %q out of range", text)
		}
		hi, lo := split128(n)
		parts := xdr.UInt128Parts{Hi: xdr.Uint64(hi), Lo: xdr.Uint64(lo)}
		return xdr.ScVal{Type: xdr.ScValTypeScvU128, U128: &parts}, nil
	case "i128":
		n, ok := new(big.Int).SetString(text, 10)
		if !ok {
			return xdr.ScVal{}, fmt.Errorf("i128: %q is not an integer", text)
		}
		return scI128(n)
	case "string":
		s, ok := value.(string)
		if !ok {
			return xdr.ScVal{}, fmt.Errorf("string value expected, got %T", value)
		}
		return scString(s), nil
	case "symbol":
		if !IsSymbol(text) {
			return xdr.ScVal{}, fmt.Errorf("symbol: %q is not a valid symbol", text)
		}
		sym := xdr.ScSymbol(text)
		return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}, nil
	case "address":
		return scAddress(text)
	case "bytes":
		raw, err := hex.DecodeString(text)
		if err != nil {
			return xdr.ScVal{}, fmt.Errorf("bytes: %w", err)
		}
		b := xdr.ScBytes(raw)
		return xdr.ScVal{Type: xdr.ScValTypeScvBytes, Bytes: &b}, nil
	default:
		return xdr.ScVal{}, fmt.Errorf("unknown argument type %q", typ)
	}
}

func scInteger(text string) (xdr.ScVal, error) {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return scI64(n), nil
	}
	n, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return xdr.ScVal{}, fmt.Errorf("number %s is not an integer", text)
	}
	return scI128(n)
}

func scI128(n *big.Int) (xdr.ScVal, error) {
	if n.Cmp(two127) >= 0 || n.Cmp(new(big.Int).Neg(two127)) < 0 {
		return xdr.ScVal{}, fmt.Errorf("integer %s does not fit in i128", n)
	}
	twos := new(big.Int).Set(n)
	if twos.Sign() < 0 {
		twos.Add(twos, two128)
	}
	hi, lo := split128(twos)
	parts := xdr.Int128Parts{Hi: xdr.Int64(int64(hi)), Lo: xdr.Uint64(lo)}
	return xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &parts}, nil
}

// split128 returns the high and low 64-bit words of a non-negative n below 2^128.
func split128(n *big.Int) (uint64, uint64) {
	hi := new(big.Int).Rsh(n, 64)
	lo := new(big.Int).Mod(n, two64)
	return hi.Uint64(), lo.Uint64()
}

func scBool(b bool) xdr.ScVal {
	return xdr.ScVal{Type: xdr.ScValTypeScvBool, B: &b}
}

func scI64(n int64) xdr.ScVal {
	i := xdr.Int64(n)
	return xdr.ScVal{Type: xdr.ScValTypeScvI64, I64: &i}
}

func scU64(n uint64) xdr.ScVal {
	u := xdr.Uint64(n)
	return xdr.ScVal{Type: xdr.ScValTypeScvU64, U64: &u}
}

func scString(s string) xdr.ScVal {
	str := xdr.ScString(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvString, Str: &str}
}

func scAddress(s string) (xdr.ScVal, error) {
	addr, err := ScAddress(s)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &addr}, nil
}

func scVec(items []xdr.ScVal) xdr.ScVal {
	vec := xdr.ScVec(items)
	p := &vec
	return xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &p}
}

func scMap(m map[string]any) (xdr.ScVal, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		if !IsSymbol(k) {
			return xdr.ScVal{}, fmt.Errorf("map key %q is not a valid symbol", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make(xdr.ScMap, 0, len(keys))
	for _, k := range keys {
		val, err := ScVal(m[k])
		if err != nil {
			return xdr.ScVal{}, fmt.Errorf("key %s: %w", k, err)
		}
		sym := xdr.ScSymbol(k)
		entries = append(entries, xdr.ScMapEntry{
			Key: xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym},
			Val: val,
		})
	}
	p := &entries
	return xdr.ScVal{Type: xdr.ScValTypeScvMap, Map: &p}, nil
}
