// Package typecast converts bound values according to named type hints before they
// reach the driver.
package typecast

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gaborage/go-datasource/database/types"
)

// Type names accepted as hints.
const (
	Integer      = "integer"
	BigInteger   = "biginteger"
	SmallInteger = "smallinteger"
	TinyInteger  = "tinyinteger"
	Float        = "float"
	Decimal      = "decimal"
	Boolean      = "boolean"
	String       = "string"
	Text         = "text"
	Char         = "char"
	UUID         = "uuid"
	Date         = "date"
	DateTime     = "datetime"
	Timestamp    = "timestamp"
	Time         = "time"
	JSON         = "json"
	Binary       = "binary"
)

// BoolFunc renders a Go bool for the target vendor.
type BoolFunc func(bool) any

type caster func(v any, boolean BoolFunc) (any, error)

var casters = map[string]caster{
	Integer:      intCaster(math.MinInt32, math.MaxInt32),
	BigInteger:   intCaster(math.MinInt64, math.MaxInt64),
	SmallInteger: intCaster(math.MinInt16, math.MaxInt16),
	TinyInteger:  intCaster(math.MinInt8, math.MaxInt8),
	Float:        castFloat,
	Decimal:      castDecimal,
	Boolean:      castBool,
	String:       castString,
	Text:         castString,
	Char:         castString,
	UUID:         castUUID,
	Date:         timeCaster(dateLayouts, startOfDay),
	DateTime:     timeCaster(dateTimeLayouts, nil),
	Timestamp:    timeCaster(dateTimeLayouts, nil),
	Time:         castTimeOfDay,
	JSON:         castJSON,
	Binary:       castBinary,
}

var (
	dateLayouts     = []string{time.DateOnly, time.RFC3339}
	dateTimeLayouts = []string{time.RFC3339Nano, time.DateTime, "2006-01-02T15:04:05", time.DateOnly}
	timeLayouts     = []string{time.TimeOnly, "15:04", "15:04:05.999999999"}
)

// Known reports whether name is a supported type hint.
func Known(name string) bool {
	_, ok := casters[strings.ToLower(name)]
	return ok
}

// Cast converts v according to the type hint name. An empty name returns v unchanged and
// nil always passes through. Unknown names wrap types.ErrUnknownType; conversion failures
// are returned as plain errors for the caller to classify.
func Cast(name string, v any, boolean BoolFunc) (any, error) {
	if name == "" {
		return v, nil
	}
	c, ok := casters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownType, name)
	}
	if v == nil {
		return nil, nil
	}
	if boolean == nil {
		boolean = func(b bool) any { return b }
	}
	out, err := c(deref(v), boolean)
	if err != nil {
		return nil, fmt.Errorf("cannot cast %T to %s: %w", v, name, err)
	}
	return out, nil
}

// deref unwraps common pointer types so *int and friends cast like their values.
func deref(v any) any {
	switch p := v.(type) {
	case *string:
		if p == nil {
			return nil
		}
		return *p
	case *int:
		if p == nil {
			return nil
		}
		return *p
	case *int64:
		if p == nil {
			return nil
		}
		return *p
	case *float64:
		if p == nil {
			return nil
		}
		return *p
	case *bool:
		if p == nil {
			return nil
		}
		return *p
	case *time.Time:
		if p == nil {
			return nil
		}
		return *p
	default:
		return v
	}
}

func intCaster(lo, hi int64) caster {
	return func(v any, _ BoolFunc) (any, error) {
		if v == nil {
			return nil, nil
		}
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if n < lo || n > hi {
			return nil, fmt.Errorf("value %d out of range [%d, %d]", n, lo, hi)
		}
		return n, nil
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", x)
		}
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", x)
		}
		return int64(x), nil
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(x)), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported value %v", v)
	}
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f > math.MaxInt64 {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	return int64(f), nil
}

func castFloat(v any, _ BoolFunc) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
	default:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return float64(n), nil
	}
}

// castDecimal keeps exact decimal text so drivers do not lose precision.
func castDecimal(v any, _ BoolFunc) (any, error) {
	if v == nil {
		return nil, nil
	}
	var s string
	switch x := v.(type) {
	case string:
		s = strings.TrimSpace(x)
	case []byte:
		s = strings.TrimSpace(string(x))
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case *big.Rat:
		if x == nil {
			return nil, nil
		}
		s = x.FloatString(18)
	case fmt.Stringer:
		s = x.String()
	default:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		s = strconv.FormatInt(n, 10)
	}
	if _, ok := new(big.Rat).SetString(s); !ok {
		return nil, fmt.Errorf("%q is not a decimal", s)
	}
	return s, nil
}

func castBool(v any, boolean BoolFunc) (any, error) {
	if v == nil {
		return nil, nil
	}
	var b bool
	switch x := v.(type) {
	case bool:
		b = x
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return nil, err
		}
		b = parsed
	default:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		b = n != 0
	}
	return boolean(b), nil
}

func castString(v any, _ BoolFunc) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return fmt.Sprint(x), nil
	}
}

func castUUID(v any, _ BoolFunc) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case uuid.UUID:
		return x.String(), nil
	case [16]byte:
		return uuid.UUID(x).String(), nil
	case []byte:
		if len(x) == 16 {
			id, err := uuid.FromBytes(x)
			if err != nil {
				return nil, err
			}
			return id.String(), nil
		}
		return parseUUID(string(x))
	case string:
		return parseUUID(x)
	default:
		return nil, fmt.Errorf("unsupported value %v", v)
	}
}

func parseUUID(s string) (any, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return id.String(), nil
}

func timeCaster(layouts []string, normalize func(time.Time) time.Time) caster {
	return func(v any, _ BoolFunc) (any, error) {
		var t time.Time
		switch x := v.(type) {
		case nil:
			return nil, nil
		case time.Time:
			t = x
		case string:
			parsed, err := parseTime(strings.TrimSpace(x), layouts)
			if err != nil {
				return nil, err
			}
			t = parsed
		case int64:
			t = time.Unix(x, 0).UTC()
		case int:
			t = time.Unix(int64(x), 0).UTC()
		default:
			return nil, fmt.Errorf("unsupported value %v", v)
		}
		if normalize != nil {
			t = normalize(t)
		}
		return t, nil
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func castTimeOfDay(v any, _ BoolFunc) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return x.Format(time.TimeOnly), nil
	case time.Duration:
		return time.Time{}.Add(x).Format(time.TimeOnly), nil
	case string:
		t, err := parseTime(strings.TrimSpace(x), timeLayouts)
		if err != nil {
			return nil, err
		}
		return t.Format(time.TimeOnly), nil
	default:
		return nil, fmt.Errorf("unsupported value %v", v)
	}
}

func parseTime(s string, layouts []string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q does not match %s", s, strings.Join(layouts, ", "))
}

// castJSON encodes v as JSON text. Strings and byte slices must already be valid JSON.
func castJSON(v any, _ BoolFunc) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		if !json.Valid([]byte(x)) {
			return nil, fmt.Errorf("invalid JSON text")
		}
		return x, nil
	case []byte:
		if !json.Valid(x) {
			return nil, fmt.Errorf("invalid JSON text")
		}
		return string(x), nil
	case json.RawMessage:
		return string(x), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}

func castBinary(v any, _ BoolFunc) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return x, nil
	case string:
		if strings.HasPrefix(x, `\x`) {
			return hex.DecodeString(x[2:])
		}
		return []byte(x), nil
	default:
		return nil, fmt.Errorf("unsupported value %v", v)
	}
}
