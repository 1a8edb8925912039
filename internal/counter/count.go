package counter

import (
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"regexp"
	"strconv"
)

var (
	errNotFinite = errors.New("not a finite decimal")
	errTooLarge  = errors.New("exponent or length out of range")
)

// Count is a counter value as the storage engine reports it: an
// arbitrary-precision decimal. The zero value is 0.
type Count struct {
	v *big.Rat
}

func CountOf(n int64) Count {
	return Count{v: new(big.Rat).SetInt64(n)}
}

func CountOfFloat(f float64) (Count, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return Count{}, &SerializationError{Value: strconv.FormatFloat(f, 'g', -1, 64), Err: errNotFinite}
	}
	return Count{v: new(big.Rat).SetFloat64(f)}, nil
}

// DynamoDB numbers carry at most 38 digits and exponents within -130..125;
// anything far outside that did not come from a counter.
const (
	maxCountLen = 128
	maxExponent = 400
)

var decimalPattern = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE]([+-]?[0-9]+))?$`)

// ParseCount parses a plain decimal string such as "42", "1.5" or "1E+3".
// Fractions, base prefixes and huge exponents are rejected.
func ParseCount(s string) (Count, error) {
	if len(s) > maxCountLen {
		return Count{}, &SerializationError{Value: s[:maxCountLen] + "...", Err: errTooLarge}
	}
	m := decimalPattern.FindStringSubmatch(s)
	if m == nil {
		return Count{}, &SerializationError{Value: s, Err: errNotFinite}
	}
	if m[1] != "" {
		exp, err := strconv.Atoi(m[1])
		if err != nil || exp > maxExponent || exp < -maxExponent {
			return Count{}, &SerializationError{Value: s, Err: errTooLarge}
		}
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Count{}, &SerializationError{Value: s, Err: errNotFinite}
	}
	return Count{v: r}, nil
}

func (c Count) rat() *big.Rat {
	if c.v == nil {
		return new(big.Rat)
	}
	return c.v
}

// IsInt reports whether the value has no fractional part.
func (c Count) IsInt() bool {
	return c.rat().IsInt()
}

// Int64 returns the value when it is an integer that fits in int64.
func (c Count) Int64() (int64, bool) {
	r := c.rat()
	if !r.IsInt() || !r.Num().IsInt64() {
		return 0, false
	}
	return r.Num().Int64(), true
}

func (c Count) Add(n int64) Count {
	return Count{v: new(big.Rat).Add(c.rat(), new(big.Rat).SetInt64(n))}
}

func (c Count) Cmp(o Count) int {
	return c.rat().Cmp(o.rat())
}

func (c Count) String() string {
	r := c.rat()
	if r.IsInt() {
		return r.Num().String()
	}
	return r.FloatString(decimalDigits(r))
}

// MarshalJSON writes integers as plain JSON integers of any magnitude and
// everything else as a float64.
func (c Count) MarshalJSON() ([]byte, error) {
	r := c.rat()
	if r.IsInt() {
		return []byte(r.Num().String()), nil
	}
	f, _ := r.Float64()
	if math.IsInf(f, 0) {
		return nil, &SerializationError{Value: c.String(), Err: errNotFinite}
	}
	return json.Marshal(f)
}

func (c *Count) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return &SerializationError{Value: string(b), Err: err}
	}
	v, err := ParseCount(n.String())
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// decimalDigits is the number of digits after the point needed to print r
// exactly, capped for values like 1/3 that never terminate.
func decimalDigits(r *big.Rat) int {
	const maxDigits = 38
	d := new(big.Int).Set(r.Denom())
	ten := big.NewInt(10)
	for i := 0; i < maxDigits; i++ {
		if d.Cmp(big.NewInt(1)) == 0 {
			return i
		}
		g := new(big.Int).GCD(nil, nil, d, ten)
		if g.Cmp(big.NewInt(1)) == 0 {
			return maxDigits
		}
		d.Quo(d, g)
	}
	return maxDigits
}
