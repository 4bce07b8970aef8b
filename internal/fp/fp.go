// Package fp implements signed Q64.64 binary fixed-point arithmetic: a
// 128-bit two's-complement mantissa with 64 fractional bits, no floating
// point anywhere. Go has no native int128, so the mantissa is carried in a
// math/big.Int the way tezos.Z in the reference corpus carries a Zarith
// number — a named type wrapping *big.Int with value-semantics methods.
//
// Rounding is truncation toward negative infinity on the fractional bits
// produced by multiplication and division; overflow is always an error,
// never silent wraparound or saturation.
package fp

import "math/big"

const fracBits = 64

// Fixed is a signed Q64.64 value. The zero value is 0.
type Fixed struct {
	v *big.Int // raw mantissa; value = v / 2^64
}

var (
	one128   = new(big.Int).Lsh(big.NewInt(1), fracBits)             // 2^64
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

func fromRaw(raw *big.Int) (Fixed, error) {
	if raw.Cmp(maxInt128) > 0 || raw.Cmp(minInt128) < 0 {
		return Fixed{}, ErrOverflow
	}
	return Fixed{v: new(big.Int).Set(raw)}, nil
}

// Zero is the additive identity.
func Zero() Fixed { return Fixed{v: big.NewInt(0)} }

// One is the multiplicative identity.
func One() Fixed { return Fixed{v: new(big.Int).Set(one128)} }

// FromUint lifts an unsigned integer into Q64.64 exactly. Errors with
// ErrOverflow if u >= 2^63, since u<<64 would not fit the signed range.
func FromUint(u uint64) (Fixed, error) {
	if u >= 1<<63 {
		return Fixed{}, ErrOverflow
	}
	raw := new(big.Int).Lsh(new(big.Int).SetUint64(u), fracBits)
	return fromRaw(raw)
}

// ToUint truncates x toward zero and returns it as an unsigned integer.
// Errors with ErrNegative if x < 0.
func ToUint(x Fixed) (uint64, error) {
	if x.v.Sign() < 0 {
		return 0, ErrNegative
	}
	q := new(big.Int).Rsh(x.v, fracBits) // arithmetic shift truncates toward zero for non-negative values
	return q.Uint64(), nil
}

// Divu computes (a<<64)/b as a Q64.64 value for unsigned integers a, b,
// truncated toward negative infinity when b does not divide a<<64.
// Errors with ErrDivByZero if b == 0.
func Divu(a, b uint64) (Fixed, error) {
	if b == 0 {
		return Fixed{}, ErrDivByZero
	}
	num := new(big.Int).Lsh(new(big.Int).SetUint64(a), fracBits)
	den := new(big.Int).SetUint64(b)
	return fromRaw(floorDiv(num, den))
}

// Add returns x+y, erroring with ErrOverflow if the result does not fit.
func Add(x, y Fixed) (Fixed, error) {
	return fromRaw(new(big.Int).Add(x.v, y.v))
}

// Sub returns x-y, erroring with ErrOverflow if the result does not fit.
func Sub(x, y Fixed) (Fixed, error) {
	return fromRaw(new(big.Int).Sub(x.v, y.v))
}

// Mul returns x*y truncated toward negative infinity on the fractional
// remainder, erroring with ErrOverflow if the result does not fit.
func Mul(x, y Fixed) (Fixed, error) {
	prod := new(big.Int).Mul(x.v, y.v)
	return fromRaw(floorDiv(prod, one128))
}

// Div returns x/y truncated toward negative infinity on the fractional
// remainder. Errors with ErrDivByZero if y == 0, ErrOverflow if the result
// does not fit.
func Div(x, y Fixed) (Fixed, error) {
	if y.v.Sign() == 0 {
		return Fixed{}, ErrDivByZero
	}
	num := new(big.Int).Mul(x.v, one128)
	return fromRaw(floorDiv(num, y.v))
}

// Pow raises x to the n-th power for a small non-negative integer n via
// repeated squaring. Pow(x, 0) == 1 for every x, including 0.
func Pow(x Fixed, n uint64) (Fixed, error) {
	result := One()
	base := x
	for n > 0 {
		if n&1 == 1 {
			var err error
			result, err = Mul(result, base)
			if err != nil {
				return Fixed{}, err
			}
		}
		n >>= 1
		if n == 0 {
			break
		}
		var err error
		base, err = Mul(base, base)
		if err != nil {
			return Fixed{}, err
		}
	}
	return result, nil
}

// Cmp compares x and y: -1, 0, +1.
func Cmp(x, y Fixed) int { return x.v.Cmp(y.v) }

// Sign returns -1, 0, or +1 depending on the sign of x.
func Sign(x Fixed) int { return x.v.Sign() }

// String renders the raw mantissa for diagnostics/logging.
func (x Fixed) String() string {
	if x.v == nil {
		return "0"
	}
	return x.v.String()
}

// floorDiv computes floor(num/den) for arbitrary signs of num and den,
// unlike big.Int.Quo (truncates toward zero) or big.Int.Div (Euclidean,
// which only coincides with floor division when den > 0 — true for every
// caller in this package since den is always either 2^64 or an unsigned
// divisor lifted into Q64.64, but implemented generally for Div/y<0).
func floorDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int), new(big.Int)
	q.QuoRem(num, den, r)
	if r.Sign() != 0 && (r.Sign() < 0) != (den.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return q
}
