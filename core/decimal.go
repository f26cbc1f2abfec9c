package core

import (
	"math/big"

	"github.com/synnergy-network/corevm/pkg/utils"
)

// decimalScale is the number of implied fractional digits carried by
// Decimal's underlying integer, following the fixed-point convention
// the teacher's ledger balances use for token amounts.
const decimalScale = 18

var decimalUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(decimalScale), nil)

// decimalMax bounds the representable magnitude of a Decimal's
// underlying integer at 192 bits, the checked-arithmetic ceiling
// mint/burn bookkeeping is validated against (spec §4.8).
var decimalMax = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 192), big.NewInt(1))

// Decimal is a fixed-point amount used for resource quantities, fee
// reserves and royalties (spec §5). It wraps big.Int rather than a
// float so arithmetic stays exact and deterministic across nodes,
// grounded on the big.Int balance idiom the teacher's ledger and
// go-ethereum both use for token amounts.
type Decimal struct {
	v *big.Int // value * 10^decimalScale
}

func NewDecimalFromInt64(i int64) Decimal {
	return Decimal{v: new(big.Int).Mul(big.NewInt(i), decimalUnit)}
}

func DecimalZero() Decimal { return NewDecimalFromInt64(0) }

// ParseDecimal parses a base-10 string with at most decimalScale
// fractional digits, e.g. "0.00000005".
func ParseDecimal(s string) (Decimal, bool) {
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	intPart, fracPart := s, ""
	for i, c := range s {
		if c == '.' {
			intPart, fracPart = s[:i], s[i+1:]
			break
		}
	}
	if len(fracPart) > decimalScale {
		return Decimal{}, false
	}
	for len(fracPart) < decimalScale {
		fracPart += "0"
	}
	if intPart == "" {
		intPart = "0"
	}
	combined := intPart + fracPart
	v, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return Decimal{}, false
	}
	if neg {
		v.Neg(v)
	}
	return Decimal{v: v}, true
}

func (d Decimal) Add(o Decimal) Decimal { return Decimal{v: new(big.Int).Add(d.v, o.v)} }
func (d Decimal) Sub(o Decimal) Decimal { return Decimal{v: new(big.Int).Sub(d.v, o.v)} }

func (d Decimal) Mul(o Decimal) Decimal {
	prod := new(big.Int).Mul(d.v, o.v)
	return Decimal{v: prod.Div(prod, decimalUnit)}
}

// CheckedAdd adds o to d, failing instead of silently wrapping once the
// result would exceed the representable range (spec §4.8, "checked
// arithmetic — overflow -> UnexpectedDecimalComputationError").
func (d Decimal) CheckedAdd(o Decimal) (Decimal, error) {
	sum := new(big.Int).Add(d.v, o.v)
	abs := new(big.Int).Abs(sum)
	if abs.Cmp(decimalMax) > 0 {
		return Decimal{}, utils.Application("UnexpectedDecimalComputationError", "decimal addition overflowed the representable range")
	}
	return Decimal{v: sum}, nil
}

func (d Decimal) IsNegative() bool { return d.v.Sign() < 0 }
func (d Decimal) IsZero() bool     { return d.v.Sign() == 0 }
func (d Decimal) Cmp(o Decimal) int { return d.v.Cmp(o.v) }

func (d Decimal) String() string {
	neg := d.v.Sign() < 0
	abs := new(big.Int).Abs(d.v)
	s := abs.String()
	for len(s) <= decimalScale {
		s = "0" + s
	}
	intPart := s[:len(s)-decimalScale]
	fracPart := s[len(s)-decimalScale:]
	out := intPart + "." + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

// MulByCostUnits scales a per-unit price by a whole number of cost
// units, used by CostingModule to charge fees.
func (d Decimal) MulByCostUnits(units uint64) Decimal {
	return d.Mul(NewDecimalFromInt64(int64(units)))
}
