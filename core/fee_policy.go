package core

// fee_policy.go implements the FeePolicy tagged variant SPEC_FULL §4.11
// adds on top of spec.md's transaction validation rules: a linear policy
// (a + b*size) and a flat constant policy. Grounded on the teacher's
// WeightConfig (the teacher's core/consensus_weights.go)
// which already expresses coefficient-based formulas as plain structs
// with a Calculate-style method.

import "fmt"

// FeePolicyKind selects which variant of FeePolicy is active.
type FeePolicyKind uint8

const (
	FeePolicyLinear FeePolicyKind = iota
	FeePolicyConstant
)

// Rational is a simple fraction used for the linear fee coefficients,
// avoiding floating point in a consensus-critical calculation.
type Rational struct {
	Num int64
	Den int64
}

func (r Rational) MulRound(x uint64) uint64 {
	if r.Den == 0 {
		return 0
	}
	num := int64(x)*r.Num + r.Den/2
	v := num / r.Den
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// FeePolicy is the tagged union of supported fee-calculation strategies.
type FeePolicy struct {
	Kind   FeePolicyKind
	Linear struct {
		A Rational // flat component
		B Rational // per-byte component
	}
	Constant struct {
		Flat uint64
	}
}

// LinearFeePolicy constructs a FeePolicyLinear policy: fee = a + b*size.
func LinearFeePolicy(a, b Rational) FeePolicy {
	p := FeePolicy{Kind: FeePolicyLinear}
	p.Linear.A = a
	p.Linear.B = b
	return p
}

// ConstantFeePolicy constructs a FeePolicyConstant policy: fee = flat,
// regardless of transaction size.
func ConstantFeePolicy(flat uint64) FeePolicy {
	p := FeePolicy{Kind: FeePolicyConstant}
	p.Constant.Flat = flat
	return p
}

// CalculateForTxAux returns the minimum fee required for tx given its
// witnesses, per spec.md §4.9's fee-requirement step. witnesses is
// sized into the linear policy separately from tx.Witnesses so callers
// validating reconstructed witnesses can price the transaction as it
// will actually be serialized on the wire.
func (p FeePolicy) CalculateForTxAux(tx *TxAux, witnesses []Witness) (uint64, error) {
	switch p.Kind {
	case FeePolicyConstant:
		return p.Constant.Flat, nil
	case FeePolicyLinear:
		priced := *tx
		priced.Witnesses = witnesses
		size := uint64(len(EncodeTx(&priced)))
		return p.Linear.A.MulRound(1) + p.Linear.B.MulRound(size), nil
	default:
		return 0, fmt.Errorf("core: unknown fee policy kind %d", p.Kind)
	}
}
