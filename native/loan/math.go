package loan

import "math/big"

var basisPoints = big.NewInt(10_000)

const monthsPerYear = 12

// monthlyRate returns the per-month interest rate for an annual rate in basis
// points.
func monthlyRate(rateBps uint64) *big.Rat {
	return new(big.Rat).SetFrac(
		new(big.Int).SetUint64(rateBps),
		new(big.Int).Mul(basisPoints, big.NewInt(monthsPerYear)),
	)
}

// MonthlyPayment computes the fixed installment for an amortized loan using
// the standard annuity formula payment = P·r·(1+r)^n / ((1+r)^n − 1) with the
// monthly rate r and n installments, rounded half-up to the nearest unit. A
// zero rate degenerates to principal / term.
func MonthlyPayment(principal *big.Int, rateBps, termMonths uint64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || termMonths == 0 {
		return big.NewInt(0)
	}
	if rateBps == 0 {
		return new(big.Int).Quo(principal, new(big.Int).SetUint64(termMonths))
	}
	r := monthlyRate(rateBps)
	onePlus := new(big.Rat).Add(big.NewRat(1, 1), r)
	factor := ratPow(onePlus, termMonths)
	numerator := new(big.Rat).SetInt(principal)
	numerator.Mul(numerator, r)
	numerator.Mul(numerator, factor)
	denominator := new(big.Rat).Sub(factor, big.NewRat(1, 1))
	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	payment := new(big.Rat).Quo(numerator, denominator)
	return ratRound(payment)
}

// interestDue returns the interest accrued on the outstanding balance for one
// payment period, rounded down so rounding always favours the loan.
func interestDue(outstanding *big.Int, rateBps uint64) *big.Int {
	if outstanding == nil || outstanding.Sign() <= 0 || rateBps == 0 {
		return big.NewInt(0)
	}
	interest := new(big.Int).Mul(outstanding, new(big.Int).SetUint64(rateBps))
	interest.Quo(interest, new(big.Int).Mul(basisPoints, big.NewInt(monthsPerYear)))
	return interest
}

// prorataShare returns floor(amount × contribution / totalFunded). The floor
// guarantees the sum across contributors never exceeds the distributed amount;
// residual dust stays with the loan vault.
func prorataShare(amount, contribution, totalFunded *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || contribution == nil || contribution.Sign() <= 0 {
		return big.NewInt(0)
	}
	if totalFunded == nil || totalFunded.Sign() == 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(amount, contribution)
	share.Quo(share, totalFunded)
	return share
}

// scheduledTotal returns the full repayment amount over the life of the loan:
// installment × term for interest-bearing loans, the bare principal otherwise.
func scheduledTotal(principal, installment *big.Int, rateBps, termMonths uint64) *big.Int {
	if rateBps == 0 || installment == nil || installment.Sign() == 0 {
		if principal == nil {
			return big.NewInt(0)
		}
		return new(big.Int).Set(principal)
	}
	return new(big.Int).Mul(installment, new(big.Int).SetUint64(termMonths))
}

func ratPow(base *big.Rat, exp uint64) *big.Rat {
	result := big.NewRat(1, 1)
	factor := new(big.Rat).Set(base)
	for exp > 0 {
		if exp&1 == 1 {
			result.Mul(result, factor)
		}
		factor.Mul(factor, factor)
		exp >>= 1
	}
	return result
}

func ratRound(r *big.Rat) *big.Int {
	if r == nil || r.Sign() <= 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Set(r.Num())
	den := r.Denom()
	half := new(big.Int).Rsh(den, 1)
	num.Add(num, half)
	return num.Quo(num, den)
}
