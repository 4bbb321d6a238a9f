package formula

import (
	"github.com/shopspring/decimal"

	"github.com/ucsindex/ucs/internal/domain"
)

var (
	hectaresPerUnit = decimal.NewFromInt(25)
	vusDiscount     = decimal.NewFromInt(1).Sub(decimal.RequireFromString("0.048"))
	vmadFactor      = decimal.NewFromInt(5)
	waterCostRate   = decimal.RequireFromString("0.07")
	pdmDivisor      = decimal.NewFromInt(900)
	two             = decimal.NewFromInt(2)
)

// Weighted pairs a normalized rent with its weight in an aggregate.
type Weighted struct {
	Rent   decimal.Decimal
	Weight decimal.Decimal
}

func weightedSum(parts []Weighted) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range parts {
		sum = sum.Add(p.Rent.Mul(p.Weight))
	}
	return sum
}

// VUS is the land-use value: sum(rent × 25 × weight) × (1 − 0.048).
func VUS(parts ...Weighted) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range parts {
		sum = sum.Add(p.Rent.Mul(hectaresPerUnit).Mul(p.Weight))
	}
	return sum.Mul(vusDiscount)
}

// VMAD is the timber value: rentTimber × 5.
func VMAD(rentTimber decimal.Decimal) decimal.Decimal {
	return rentTimber.Mul(vmadFactor)
}

// CRSCarbon is the carbon share of the socio-environmental cost: rentCarbon × 25.
func CRSCarbon(rentCarbon decimal.Decimal) decimal.Decimal {
	return rentCarbon.Mul(hectaresPerUnit)
}

// CH2O is the water-weighted commodity aggregate.
func CH2O(parts ...Weighted) decimal.Decimal {
	return weightedSum(parts)
}

// CRSWater is the water share of the socio-environmental cost: CH2O × 0.07.
func CRSWater(ch2o decimal.Decimal) decimal.Decimal {
	return ch2o.Mul(waterCostRate)
}

// LandUseValue sums VUS, VMAD and both CRS components.
func LandUseValue(vus, vmad, crsCarbon, crsWater decimal.Decimal) decimal.Decimal {
	return vus.Add(vmad).Add(crsCarbon).Add(crsWater)
}

// PDM is CH2O + CRS water.
func PDM(ch2o, crsWater decimal.Decimal) decimal.Decimal {
	return ch2o.Add(crsWater)
}

// UCS is (PDM / 900) / 2.
func UCS(pdm decimal.Decimal) decimal.Decimal {
	return pdm.Div(pdmDivisor).Div(two)
}

// UCSASE is UCS × 2.
func UCSASE(ucs decimal.Decimal) decimal.Decimal {
	return ucs.Mul(two)
}

// Convert projects a BRL value into another currency; zero when the rate is missing.
func Convert(value, rate decimal.Decimal) decimal.Decimal {
	return domain.SafeDiv(value, rate)
}
