package formula

import (
	"github.com/shopspring/decimal"
)

// Conversion constants for the per-hectare average profitability (rent média).
var (
	bagKg           = decimal.NewFromInt(60)
	tonneKg         = decimal.NewFromInt(1000)
	soyYield        = decimal.RequireFromString("3.3")
	cornYield       = decimal.RequireFromString("7.20")
	arrobasPerHa    = decimal.NewFromInt(18)
	carbonFactor    = decimal.RequireFromString("2.59")
	timberVolume    = decimal.RequireFromString("1196.54547720813")
	timberHarvested = decimal.RequireFromString("0.10")
)

// RentSoy converts a soy price per 60kg bag (USD) into BRL per hectare.
func RentSoy(pricePerBag, usdRate decimal.Decimal) decimal.Decimal {
	if usdRate.IsZero() {
		return decimal.Zero
	}
	return pricePerBag.Div(bagKg).Mul(tonneKg).Mul(usdRate).Mul(soyYield)
}

// RentCorn converts a corn price per 60kg bag (BRL) into BRL per hectare.
func RentCorn(pricePerBag decimal.Decimal) decimal.Decimal {
	return pricePerBag.Div(bagKg).Mul(tonneKg).Mul(cornYield)
}

// RentCattle converts a fed cattle price per arroba (BRL) into BRL per hectare.
func RentCattle(pricePerArroba decimal.Decimal) decimal.Decimal {
	return pricePerArroba.Mul(arrobasPerHa)
}

// RentCarbon converts a carbon credit price (EUR) into BRL per hectare.
func RentCarbon(price, eurRate decimal.Decimal) decimal.Decimal {
	if eurRate.IsZero() {
		return decimal.Zero
	}
	return price.Mul(eurRate).Mul(carbonFactor)
}

// RentTimber converts a timber price (USD per m³) into BRL per hectare.
func RentTimber(price, usdRate decimal.Decimal) decimal.Decimal {
	if usdRate.IsZero() {
		return decimal.Zero
	}
	return price.Mul(usdRate).Mul(timberVolume).Mul(timberHarvested)
}
