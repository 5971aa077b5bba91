package config

import (
	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
)

// Options converts the reconciliation section into pipeline options
func (r ReconciliationConfig) Options() (reconcile.Options, error) {
	opts := reconcile.DefaultOptions()
	opts.ExactMatchConfidence = r.ExactMatchConfidence
	opts.CalibrationDivisor = r.CalibrationDivisor
	opts.ItemMatchThreshold = r.ItemMatchThreshold
	opts.LowConfidenceThreshold = r.LowConfidenceThreshold

	price, err := parseTolerance("reconciliation.price_tolerance", r.PriceTolerance)
	if err != nil {
		return opts, err
	}
	qty, err := parseTolerance("reconciliation.quantity_tolerance", r.QuantityTolerance)
	if err != nil {
		return opts, err
	}
	opts.PriceTolerance = price
	opts.QuantityTolerance = qty
	return opts, nil
}

func parseTolerance(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, errors.InvalidInput(field, "must be a decimal number")
	}
	if d.IsNegative() {
		return decimal.Zero, errors.InvalidInput(field, "cannot be negative")
	}
	return d, nil
}
