package reconcile

import "github.com/shopspring/decimal"

// Default calibration constants.
const (
	DefaultExactMatchConfidence   = 0.99
	DefaultCalibrationDivisor     = 300.0
	DefaultItemMatchThreshold     = 70
	DefaultLowConfidenceThreshold = 0.6
)

// Options tunes the pipeline stages. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	// ExactMatchConfidence is reported when the invoice PO number is found verbatim.
	ExactMatchConfidence float64
	// CalibrationDivisor is the aggregate fuzzy score treated as a full-confidence match.
	CalibrationDivisor float64
	// ItemMatchThreshold is the minimum score for an invoice item to count as on the PO.
	ItemMatchThreshold int
	// LowConfidenceThreshold routes matches below it to escalation and review.
	LowConfidenceThreshold float64
	// PriceTolerance and QuantityTolerance are absolute; zero means exact comparison.
	PriceTolerance    decimal.Decimal
	QuantityTolerance decimal.Decimal
	// Similarity scores two descriptions; PartialRatio when nil.
	Similarity Similarity
}

// DefaultOptions returns the standard calibration.
func DefaultOptions() Options {
	return Options{
		ExactMatchConfidence:   DefaultExactMatchConfidence,
		CalibrationDivisor:     DefaultCalibrationDivisor,
		ItemMatchThreshold:     DefaultItemMatchThreshold,
		LowConfidenceThreshold: DefaultLowConfidenceThreshold,
		PriceTolerance:         decimal.Zero,
		QuantityTolerance:      decimal.Zero,
		Similarity:             PartialRatio,
	}
}

func (o Options) similarity() Similarity {
	if o.Similarity == nil {
		return PartialRatio
	}
	return o.Similarity
}
