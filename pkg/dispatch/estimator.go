package dispatch

import (
	"context"

	"propline/pkg/persistence"
)

// Estimate is a price range for a repair, in pence, with a confidence score
// from 0 to 100.
type Estimate struct {
	LowPence   int    `json:"low_pence"`
	MidPence   int    `json:"mid_pence"`
	HighPence  int    `json:"high_pence"`
	Confidence int    `json:"confidence"`
	Source     string `json:"source"` // "catalog" or "category_table"
}

// Estimate confidence levels by source.
const (
	catalogConfidence  = 80
	fallbackConfidence = 50
)

// Catalog is the read interface the estimator needs from storage.
type Catalog interface {
	SearchCatalog(query string) ([]persistence.CatalogItem, error)
}

// fallbackPrices is the static per-category price table used when no catalog
// item matches the issue description. Values in pence.
//
//nolint:gochecknoglobals // Static pricing table
var fallbackPrices = map[string]Estimate{
	"plumbing":   {LowPence: 8000, MidPence: 14000, HighPence: 25000},
	"electrical": {LowPence: 9000, MidPence: 16000, HighPence: 30000},
	"heating":    {LowPence: 10000, MidPence: 20000, HighPence: 45000},
	"appliance":  {LowPence: 7000, MidPence: 13000, HighPence: 28000},
	"locks":      {LowPence: 6000, MidPence: 10000, HighPence: 18000},
	"pests":      {LowPence: 8000, MidPence: 15000, HighPence: 25000},
	"damp_mould": {LowPence: 10000, MidPence: 22000, HighPence: 50000},
	"cosmetic":   {LowPence: 5000, MidPence: 9000, HighPence: 20000},
	"garden":     {LowPence: 5000, MidPence: 10000, HighPence: 22000},
	"other":      {LowPence: 8000, MidPence: 15000, HighPence: 30000},
}

// Estimator prices issues from the service catalog, falling back to the
// static per-category table.
type Estimator struct {
	catalog Catalog
}

// NewEstimator creates an estimator backed by the given catalog.
func NewEstimator(catalog Catalog) *Estimator {
	return &Estimator{catalog: catalog}
}

// EstimatePrice returns a price range for the described issue. Catalog
// matches produce a range of ±10% around the matched min/max; otherwise the
// per-category table applies at lower confidence.
func (e *Estimator) EstimatePrice(_ context.Context, category, description string) Estimate {
	if e.catalog != nil && description != "" {
		items, err := e.catalog.SearchCatalog(description)
		if err == nil && len(items) > 0 {
			return estimateFromCatalog(items)
		}
	}
	return estimateFromTable(category)
}

func estimateFromCatalog(items []persistence.CatalogItem) Estimate {
	minPrice := items[0].MinPricePence
	maxPrice := items[0].MaxPricePence
	for _, item := range items[1:] {
		if item.MinPricePence < minPrice {
			minPrice = item.MinPricePence
		}
		if item.MaxPricePence > maxPrice {
			maxPrice = item.MaxPricePence
		}
	}

	low := minPrice * 90 / 100
	high := maxPrice * 110 / 100
	return Estimate{
		LowPence:   low,
		MidPence:   (low + high) / 2,
		HighPence:  high,
		Confidence: catalogConfidence,
		Source:     "catalog",
	}
}

func estimateFromTable(category string) Estimate {
	est, ok := fallbackPrices[category]
	if !ok {
		est = fallbackPrices["other"]
	}
	est.Confidence = fallbackConfidence
	est.Source = "category_table"
	return est
}
