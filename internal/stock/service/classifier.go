package service

import (
	"time"

	"github.com/medstock/medstock-backend/internal/stock/repository"
)

// LotStatus is the derived state of a lot's stock and expiry.
type LotStatus string

const (
	StatusOutOfStock LotStatus = "out_of_stock"
	StatusLowStock   LotStatus = "low_stock"
	StatusNearExpiry LotStatus = "near_expiry"
	StatusNormal     LotStatus = "normal"
)

// Fixed thresholds; not configurable per medication.
const (
	LowStockThreshold    = 10
	NearExpiryWindowDays = 30
)

// Classify derives a lot's status from its quantity and expiry date.
// Pure function of the lot snapshot and "now"; first match wins.
// Stock exhaustion outranks expiry proximity: an empty lot that is also
// near expiry reports out_of_stock.
func Classify(lot *repository.Lot, now time.Time) LotStatus {
	switch {
	case lot.CurrentQuantity == 0:
		return StatusOutOfStock
	case lot.CurrentQuantity <= LowStockThreshold:
		return StatusLowStock
	case !lot.ExpiryDate.After(dateOnly(now).AddDate(0, 0, NearExpiryWindowDays)):
		return StatusNearExpiry
	default:
		return StatusNormal
	}
}

// dateOnly truncates a timestamp to midnight UTC, matching the DATE
// granularity of expiry_date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
