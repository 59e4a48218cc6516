package service_test

import (
	"testing"
	"time"

	"github.com/medstock/medstock-backend/internal/stock/repository"
	"github.com/medstock/medstock-backend/internal/stock/service"
	"github.com/stretchr/testify/assert"
)

// testLot builds a lot expiring expiryInDays from today. Expiry dates carry
// DATE granularity, so the timestamp is midnight UTC like the column value.
func testLot(quantity int, expiryInDays int) *repository.Lot {
	y, m, d := time.Now().UTC().Date()
	expiry := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, expiryInDays)

	return &repository.Lot{
		ID:              "lot-1",
		MedicationID:    "med-1",
		LotNumber:       "L-001",
		ExpiryDate:      expiry,
		InitialQuantity: 100,
		CurrentQuantity: quantity,
		IsActive:        true,
	}
}

func TestClassify(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name         string
		quantity     int
		expiryInDays int
		want         service.LotStatus
	}{
		{"empty lot", 0, 365, service.StatusOutOfStock},
		{"at low stock threshold", 10, 365, service.StatusLowStock},
		{"below low stock threshold", 1, 365, service.StatusLowStock},
		{"above threshold expiring soon", 50, 20, service.StatusNearExpiry},
		{"expiring on window boundary", 50, 30, service.StatusNearExpiry},
		{"already expired", 50, -1, service.StatusNearExpiry},
		{"healthy", 50, 90, service.StatusNormal},
		{"just above threshold", 11, 365, service.StatusNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.Classify(testLot(tt.quantity, tt.expiryInDays), now)
			assert.Equal(t, tt.want, got)
		})
	}
}

// The first matching rule wins: an empty lot that is also about to expire
// reports out_of_stock, and a low lot about to expire reports low_stock.
func TestClassify_RulePrecedence(t *testing.T) {
	now := time.Now()

	assert.Equal(t, service.StatusOutOfStock, service.Classify(testLot(0, 5), now))
	assert.Equal(t, service.StatusLowStock, service.Classify(testLot(5, 5), now))
}

// Classify derives status from the lot alone and never mutates it.
func TestClassify_DoesNotMutate(t *testing.T) {
	now := time.Now()
	lot := testLot(50, 20)
	before := *lot

	service.Classify(lot, now)
	service.Classify(lot, now)

	assert.Equal(t, before, *lot)
}
