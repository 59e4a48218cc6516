package database_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/medstock/medstock-backend/pkg/database"
	apperrors "github.com/medstock/medstock-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPQError_NonPQError(t *testing.T) {
	assert.Nil(t, database.MapPQError(errors.New("plain error")))
	assert.Nil(t, database.MapPQError(nil))
}

func TestMapPQError_CheckConstraints(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		wantErr    error
		wantStatus int
	}{
		{"negative lot quantity", "lots_current_quantity_non_negative", apperrors.ErrInsufficientStock, http.StatusConflict},
		{"non-positive movement quantity", "movements_quantity_positive", apperrors.ErrValidation, http.StatusBadRequest},
		{"unknown movement type", "movements_movement_type_valid", apperrors.ErrValidation, http.StatusBadRequest},
		{"unknown role", "users_role_valid", apperrors.ErrValidation, http.StatusBadRequest},
		{"invalid status", "appointments_status_valid", apperrors.ErrBadRequest, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := database.MapPQError(&pq.Error{Code: "23514", Constraint: tt.constraint})

			require.NotNil(t, appErr)
			assert.True(t, errors.Is(appErr, tt.wantErr))
			assert.Equal(t, tt.wantStatus, appErr.StatusCode)
		})
	}
}

func TestMapPQError_UniqueViolations(t *testing.T) {
	tests := []struct {
		constraint string
		wantMsg    string
	}{
		{"users_username_key", "a user with this username already exists"},
		{"patients_national_id_key", "a patient with this national id already exists"},
		{"lots_medication_lot_number_unique", "this medication already has a lot with this lot number"},
		{"something_else", "a record with these values already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			appErr := database.MapPQError(&pq.Error{Code: "23505", Constraint: tt.constraint})

			require.NotNil(t, appErr)
			assert.True(t, errors.Is(appErr, apperrors.ErrConflict))
			assert.Equal(t, tt.wantMsg, appErr.Message)
		})
	}
}

func TestMapPQError_ForeignKeyAndNotNull(t *testing.T) {
	fk := database.MapPQError(&pq.Error{Code: "23503", Constraint: "movements_lot_id_fkey"})
	require.NotNil(t, fk)
	assert.Equal(t, http.StatusBadRequest, fk.StatusCode)

	nn := database.MapPQError(&pq.Error{Code: "23502", Column: "performed_by"})
	require.NotNil(t, nn)
	assert.True(t, errors.Is(nn, apperrors.ErrValidation))
	assert.Equal(t, "must not be empty", nn.Details["performed_by"])
}
