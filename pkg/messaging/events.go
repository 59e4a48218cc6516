package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Stock events
	EventLotReceived     = "stock.lot.received"
	EventMovementApplied = "stock.movement.applied"
	EventAlertRaised     = "stock.alert.raised"

	// Records events
	EventPrescriptionIssued    = "records.prescription.issued"
	EventPrescriptionDispensed = "records.prescription.dispensed"
	EventAppointmentScheduled  = "records.appointment.scheduled"

	// Identity events
	EventUserCreated = "identity.user.created"
)

// Exchange names
const (
	ExchangeEvents = "medstock.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// LotReceivedEvent is published when a new lot enters the stock
type LotReceivedEvent struct {
	LotID           string    `json:"lot_id"`
	MedicationID    string    `json:"medication_id"`
	LotNumber       string    `json:"lot_number"`
	InitialQuantity int       `json:"initial_quantity"`
	ExpiryDate      time.Time `json:"expiry_date"`
	ReceivedBy      string    `json:"received_by"`
}

// MovementAppliedEvent is published after a ledger movement commits
type MovementAppliedEvent struct {
	MovementID       string  `json:"movement_id"`
	LotID            string  `json:"lot_id"`
	MedicationID     string  `json:"medication_id"`
	MovementType     string  `json:"movement_type"`
	Quantity         int     `json:"quantity"`
	PreviousQuantity int     `json:"previous_quantity"`
	NewQuantity      int     `json:"new_quantity"`
	PrescriptionID   *string `json:"prescription_id,omitempty"`
	PerformedBy      string  `json:"performed_by"`
}

// AlertRaisedEvent is published when a stock alert is derived
type AlertRaisedEvent struct {
	AlertType    string `json:"alert_type"`
	Severity     string `json:"severity"`
	Message      string `json:"message"`
	MedicationID string `json:"medication_id"`
	LotID        string `json:"lot_id,omitempty"`
}

// PrescriptionIssuedEvent is published when a doctor issues a prescription
type PrescriptionIssuedEvent struct {
	PrescriptionID string `json:"prescription_id"`
	PatientID      string `json:"patient_id"`
	DoctorID       string `json:"doctor_id"`
	ItemCount      int    `json:"item_count"`
}

// PrescriptionDispensedEvent is published after a dispensation commits
type PrescriptionDispensedEvent struct {
	PrescriptionID string   `json:"prescription_id"`
	PatientID      string   `json:"patient_id"`
	MovementIDs    []string `json:"movement_ids"`
	DispensedBy    string   `json:"dispensed_by"`
}

// AppointmentScheduledEvent is published when an appointment is booked
type AppointmentScheduledEvent struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
}

// UserCreatedEvent is published when a staff account is created
type UserCreatedEvent struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedBy string `json:"created_by,omitempty"`
}
