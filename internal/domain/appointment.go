package domain

import "time"

// Appointment statuses
const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
)

// Appointment is a meeting between the lawyer and a client about a case.
// It lives only in its own collection; case views join it by caseId.
type Appointment struct {
	ID        string    `json:"id" firestore:"id" bson:"_id"`
	CaseID    string    `json:"caseId" firestore:"caseId" bson:"caseId"`
	ClientID  string    `json:"clientId" firestore:"clientId" bson:"clientId"`
	Date      time.Time `json:"date" firestore:"date" bson:"date"`
	Purpose   string    `json:"purpose" firestore:"purpose" bson:"purpose"`
	Status    string    `json:"status" firestore:"status" bson:"status"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt" bson:"updatedAt"`
}
