package domain

import "time"

// Case statuses
const (
	CaseStatusOpen   = "open"
	CaseStatusClosed = "closed"
)

// Case is a legal matter handled for one client
type Case struct {
	ID          string     `json:"id" firestore:"id" bson:"_id"`
	CaseNumber  string     `json:"caseNumber" firestore:"caseNumber" bson:"caseNumber"`
	ClientID    string     `json:"clientId" firestore:"clientId" bson:"clientId"`
	Title       string     `json:"title" firestore:"title" bson:"title"`
	Description string     `json:"description,omitempty" firestore:"description,omitempty" bson:"description,omitempty"`
	Status      string     `json:"status" firestore:"status" bson:"status"`
	CreatedAt   time.Time  `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	ClosedAt    *time.Time `json:"closedAt,omitempty" firestore:"closedAt,omitempty" bson:"closedAt,omitempty"`
}

// CaseDetail joins a case with its appointments at read time
type CaseDetail struct {
	Case
	Appointments []Appointment `json:"appointments"`
}
