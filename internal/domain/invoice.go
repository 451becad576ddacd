package domain

import "time"

// Invoice statuses
const (
	InvoiceUnpaid = "unpaid"
	InvoicePaid   = "paid"
)

// Invoice is a bill issued to a client, optionally for a case
type Invoice struct {
	ID          string     `json:"id" firestore:"id" bson:"_id"`
	ClientID    string     `json:"clientId" firestore:"clientId" bson:"clientId"`
	CaseID      string     `json:"caseId" firestore:"caseId" bson:"caseId"`
	Description string     `json:"description" firestore:"description" bson:"description"`
	Amount      float64    `json:"amount" firestore:"amount" bson:"amount"`
	Currency    string     `json:"currency" firestore:"currency" bson:"currency"`
	Status      string     `json:"status" firestore:"status" bson:"status"`
	DueDate     time.Time  `json:"dueDate" firestore:"dueDate" bson:"dueDate"`
	CreatedAt   time.Time  `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	PaidAt      *time.Time `json:"paidAt,omitempty" firestore:"paidAt,omitempty" bson:"paidAt,omitempty"`
}
