package domain

import "time"

// Message is one entry of a conversation. Read is informational only: it is
// created false and never flipped by the messaging core.
type Message struct {
	ID        string    `json:"id" firestore:"id" bson:"id"`
	SenderID  string    `json:"senderId" firestore:"senderId" bson:"senderId"`
	Content   string    `json:"content" firestore:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp" bson:"timestamp"`
	Read      bool      `json:"read" firestore:"read" bson:"read"`
}
