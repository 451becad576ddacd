package domain

import "time"

// Notification is an in-app notice addressed to one user
type Notification struct {
	ID      string    `json:"id" firestore:"id" bson:"_id"`
	UserID  string    `json:"userId" firestore:"userId" bson:"userId"`
	Message string    `json:"message" firestore:"message" bson:"message"`
	Read    bool      `json:"read" firestore:"read" bson:"read"`
	Date    time.Time `json:"date" firestore:"date" bson:"date"`
}

// NotificationListResponse is a user's notification inbox
type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
	TotalCount    int            `json:"totalCount"`
}
