package domain

import (
	"sort"
	"strings"
	"time"
)

// Client is a person represented by the practice
type Client struct {
	ID        string    `json:"id" firestore:"id" bson:"_id"`
	Name      string    `json:"name" firestore:"name" bson:"name"`
	Email     string    `json:"email" firestore:"email" bson:"email"`
	Phone     string    `json:"phone,omitempty" firestore:"phone,omitempty" bson:"phone,omitempty"`
	Avatar    string    `json:"avatar,omitempty" firestore:"avatar,omitempty" bson:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
}

// ClientProfileUpdate carries the editable profile fields; nil means unchanged
type ClientProfileUpdate struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

// SortClients orders the roster by name, then id
func SortClients(clients []Client) {
	sort.SliceStable(clients, func(i, j int) bool {
		a, b := strings.ToLower(clients[i].Name), strings.ToLower(clients[j].Name)
		if a != b {
			return a < b
		}
		return clients[i].ID < clients[j].ID
	})
}
