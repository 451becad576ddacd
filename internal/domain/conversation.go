package domain

import (
	"sort"
	"strings"
	"time"
)

// PlaceholderPrefix prefixes the wire id of a pending conversation shown in
// the lawyer inbox before anything was persisted for that client
const PlaceholderPrefix = "client-"

// NoCaseNumber is displayed for threads that are not tied to a case
const NoCaseNumber = "N/A"

// Conversation is the thread between one client and the lawyer, optionally
// anchored to a case. Messages are embedded and append-only.
type Conversation struct {
	ID           string    `json:"id" firestore:"id" bson:"_id"`
	CaseID       string    `json:"caseId" firestore:"caseId" bson:"caseId"` // "" for the general thread
	CaseNumber   string    `json:"caseNumber" firestore:"caseNumber" bson:"caseNumber"`
	ClientID     string    `json:"clientId" firestore:"clientId" bson:"clientId"`
	ClientName   string    `json:"clientName" firestore:"clientName" bson:"clientName"`
	ClientAvatar string    `json:"clientAvatar" firestore:"clientAvatar" bson:"clientAvatar"`
	UnreadCount  int       `json:"unreadCount" firestore:"unreadCount" bson:"unreadCount"` // client messages not yet seen by the lawyer
	Messages     []Message `json:"messages" firestore:"messages" bson:"messages"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" firestore:"updatedAt" bson:"updatedAt"`

	// Placeholder marks a synthesized inbox entry; never persisted
	Placeholder bool `json:"placeholder,omitempty" firestore:"-" bson:"-"`
}

// IsGeneral reports whether the conversation is the client's general thread
func (c *Conversation) IsGeneral() bool {
	return c.CaseID == ""
}

// HasParticipant reports whether userID may read or write this conversation
func (c *Conversation) HasParticipant(userID, lawyerID string) bool {
	return userID == c.ClientID || userID == lawyerID
}

// AppendMessage appends msg and maintains the lawyer-facing unread counter:
// only messages sent by the conversation's client count.
func (c *Conversation) AppendMessage(msg Message) {
	c.Messages = append(c.Messages, msg)
	if msg.SenderID == c.ClientID {
		c.UnreadCount++
	}
	if msg.Timestamp.After(c.UpdatedAt) {
		c.UpdatedAt = msg.Timestamp
	}
}

// LastMessage returns the most recent message, or nil for an empty thread
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// Normalize replaces nil slices so empty threads serialize as [] rather than null
func (c *Conversation) Normalize() *Conversation {
	if c.Messages == nil {
		c.Messages = []Message{}
	}
	return c
}

// NewPlaceholderConversation synthesizes the inbox entry of a client that has
// no persisted conversation yet
func NewPlaceholderConversation(client *Client) Conversation {
	return Conversation{
		ID:           PlaceholderID(client.ID),
		CaseID:       "",
		CaseNumber:   NoCaseNumber,
		ClientID:     client.ID,
		ClientName:   client.Name,
		ClientAvatar: client.Avatar,
		UnreadCount:  0,
		Messages:     []Message{},
		Placeholder:  true,
	}
}

// PlaceholderID returns the wire id of the pending conversation of clientID
func PlaceholderID(clientID string) string {
	return PlaceholderPrefix + clientID
}

// ConversationRef addresses a conversation that is either already persisted
// or still pending for a client. Exactly one of the two fields is set.
type ConversationRef struct {
	id       string
	clientID string
}

// PersistedRef references a stored conversation by id
func PersistedRef(id string) ConversationRef {
	return ConversationRef{id: id}
}

// PendingRef references the not-yet-created general conversation of a client
func PendingRef(clientID string) ConversationRef {
	return ConversationRef{clientID: clientID}
}

// ParseConversationRef decodes the wire form: placeholder ids become pending
// refs, anything else is a persisted id
func ParseConversationRef(raw string) ConversationRef {
	raw = strings.TrimSpace(raw)
	if clientID, ok := strings.CutPrefix(raw, PlaceholderPrefix); ok && clientID != "" {
		return PendingRef(clientID)
	}
	return PersistedRef(raw)
}

// IsPending reports whether the ref still needs resolution
func (r ConversationRef) IsPending() bool {
	return r.clientID != ""
}

// IsZero reports whether the ref addresses nothing
func (r ConversationRef) IsZero() bool {
	return r.id == "" && r.clientID == ""
}

// ID returns the persisted id ("" for pending refs)
func (r ConversationRef) ID() string {
	return r.id
}

// ClientID returns the client of a pending ref ("" for persisted refs)
func (r ConversationRef) ClientID() string {
	return r.clientID
}

// String returns the wire form of the ref
func (r ConversationRef) String() string {
	if r.IsPending() {
		return PlaceholderID(r.clientID)
	}
	return r.id
}

// SortByRecency orders conversations most recently updated first
func SortByRecency(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		if !convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
		}
		return convs[i].ID < convs[j].ID
	})
}
