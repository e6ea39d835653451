package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	NotificationOrderUpdate = "order_update"
	NotificationPromotion   = "promotion"
	NotificationNewProduct  = "new_product"
	NotificationGeneral     = "general"
)

// Notification is the server-side record of a push delivery attempt.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Title     string             `bson:"title" json:"title"`
	Message   string             `bson:"message" json:"message"`
	Type      string             `bson:"type" json:"type"`
	Data      map[string]any     `bson:"data" json:"data"`
	Sent      bool               `bson:"sent" json:"sent"`
	SentAt    *time.Time         `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
	Read      bool               `bson:"read" json:"read"`
	ReadAt    *time.Time         `bson:"readAt,omitempty" json:"readAt,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PushPayload is the JSON body delivered through the push service.
type PushPayload struct {
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Icon      string         `json:"icon,omitempty"`
	Badge     string         `json:"badge,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
}

// NotificationAction is a button rendered on a platform notification.
type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon"`
}

// NotificationOptions is what gets handed to the platform notification surface.
type NotificationOptions struct {
	Title   string               `json:"title"`
	Body    string               `json:"body"`
	Icon    string               `json:"icon"`
	Badge   string               `json:"badge"`
	Vibrate []int                `json:"vibrate"`
	Data    map[string]any       `json:"data"`
	Actions []NotificationAction `json:"actions"`
}
