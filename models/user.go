// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// PushKeys are the client keys a push service needs to encrypt payloads.
type PushKeys struct {
	P256dh string `bson:"p256dh" json:"p256dh"`
	Auth   string `bson:"auth" json:"auth"`
}

// PushSubscription is a client endpoint registered with a push service.
type PushSubscription struct {
	Endpoint string   `bson:"endpoint" json:"endpoint"`
	Keys     PushKeys `bson:"keys" json:"keys"`
}

// Valid reports whether the subscription carries everything needed for delivery.
func (s *PushSubscription) Valid() bool {
	return s != nil && s.Endpoint != "" && s.Keys.P256dh != "" && s.Keys.Auth != ""
}

type NotificationPreferences struct {
	OrderUpdates bool `bson:"orderUpdates" json:"orderUpdates"`
	Promotions   bool `bson:"promotions" json:"promotions"`
	NewProducts  bool `bson:"newProducts" json:"newProducts"`
}

type Preferences struct {
	Notifications NotificationPreferences `bson:"notifications" json:"notifications"`
}

// User is the subset of the shop's user document the edge reads and writes.
type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string             `bson:"name" json:"name"`
	Email            string             `bson:"email" json:"email"`
	Role             string             `bson:"role" json:"role"`
	PushSubscription *PushSubscription  `bson:"pushSubscription,omitempty" json:"pushSubscription,omitempty"`
	Preferences      Preferences        `bson:"preferences" json:"preferences"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsAdmin reports whether the user may target other users.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
