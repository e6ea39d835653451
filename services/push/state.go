package push

import (
	"errors"

	"pwashop/models"
)

// State is the subscription lifecycle of one client installation. It is one
// of Unsubscribed, Subscribing, Subscribed or Failed.
type State interface {
	isState()
	String() string
}

type Unsubscribed struct{}

type Subscribing struct{}

type Subscribed struct {
	Subscription models.PushSubscription
}

// Failed is an unsubscribed state that remembers why the last attempt failed.
type Failed struct {
	Reason error
}

func (Unsubscribed) isState() {}
func (Subscribing) isState()  {}
func (Subscribed) isState()   {}
func (Failed) isState()       {}

func (Unsubscribed) String() string { return "unsubscribed" }
func (Subscribing) String() string  { return "subscribing" }
func (Subscribed) String() string   { return "subscribed" }
func (Failed) String() string       { return "failed" }

var (
	errAlreadySubscribed = errors.New("push: already subscribed")
	errSubscribeInFlight = errors.New("push: subscribe already in flight")
)

// beginSubscribe moves an unsubscribed (or failed) state to Subscribing.
func beginSubscribe(s State) (State, error) {
	switch s.(type) {
	case Unsubscribed, Failed:
		return Subscribing{}, nil
	case Subscribed:
		return s, errAlreadySubscribed
	case Subscribing:
		return s, errSubscribeInFlight
	}
	return Subscribing{}, nil
}

func completeSubscribe(sub models.PushSubscription) State {
	return Subscribed{Subscription: sub}
}

func failSubscribe(reason error) State {
	return Failed{Reason: reason}
}

func clearSubscription() State {
	return Unsubscribed{}
}

// IsSubscribed reports whether s holds a live subscription.
func IsSubscribed(s State) bool {
	_, ok := s.(Subscribed)
	return ok
}
