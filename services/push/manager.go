// Package push is the client side of web push: it keeps one installation's
// subscription in step with the server, renders incoming pushes and routes
// notification clicks.
package push

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pwashop/models"

	"go.uber.org/zap"
)

var (
	ErrUnsupportedPlatform = errors.New("push notifications are not supported")
	ErrPermissionDenied    = errors.New("notification permission denied")
	ErrPermissionDismissed = errors.New("notification permission dismissed")
)

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// Platform is the push-capable runtime the client runs in.
type Platform interface {
	PushSupported() bool
	Permission(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
	// Subscription returns the existing subscription, or nil.
	Subscription(ctx context.Context) (*models.PushSubscription, error)
	Subscribe(ctx context.Context, applicationServerKey []byte) (*models.PushSubscription, error)
	// Unsubscribe reports false when there was nothing to tear down.
	Unsubscribe(ctx context.Context) (bool, error)
}

// Server is the notification API the subscription is mirrored to.
type Server interface {
	VapidPublicKey(ctx context.Context) (string, error)
	Subscribe(ctx context.Context, sub models.PushSubscription) error
	Unsubscribe(ctx context.Context) error
}

// Toaster shows transient messages to the user.
type Toaster interface {
	Success(msg string)
	Error(msg string)
	Info(msg string)
}

type nopToaster struct{}

func (nopToaster) Success(string) {}
func (nopToaster) Error(string)   {}
func (nopToaster) Info(string)    {}

// Manager owns the subscription state of one client installation. Build one
// at startup and share it; Subscribe and Unsubscribe never overlap.
type Manager struct {
	platform Platform
	server   Server
	toast    Toaster
	logger   *zap.Logger

	op sync.Mutex

	mu        sync.RWMutex
	state     State
	publicKey string
	// confirmed is set once the server acknowledged the current subscription.
	confirmed bool
}

func NewManager(platform Platform, server Server, toast Toaster, logger *zap.Logger) *Manager {
	if toast == nil {
		toast = nopToaster{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		platform: platform,
		server:   server,
		toast:    toast,
		logger:   logger,
		state:    Unsubscribed{},
	}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) Subscribed() bool {
	return IsSubscribed(m.State())
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	if !IsSubscribed(s) {
		m.confirmed = false
	}
	m.mu.Unlock()
}

// adopt takes over a subscription found on the platform. It stays
// unconfirmed until the server has seen it.
func (m *Manager) adopt(sub models.PushSubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.state.(Subscribed); !ok || cur.Subscription.Endpoint != sub.Endpoint {
		m.confirmed = false
	}
	m.state = completeSubscribe(sub)
}

// confirm posts an adopted subscription to the server once.
func (m *Manager) confirm(ctx context.Context) error {
	m.mu.RLock()
	cur, ok := m.state.(Subscribed)
	done := m.confirmed
	m.mu.RUnlock()
	if !ok || done {
		return nil
	}

	if err := m.server.Subscribe(ctx, cur.Subscription); err != nil {
		m.logger.Error("Failed to confirm existing subscription", zap.Error(err))
		m.toast.Error("Failed to subscribe to notifications")
		return fmt.Errorf("register subscription: %w", err)
	}
	m.mu.Lock()
	m.confirmed = true
	m.mu.Unlock()
	return nil
}

// Init fetches the server key and adopts any subscription the platform
// already holds. It is safe to call repeatedly.
func (m *Manager) Init(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()
	return m.init(ctx)
}

func (m *Manager) init(ctx context.Context) error {
	key, err := m.server.VapidPublicKey(ctx)
	if err != nil {
		m.logger.Error("Failed to initialize notification service", zap.Error(err))
		return fmt.Errorf("fetch vapid public key: %w", err)
	}
	m.mu.Lock()
	m.publicKey = key
	m.mu.Unlock()

	if !m.platform.PushSupported() {
		m.setState(clearSubscription())
		return nil
	}

	sub, err := m.platform.Subscription(ctx)
	if err != nil {
		return fmt.Errorf("query existing subscription: %w", err)
	}
	if sub != nil {
		m.adopt(*sub)
	} else {
		m.setState(clearSubscription())
	}
	m.logger.Debug("notification service initialized", zap.Bool("subscribed", sub != nil))
	return nil
}

// Subscribe registers this installation for push. The local state flips to
// subscribed only after the server acknowledged the subscription. A
// subscription adopted by Init is posted to the server on the first call.
func (m *Manager) Subscribe(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()

	if !m.platform.PushSupported() {
		m.toast.Error("Push notifications are not supported on this device")
		return ErrUnsupportedPlatform
	}

	next, err := beginSubscribe(m.State())
	if errors.Is(err, errAlreadySubscribed) {
		return m.confirm(ctx)
	}
	if err != nil {
		return err
	}

	m.mu.RLock()
	key := m.publicKey
	m.mu.RUnlock()
	if key == "" {
		if err := m.init(ctx); err != nil {
			return m.fail(err)
		}
		if m.Subscribed() {
			return m.confirm(ctx)
		}
		m.mu.RLock()
		key = m.publicKey
		m.mu.RUnlock()
	}

	if err := m.ensurePermission(ctx); err != nil {
		m.setState(failSubscribe(err))
		return err
	}

	m.setState(next)

	sub, created, err := m.platformSubscription(ctx, key)
	if err != nil {
		return m.fail(err)
	}

	if err := m.server.Subscribe(ctx, *sub); err != nil {
		if created {
			if _, uerr := m.platform.Unsubscribe(ctx); uerr != nil {
				m.logger.Warn("failed to roll back platform subscription", zap.Error(uerr))
			}
		}
		return m.fail(fmt.Errorf("register subscription: %w", err))
	}

	m.mu.Lock()
	m.state = completeSubscribe(*sub)
	m.confirmed = true
	m.mu.Unlock()
	m.toast.Success("Successfully subscribed to notifications!")
	return nil
}

// platformSubscription reuses an existing platform subscription when there is one.
func (m *Manager) platformSubscription(ctx context.Context, key string) (*models.PushSubscription, bool, error) {
	existing, err := m.platform.Subscription(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("query existing subscription: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	appKey, err := DecodeApplicationServerKey(key)
	if err != nil {
		return nil, false, err
	}
	sub, err := m.platform.Subscribe(ctx, appKey)
	if err != nil {
		return nil, false, fmt.Errorf("platform subscribe: %w", err)
	}
	return sub, true, nil
}

func (m *Manager) ensurePermission(ctx context.Context) error {
	perm, err := m.platform.Permission(ctx)
	if err != nil {
		return fmt.Errorf("read notification permission: %w", err)
	}
	if perm == PermissionGranted {
		return nil
	}

	perm, err = m.platform.RequestPermission(ctx)
	if err != nil {
		m.toast.Error("Failed to request notification permission")
		return fmt.Errorf("request notification permission: %w", err)
	}
	switch perm {
	case PermissionGranted:
		m.toast.Success("Notifications enabled!")
		return nil
	case PermissionDenied:
		m.toast.Error("Notifications blocked. Enable them in browser settings.")
		return ErrPermissionDenied
	default:
		m.toast.Info("Notification permission dismissed")
		return ErrPermissionDismissed
	}
}

func (m *Manager) fail(err error) error {
	m.logger.Error("Error subscribing to notifications", zap.Error(err))
	m.setState(failSubscribe(err))
	m.toast.Error("Failed to subscribe to notifications")
	return err
}

// Unsubscribe tears down the platform subscription and asks the server to
// drop its copy. A server failure is logged; delivery-failure cleanup on the
// server side covers it eventually.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()

	if !m.platform.PushSupported() {
		return ErrUnsupportedPlatform
	}

	removed, err := m.platform.Unsubscribe(ctx)
	if err != nil {
		m.logger.Error("Error unsubscribing from notifications", zap.Error(err))
		m.toast.Error("Failed to unsubscribe from notifications")
		return fmt.Errorf("platform unsubscribe: %w", err)
	}

	if err := m.server.Unsubscribe(ctx); err != nil {
		m.logger.Warn("failed to clear server subscription", zap.Error(err))
	}

	m.setState(clearSubscription())
	if removed {
		m.toast.Success("Unsubscribed from notifications")
	}
	return nil
}
