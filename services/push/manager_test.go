package push

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pwashop/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "BEl62iUYgUivxIkv69yViEuiBIa-Ib9-SkvMeAtA3LFgDzkrxZJjSgSnfckjBJuBkr3qBUYIHBQFLXYp5Nksh8U"

type fakePlatform struct {
	mu          sync.Mutex
	supported   bool
	permission  Permission
	answer      Permission
	sub         *models.PushSubscription
	subscribes  int
	unsubscribe int
}

func (p *fakePlatform) PushSupported() bool { return p.supported }

func (p *fakePlatform) Permission(context.Context) (Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permission, nil
}

func (p *fakePlatform) RequestPermission(context.Context) (Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.answer == PermissionGranted {
		p.permission = PermissionGranted
	}
	return p.answer, nil
}

func (p *fakePlatform) Subscription(context.Context) (*models.PushSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sub, nil
}

func (p *fakePlatform) Subscribe(_ context.Context, key []byte) (*models.PushSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(key) == 0 {
		return nil, errors.New("missing key")
	}
	p.subscribes++
	p.sub = &models.PushSubscription{
		Endpoint: "https://push.example/ep/1",
		Keys:     models.PushKeys{P256dh: "p256", Auth: "auth"},
	}
	return p.sub, nil
}

func (p *fakePlatform) Unsubscribe(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unsubscribe++
	had := p.sub != nil
	p.sub = nil
	return had, nil
}

type fakeServer struct {
	mu           sync.Mutex
	posts        []models.PushSubscription
	deletes      int
	subscribeErr error
	deleteErr    error
}

func (s *fakeServer) VapidPublicKey(context.Context) (string, error) { return testKey, nil }

func (s *fakeServer) Subscribe(_ context.Context, sub models.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribeErr != nil {
		return s.subscribeErr
	}
	s.posts = append(s.posts, sub)
	return nil
}

func (s *fakeServer) Unsubscribe(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	return s.deleteErr
}

type recordingToaster struct {
	mu       sync.Mutex
	messages []string
}

func (t *recordingToaster) add(kind, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, kind+": "+msg)
}

func (t *recordingToaster) Success(msg string) { t.add("success", msg) }
func (t *recordingToaster) Error(msg string)   { t.add("error", msg) }
func (t *recordingToaster) Info(msg string)    { t.add("info", msg) }

func TestSubscribeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	platform := &fakePlatform{supported: true, permission: PermissionGranted}
	server := &fakeServer{}
	m := NewManager(platform, server, nil, nil)

	require.NoError(t, m.Init(ctx))
	assert.False(t, m.Subscribed())

	require.NoError(t, m.Subscribe(ctx))
	assert.True(t, m.Subscribed())
	assert.Len(t, server.posts, 1)
	assert.Equal(t, 1, platform.subscribes)

	require.NoError(t, m.Subscribe(ctx))
	assert.True(t, m.Subscribed())
	assert.Len(t, server.posts, 1)
	assert.Equal(t, 1, platform.subscribes)

	st, ok := m.State().(Subscribed)
	require.True(t, ok)
	assert.Equal(t, "https://push.example/ep/1", st.Subscription.Endpoint)
}

func TestInitAdoptsExistingSubscription(t *testing.T) {
	ctx := context.Background()
	existing := &models.PushSubscription{Endpoint: "https://push.example/ep/0", Keys: models.PushKeys{P256dh: "a", Auth: "b"}}
	platform := &fakePlatform{supported: true, permission: PermissionGranted, sub: existing}
	m := NewManager(platform, &fakeServer{}, nil, nil)

	require.NoError(t, m.Init(ctx))
	require.NoError(t, m.Init(ctx))
	assert.True(t, m.Subscribed())
}

func TestSubscribeConfirmsAdoptedSubscription(t *testing.T) {
	ctx := context.Background()
	existing := &models.PushSubscription{Endpoint: "https://push.example/ep/0", Keys: models.PushKeys{P256dh: "a", Auth: "b"}}
	platform := &fakePlatform{supported: true, permission: PermissionGranted, sub: existing}
	server := &fakeServer{}
	m := NewManager(platform, server, nil, nil)

	require.NoError(t, m.Init(ctx))
	assert.Empty(t, server.posts)

	require.NoError(t, m.Subscribe(ctx))
	require.Len(t, server.posts, 1)
	assert.Equal(t, existing.Endpoint, server.posts[0].Endpoint)
	assert.Zero(t, platform.subscribes)

	require.NoError(t, m.Init(ctx))
	require.NoError(t, m.Subscribe(ctx))
	assert.Len(t, server.posts, 1)
}

func TestSubscribeRetriesUnconfirmedSubscription(t *testing.T) {
	ctx := context.Background()
	existing := &models.PushSubscription{Endpoint: "https://push.example/ep/0", Keys: models.PushKeys{P256dh: "a", Auth: "b"}}
	server := &fakeServer{subscribeErr: errors.New("503 service unavailable")}
	m := NewManager(&fakePlatform{supported: true, permission: PermissionGranted, sub: existing}, server, nil, nil)

	require.Error(t, m.Subscribe(ctx))
	assert.True(t, m.Subscribed())
	assert.Empty(t, server.posts)

	server.mu.Lock()
	server.subscribeErr = nil
	server.mu.Unlock()
	require.NoError(t, m.Subscribe(ctx))
	require.Len(t, server.posts, 1)
	assert.Equal(t, existing.Endpoint, server.posts[0].Endpoint)
}

func TestSubscribeWithoutKeyInitializesFirst(t *testing.T) {
	ctx := context.Background()
	server := &fakeServer{}
	m := NewManager(&fakePlatform{supported: true, permission: PermissionGranted}, server, nil, nil)

	require.NoError(t, m.Subscribe(ctx))
	assert.True(t, m.Subscribed())
	assert.Len(t, server.posts, 1)
}

func TestSubscribeUnsupported(t *testing.T) {
	toast := &recordingToaster{}
	m := NewManager(&fakePlatform{}, &fakeServer{}, toast, nil)

	err := m.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	assert.False(t, m.Subscribed())
	assert.Len(t, toast.messages, 1)
}

func TestSubscribePermissionOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		answer Permission
		err    error
		toast  string
	}{
		{"denied", PermissionDenied, ErrPermissionDenied, "error: Notifications blocked. Enable them in browser settings."},
		{"dismissed", PermissionDefault, ErrPermissionDismissed, "info: Notification permission dismissed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			platform := &fakePlatform{supported: true, permission: PermissionDefault, answer: tt.answer}
			server := &fakeServer{}
			toast := &recordingToaster{}
			m := NewManager(platform, server, toast, nil)
			require.NoError(t, m.Init(ctx))

			err := m.Subscribe(ctx)
			assert.ErrorIs(t, err, tt.err)
			assert.False(t, m.Subscribed())
			assert.Empty(t, server.posts)
			assert.Zero(t, platform.subscribes)
			assert.Equal(t, []string{tt.toast}, toast.messages)
		})
	}
}

func TestSubscribeRequestsPermission(t *testing.T) {
	ctx := context.Background()
	platform := &fakePlatform{supported: true, permission: PermissionDefault, answer: PermissionGranted}
	toast := &recordingToaster{}
	m := NewManager(platform, &fakeServer{}, toast, nil)

	require.NoError(t, m.Subscribe(ctx))
	assert.True(t, m.Subscribed())
	assert.Equal(t, []string{
		"success: Notifications enabled!",
		"success: Successfully subscribed to notifications!",
	}, toast.messages)
}

func TestSubscribeServerRejectsRollsBack(t *testing.T) {
	ctx := context.Background()
	platform := &fakePlatform{supported: true, permission: PermissionGranted}
	server := &fakeServer{subscribeErr: errors.New("boom")}
	toast := &recordingToaster{}
	m := NewManager(platform, server, toast, nil)

	err := m.Subscribe(ctx)
	require.Error(t, err)
	assert.False(t, m.Subscribed())

	failed, ok := m.State().(Failed)
	require.True(t, ok)
	assert.ErrorContains(t, failed.Reason, "boom")

	assert.Nil(t, platform.sub)
	assert.Equal(t, 1, platform.unsubscribe)
	assert.Contains(t, toast.messages, "error: Failed to subscribe to notifications")

	// A later attempt can succeed.
	server.subscribeErr = nil
	require.NoError(t, m.Subscribe(ctx))
	assert.True(t, m.Subscribed())
}

func TestUnsubscribeClearsServerMirror(t *testing.T) {
	ctx := context.Background()
	platform := &fakePlatform{supported: true, permission: PermissionGranted}
	server := &fakeServer{}
	m := NewManager(platform, server, nil, nil)
	require.NoError(t, m.Subscribe(ctx))

	require.NoError(t, m.Unsubscribe(ctx))
	assert.False(t, m.Subscribed())
	assert.Equal(t, 1, server.deletes)
	assert.Nil(t, platform.sub)
}

func TestUnsubscribeServerFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	platform := &fakePlatform{supported: true, permission: PermissionGranted}
	server := &fakeServer{}
	m := NewManager(platform, server, nil, nil)
	require.NoError(t, m.Subscribe(ctx))

	server.deleteErr = errors.New("offline")
	require.NoError(t, m.Unsubscribe(ctx))
	assert.IsType(t, Unsubscribed{}, m.State())
}

func TestConcurrentSubscribeUnsubscribe(t *testing.T) {
	ctx := context.Background()
	platform := &fakePlatform{supported: true, permission: PermissionGranted}
	server := &fakeServer{}
	m := NewManager(platform, server, nil, nil)
	require.NoError(t, m.Init(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _ = m.Subscribe(ctx) }()
		go func() { defer wg.Done(); _ = m.Unsubscribe(ctx) }()
	}
	wg.Wait()

	// Local state always agrees with the platform.
	platform.mu.Lock()
	hasSub := platform.sub != nil
	platform.mu.Unlock()
	assert.Equal(t, hasSub, m.Subscribed())
}

func TestStateTransitions(t *testing.T) {
	next, err := beginSubscribe(Unsubscribed{})
	require.NoError(t, err)
	assert.IsType(t, Subscribing{}, next)

	next, err = beginSubscribe(Failed{Reason: errors.New("x")})
	require.NoError(t, err)
	assert.IsType(t, Subscribing{}, next)

	_, err = beginSubscribe(Subscribed{})
	assert.ErrorIs(t, err, errAlreadySubscribed)

	_, err = beginSubscribe(Subscribing{})
	assert.ErrorIs(t, err, errSubscribeInFlight)

	assert.True(t, IsSubscribed(completeSubscribe(models.PushSubscription{Endpoint: "e"})))
	assert.False(t, IsSubscribed(failSubscribe(errors.New("x"))))
	assert.False(t, IsSubscribed(clearSubscription()))
	assert.Equal(t, "subscribed", Subscribed{}.String())
}
