// Package lifecycle installs and activates cache versions: it warms the static
// partition from a manifest, purges partitions of other versions and hands the
// new version to the interceptor.
package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pwashop/models"
	"pwashop/services/cachestore"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"
)

type State string

const (
	StateParsed     State = "parsed"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

// Fetcher performs the network round-trip for manifest URLs.
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (*models.ResponseSnapshot, error)
}

// Claimer takes over request handling for a version.
type Claimer interface {
	Claim(v cachestore.Version)
}

type Options struct {
	Version    cachestore.Version
	Manifest   []string
	Attempts   uint
	RetryDelay time.Duration
}

// Status is a point-in-time view of the controller.
type Status struct {
	Version     string     `json:"version"`
	State       State      `json:"state"`
	Static      string     `json:"static"`
	API         string     `json:"api"`
	Partitions  []string   `json:"partitions,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	InstalledAt *time.Time `json:"installedAt,omitempty"`
	ActivatedAt *time.Time `json:"activatedAt,omitempty"`
}

type Controller struct {
	store   cachestore.Store
	network Fetcher
	claimer Claimer
	logger  *zap.Logger
	opts    Options

	// run serializes install and activate.
	run sync.Mutex

	mu          sync.RWMutex
	state       State
	skipWaiting bool
	lastErr     error
	installedAt time.Time
	activatedAt time.Time
}

func NewController(store cachestore.Store, network Fetcher, claimer Claimer, logger *zap.Logger, opts Options) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Attempts == 0 {
		opts.Attempts = 1
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	return &Controller{
		store:   store,
		network: network,
		claimer: claimer,
		logger:  logger.With(zap.String("version", opts.Version.Tag)),
		opts:    opts,
		state:   StateParsed,
	}
}

// Run installs the configured version and, once installed, activates it
// without waiting for older handlers to drain. When install fails the
// previously activated version, if any, stays in charge.
func (c *Controller) Run(ctx context.Context) error {
	c.run.Lock()
	defer c.run.Unlock()

	if err := c.install(ctx); err != nil {
		c.restorePrevious(ctx)
		return err
	}
	if !c.skipsWaiting() {
		return nil
	}
	return c.activate(ctx)
}

func (c *Controller) Install(ctx context.Context) error {
	c.run.Lock()
	defer c.run.Unlock()
	return c.install(ctx)
}

func (c *Controller) Activate(ctx context.Context) error {
	c.run.Lock()
	defer c.run.Unlock()
	return c.activate(ctx)
}

func (c *Controller) install(ctx context.Context) error {
	v := c.opts.Version
	c.setState(StateInstalling, nil)

	static, err := c.store.Open(ctx, v.Static)
	if err != nil {
		return c.failInstall(err)
	}

	// Fetch everything first so a single failure leaves the partition untouched.
	snaps := make(map[string]*models.ResponseSnapshot, len(c.opts.Manifest))
	for _, u := range c.opts.Manifest {
		if _, seen := snaps[u]; seen {
			continue
		}
		snap, err := c.precache(ctx, u)
		if err != nil {
			return c.failInstall(err)
		}
		snaps[u] = snap
	}
	for u, snap := range snaps {
		if err := static.Put(ctx, models.RequestKey(http.MethodGet, u), snap); err != nil {
			return c.failInstall(err)
		}
	}

	if _, err := c.store.Open(ctx, v.API); err != nil {
		return c.failInstall(err)
	}

	c.mu.Lock()
	c.state = StateInstalled
	c.skipWaiting = true
	c.lastErr = nil
	c.installedAt = time.Now()
	c.mu.Unlock()

	c.logger.Info("cache version installed",
		zap.String("static", v.Static),
		zap.Int("precached", len(snaps)),
	)
	return nil
}

func (c *Controller) precache(ctx context.Context, u string) (*models.ResponseSnapshot, error) {
	var snap *models.ResponseSnapshot
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			s, err := c.network.Fetch(ctx, req)
			if err != nil {
				return err
			}
			if s.Status != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("unexpected status %d", s.Status))
			}
			snap = s
			return nil
		},
		retry.Attempts(c.opts.Attempts),
		retry.Delay(c.opts.RetryDelay),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying precache fetch after error", zap.String("url", u), zap.Uint("attempt", n), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("precache %s: %w", u, err)
	}
	return snap, nil
}

func (c *Controller) failInstall(err error) error {
	err = fmt.Errorf("install %s: %w", c.opts.Version.Tag, err)
	c.setState(StateRedundant, err)
	c.logger.Error("cache version install failed", zap.Error(err))
	return err
}

func (c *Controller) activate(ctx context.Context) error {
	v := c.opts.Version

	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()
	if state != StateInstalled && state != StateActivated {
		return fmt.Errorf("activate %s: version is %s, not installed", v.Tag, state)
	}

	c.setState(StateActivating, nil)

	names, err := c.store.Keys(ctx)
	if err != nil {
		return c.failActivate(err)
	}
	for _, name := range names {
		if v.Current(name) {
			continue
		}
		if _, err := c.store.Delete(ctx, name); err != nil {
			return c.failActivate(err)
		}
		c.logger.Info("Deleting old cache", zap.String("partition", name))
	}

	if err := c.store.SetActiveVersion(ctx, v.Tag); err != nil {
		return c.failActivate(err)
	}

	// Claim only after the purge finished.
	c.claimer.Claim(v)

	c.mu.Lock()
	c.state = StateActivated
	c.lastErr = nil
	c.activatedAt = time.Now()
	c.mu.Unlock()

	c.logger.Info("cache version activated")
	return nil
}

func (c *Controller) failActivate(err error) error {
	err = fmt.Errorf("activate %s: %w", c.opts.Version.Tag, err)
	// Partitions are intact; activation can be retried.
	c.setState(StateInstalled, err)
	c.logger.Error("cache version activation failed", zap.Error(err))
	return err
}

// restorePrevious keeps serving the last activated version after a failed install.
func (c *Controller) restorePrevious(ctx context.Context) {
	tag, err := c.store.ActiveVersion(ctx)
	if err != nil || tag == "" || tag == c.opts.Version.Tag {
		return
	}
	prev := cachestore.NewVersion(tag, prefixOf(c.opts.Version.Static, c.opts.Version.Tag), prefixOf(c.opts.Version.API, c.opts.Version.Tag))
	c.claimer.Claim(prev)
	c.logger.Warn("keeping previous cache version active", zap.String("previous", tag))
}

func prefixOf(name, tag string) string {
	suffix := "-" + tag
	if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
		return name[:len(name)-len(suffix)]
	}
	return name
}

func (c *Controller) skipsWaiting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.skipWaiting
}

func (c *Controller) setState(s State, err error) {
	c.mu.Lock()
	c.state = s
	if err != nil {
		c.lastErr = err
	}
	c.mu.Unlock()
}

// Status reports the controller state along with the partitions on disk.
func (c *Controller) Status(ctx context.Context) Status {
	c.mu.RLock()
	st := Status{
		Version: c.opts.Version.Tag,
		State:   c.state,
		Static:  c.opts.Version.Static,
		API:     c.opts.Version.API,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	if !c.installedAt.IsZero() {
		t := c.installedAt
		st.InstalledAt = &t
	}
	if !c.activatedAt.IsZero() {
		t := c.activatedAt
		st.ActivatedAt = &t
	}
	c.mu.RUnlock()

	if names, err := c.store.Keys(ctx); err == nil {
		st.Partitions = names
	}
	return st
}
