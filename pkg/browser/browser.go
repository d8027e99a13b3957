// Package browser manages remote browser-automation sessions: dialing the
// devtools endpoint, pooling live connections, probing liveness, and
// disposing of dead ones. Callers never share a session between concurrent
// tasks; the batch orchestrator bounds how many are checked out at once.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// ErrUnreachable wraps every failure to reach the automation endpoint. It is
// fatal at pipeline startup: without a single session nothing can run.
var ErrUnreachable = errors.New("browser endpoint unreachable")

const (
	connectTimeout = 30 * time.Second
	probeTimeout   = 5 * time.Second
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Session wraps one live connection to the remote browser.
type Session struct {
	browser *rod.Browser
}

// Valid probes the session with a short-deadline version call. Any failure
// means the session is unusable and should be discarded.
func (s *Session) Valid() bool {
	if s == nil || s.browser == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	_, err := s.browser.Context(ctx).Version()
	return err == nil
}

// Close disconnects the session. Errors are swallowed: a hung remote browser
// must not be able to block shutdown.
func (s *Session) Close() {
	if s == nil || s.browser == nil {
		return
	}
	_ = s.browser.Close()
}

// Manager pools sessions against a single automation endpoint. Release keeps
// at most poolSize idle sessions around; anything beyond that, or anything
// that fails its liveness probe, is discarded silently.
type Manager struct {
	endpoint     string
	poolSize     int
	dialAttempts int
	dialDelay    time.Duration
	log          Logger

	mu       sync.Mutex
	idle     []*Session
	resolved string
}

// NewManager builds a manager for the given endpoint. The endpoint may be a
// ws:// devtools URL or an http(s):// base, in which case the websocket URL
// is discovered through the devtools /json/version API.
func NewManager(endpoint string, poolSize, dialAttempts int, dialDelay time.Duration, log Logger) *Manager {
	if log == nil {
		log = nopLogger{}
	}
	if poolSize <= 0 {
		poolSize = 1
	}
	if dialAttempts <= 0 {
		dialAttempts = 3
	}
	return &Manager{
		endpoint:     endpoint,
		poolSize:     poolSize,
		dialAttempts: dialAttempts,
		dialDelay:    dialDelay,
		log:          log,
	}
}

// Acquire returns a live session: a pooled one when a valid one is idle,
// otherwise a freshly dialed connection. It never blocks indefinitely; after
// the configured dial attempts it fails with ErrUnreachable.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	for {
		m.mu.Lock()
		if len(m.idle) == 0 {
			m.mu.Unlock()
			break
		}
		s := m.idle[len(m.idle)-1]
		m.idle = m.idle[:len(m.idle)-1]
		m.mu.Unlock()

		if s.Valid() {
			return s, nil
		}
		s.Close()
	}

	var lastErr error
	for attempt := 1; attempt <= m.dialAttempts; attempt++ {
		if attempt > 1 {
			m.log.Warnf("browser dial retry %d/%d", attempt, m.dialAttempts)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.dialDelay):
			}
		}
		s, err := m.dial(ctx)
		if err == nil {
			return s, nil
		}
		lastErr = err
		m.log.Warnf("browser dial failed: %v", err)
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrUnreachable, m.dialAttempts, lastErr)
}

// Release returns a session to the pool if it still passes its liveness
// probe and the pool has room; otherwise the session is discarded.
func (m *Manager) Release(s *Session) {
	if s == nil {
		return
	}
	if !s.Valid() {
		s.Close()
		return
	}
	m.mu.Lock()
	if len(m.idle) >= m.poolSize {
		m.mu.Unlock()
		s.Close()
		return
	}
	m.idle = append(m.idle, s)
	m.mu.Unlock()
}

// CloseAll tears down every pooled session. Best effort: individual close
// failures are ignored so one hung session cannot wedge shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	idle := m.idle
	m.idle = nil
	m.mu.Unlock()
	for _, s := range idle {
		s.Close()
	}
}

func (m *Manager) dial(ctx context.Context) (*Session, error) {
	wsURL, err := m.controlURL(ctx)
	if err != nil {
		return nil, err
	}
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	b := rod.New().ControlURL(wsURL).Context(dialCtx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", wsURL, err)
	}
	// Detach from the dial deadline; the session outlives it.
	return &Session{browser: b.Context(context.Background())}, nil
}

// controlURL resolves the websocket debugger URL, caching the result. HTTP
// endpoints are probed with bounded retries through the devtools discovery
// API; ws:// endpoints are used as-is.
func (m *Manager) controlURL(ctx context.Context) (string, error) {
	m.mu.Lock()
	cached := m.resolved
	m.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	if strings.HasPrefix(m.endpoint, "ws://") || strings.HasPrefix(m.endpoint, "wss://") {
		return m.endpoint, nil
	}

	client := retryablehttp.NewClient()
	client.RetryMax = m.dialAttempts
	client.HTTPClient.Timeout = probeTimeout
	client.Logger = nil

	req, err := retryablehttp.NewRequest("GET", strings.TrimRight(m.endpoint, "/")+"/json/version", nil)
	if err != nil {
		return "", err
	}
	res, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	wsURL := gjson.GetBytes(body, "webSocketDebuggerUrl").String()
	if wsURL == "" {
		return "", fmt.Errorf("%w: no webSocketDebuggerUrl in discovery response", ErrUnreachable)
	}

	m.mu.Lock()
	m.resolved = wsURL
	m.mu.Unlock()
	return wsURL, nil
}
