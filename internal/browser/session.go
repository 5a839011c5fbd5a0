package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"auto_post_scheduler/config"
	"auto_post_scheduler/internal/domain"
	"auto_post_scheduler/internal/logger"
)

// Session wraps one ephemeral browser context. Nothing is shared between
// sessions: each one runs its own allocator with no user data directory, so
// no on-disk session artifacts survive between acquisitions.
type Session struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

// Context returns the session's browser context.
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) close() {
	// Cancel in reverse order: browser context before allocator.
	for i := len(s.cancels) - 1; i >= 0; i-- {
		s.cancels[i]()
	}
}

// SessionManager implements domain.BrowserRuntime on chromedp.
type SessionManager struct {
	headless  bool
	userAgent string
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(cfg *config.Config) *SessionManager {
	return &SessionManager{
		headless:  cfg.Headless,
		userAgent: cfg.UserAgent,
	}
}

// Acquire creates a fresh, isolated browser session and applies the
// account's stored authentication token set.
func (m *SessionManager) Acquire(ctx context.Context, account *domain.Account) (domain.BrowserSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(m.userAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	session := &Session{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{cancelAlloc, cancelBrowser},
	}

	// Start the browser now so a missing or broken runtime surfaces here
	// instead of inside the first stage.
	if err := chromedp.Run(browserCtx); err != nil {
		session.close()
		return nil, fmt.Errorf("start browser for account %s: %w", account.ID, err)
	}

	if err := injectCookies(browserCtx, account.CookieSet); err != nil {
		session.close()
		return nil, fmt.Errorf("inject cookies for account %s: %w", account.ID, err)
	}

	logger.Event("session_acquired", map[string]any{"account": account.ID})
	return session, nil
}

// Release tears the session down. Safe to call with a nil session.
func (m *SessionManager) Release(session domain.BrowserSession) {
	s, ok := session.(*Session)
	if !ok || s == nil {
		return
	}
	s.close()
}
