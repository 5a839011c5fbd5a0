package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"auto_post_scheduler/internal/domain"
	"auto_post_scheduler/internal/logger"
)

const (
	loginURL     = "https://www.tiktok.com/login"
	uploadURLAlt = "https://www.tiktok.com/upload"
	composerURL  = "https://www.tiktok.com/creator-center/upload"
)

// CaptureLogin opens a visible browser, waits for the operator to log in to
// the account, captures the resulting cookies and stores them as the
// account's authentication token set. Clears the needs-reauth flag on
// success.
func CaptureLogin(ctx context.Context, account *domain.Account, accounts domain.AccountRepository, userAgent string) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// Generous window for a human to complete the login flow.
	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, 5*time.Minute)
	defer cancelTimeout()

	logger.Info().Printf("Login mode for account %s: log in manually, then navigate to the upload page.", account.Handle)

	if err := chromedp.Run(browserCtx, chromedp.Navigate(loginURL)); err != nil {
		return fmt.Errorf("navigate to login page: %w", err)
	}

	if err := waitForComposer(browserCtx); err != nil {
		return fmt.Errorf("login timeout or error: %w", err)
	}

	var cookies []*network.Cookie
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("get cookies: %w", err)
	}

	cookieSet, err := encodeCookies(cookies)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}

	if err := accounts.UpdateCookieSet(account.ID, cookieSet); err != nil {
		return fmt.Errorf("store cookie set: %w", err)
	}
	if err := accounts.SetNeedsReauth(account.ID, false); err != nil {
		return fmt.Errorf("clear needs-reauth flag: %w", err)
	}

	logger.Info().Printf("Captured %d cookies for account %s", len(cookies), account.Handle)
	return nil
}

// waitForComposer polls until the operator reaches the upload page, the
// signal that login succeeded.
func waitForComposer(ctx context.Context) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			var url string
			if err := chromedp.Run(ctx, chromedp.Evaluate(`window.location.href`, &url)); err != nil {
				continue
			}
			if strings.HasPrefix(url, composerURL) || strings.HasPrefix(url, uploadURLAlt) {
				return nil
			}
		}
	}
}
