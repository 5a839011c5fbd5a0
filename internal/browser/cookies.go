package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// cookieJSON is the stored cookie format (EditThisCookie compatible).
type cookieJSON struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expirationDate"`
	HttpOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// injectCookies applies a stored authentication token set to the browser.
func injectCookies(ctx context.Context, cookieSet []byte) error {
	if len(cookieSet) == 0 {
		return fmt.Errorf("account has no stored cookie set")
	}

	var cookies []cookieJSON
	if err := json.Unmarshal(cookieSet, &cookies); err != nil {
		return fmt.Errorf("parse cookie set: %w", err)
	}

	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			sameSite := network.CookieSameSiteLax
			switch c.SameSite {
			case "Strict":
				sameSite = network.CookieSameSiteStrict
			case "None":
				sameSite = network.CookieSameSiteNone
			}

			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HttpOnly).
				WithSecure(c.Secure).
				WithSameSite(sameSite).
				Do(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	}))
}

// encodeCookies serializes captured browser cookies into the stored format.
func encodeCookies(cookies []*network.Cookie) ([]byte, error) {
	out := make([]cookieJSON, 0, len(cookies))
	for _, c := range cookies {
		sameSite := "Unspecified"
		switch c.SameSite {
		case network.CookieSameSiteStrict:
			sameSite = "Strict"
		case network.CookieSameSiteLax:
			sameSite = "Lax"
		case network.CookieSameSiteNone:
			sameSite = "None"
		}

		out = append(out, cookieJSON{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: sameSite,
		})
	}

	return json.MarshalIndent(out, "", "  ")
}
