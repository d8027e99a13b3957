package browser

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// PageOptions configures a fresh tab on a session.
type PageOptions struct {
	UserAgent string
	// AllowMedia keeps media requests flowing. The main scrape pass blocks
	// them along with images and fonts; the retry sweep is more permissive
	// in case a page's rendering depends on one.
	AllowMedia bool
}

// Page is a driven tab plus the request router that strips heavy resources.
type Page struct {
	*rod.Page
	router *rod.HijackRouter
}

// NewPage opens a tab with the portal-friendly defaults applied: desktop
// user agent and image/font(/media) requests failed before they hit the
// network.
func (s *Session) NewPage(opts PageOptions) (*Page, error) {
	pg, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, err
	}
	if opts.UserAgent != "" {
		if err := pg.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			_ = pg.Close()
			return nil, err
		}
	}

	blocked := []proto.NetworkResourceType{
		proto.NetworkResourceTypeImage,
		proto.NetworkResourceTypeFont,
	}
	if !opts.AllowMedia {
		blocked = append(blocked, proto.NetworkResourceTypeMedia)
	}

	router := pg.HijackRequests()
	for _, rt := range blocked {
		if err := router.Add("*", rt, func(h *rod.Hijack) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		}); err != nil {
			_ = pg.Close()
			return nil, err
		}
	}
	go router.Run()

	return &Page{Page: pg, router: router}, nil
}

// Close stops the request router and closes the tab, swallowing errors the
// same way the session teardown does.
func (p *Page) Close() {
	if p == nil {
		return
	}
	if p.router != nil {
		_ = p.router.Stop()
	}
	if p.Page != nil {
		_ = p.Page.Close()
	}
}
