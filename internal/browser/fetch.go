package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/deadonfilm/morbid/internal/source"
)

// FetchRendered runs the full fetch state machine for one URL:
// navigate, settle, dismiss modals, handle CAPTCHA and paywall, then
// extract main content. Navigation failures come back inside the
// Rendered (empty text, Err set) so adapters keep fallback control.
func (m *Manager) FetchRendered(ctx context.Context, rawURL string) (*source.Rendered, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	domain := topLevelDomain(parsed.Host)

	bctx, release, err := m.acquireContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire browser context: %w", err)
	}
	defer release()

	restored := m.sessions.Restore(bctx, domain)

	page, err := bctx.Page(proto.TargetCreateTarget{})
	if err != nil {
		return &source.Rendered{Err: "create page: " + err.Error()}, nil
	}
	defer func() { _ = page.Close() }()
	page = page.Context(ctx).Timeout(m.cfg.PageTimeout)

	if err := m.navigate(page, rawURL); err != nil {
		return &source.Rendered{Err: "navigate: " + err.Error()}, nil
	}

	m.dismissModals(page)

	html, err := page.HTML()
	if err != nil {
		return &source.Rendered{Err: "read markup: " + err.Error()}, nil
	}

	var solverCost float64
	if doc, derr := goquery.NewDocumentFromReader(strings.NewReader(html)); derr == nil {
		if siteKey, found := hasCaptcha(doc); found {
			cost, serr := m.solver.Solve(ctx, page, siteKey, rawURL)
			solverCost += cost
			m.addSolverSpend(cost)
			if serr == nil {
				// A solved challenge usually reloads into the real page.
				_ = page.WaitIdle(5 * time.Second)
				if h, herr := page.HTML(); herr == nil {
					html = h
				}
			}
		}
	}

	if detectPaywall(html) == paywallHard {
		creds, ok := m.cfg.Credentials[domain]
		if ok {
			// Restored cookies did not validate (or were absent):
			// run the interactive login and retry the page.
			if err := m.login(page, domain, creds.Username, creds.Password); err == nil {
				if err := m.navigate(page, rawURL); err == nil {
					if h, herr := page.HTML(); herr == nil {
						html = h
					}
				}
			} else if restored {
				// Stale session; drop it so the next fetch starts clean.
				m.sessions.Forget(domain)
			}
		}
	}

	text := extractContent(html, m.cfg.MaxContentLen)

	info, _ := page.Info()
	finalURL := rawURL
	if info != nil && info.URL != "" {
		finalURL = info.URL
	}

	return &source.Rendered{
		Text:       text,
		HTML:       html,
		FinalURL:   finalURL,
		SolverCost: solverCost,
	}, nil
}

// navigate loads a URL and waits for script execution to settle.
func (m *Manager) navigate(page *rod.Page, rawURL string) error {
	if err := page.Navigate(rawURL); err != nil {
		return err
	}
	if err := page.WaitLoad(); err != nil {
		return err
	}
	// Give client-side rendering a bounded chance to finish.
	_ = page.WaitIdle(5 * time.Second)
	return nil
}

// dismissModals tries the known consent/paywall dismissers in order,
// first match wins, with a short per-attempt timeout. Best effort: a
// page without modals just burns the first miss.
func (m *Manager) dismissModals(page *rod.Page) {
	for _, sel := range consentSelectors {
		el, err := page.Timeout(1 * time.Second).Element(sel)
		if err != nil {
			continue
		}
		if visible, _ := el.Visible(); !visible {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			_ = page.WaitIdle(2 * time.Second)
			return
		}
	}
}

// login runs the interactive authentication flow for a domain and
// persists the resulting session on success.
func (m *Manager) login(page *rod.Page, domain, username, password string) error {
	loginURL := fmt.Sprintf("https://%s/login", domain)
	if err := m.navigate(page, loginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	m.dismissModals(page)

	user, err := page.Timeout(5 * time.Second).Element("input[type=email], input[name=username], input[type=text]")
	if err != nil {
		return fmt.Errorf("find username field: %w", err)
	}
	if err := user.Input(username); err != nil {
		return fmt.Errorf("fill username: %w", err)
	}

	pass, err := page.Timeout(5 * time.Second).Element("input[type=password]")
	if err != nil {
		return fmt.Errorf("find password field: %w", err)
	}
	if err := pass.Input(password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}

	submit, err := page.Timeout(5 * time.Second).Element("button[type=submit], input[type=submit]")
	if err != nil {
		return fmt.Errorf("find submit: %w", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("post-login load: %w", err)
	}

	if err := m.sessions.Persist(page.Browser(), domain); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}
