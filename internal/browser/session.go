package browser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// SessionStore persists login cookies per top-level domain so
// interactive logins (slow, sometimes CAPTCHA-gated) stay rare.
// Restore first; log in only when the restored session no longer
// validates.
type SessionStore struct {
	dir string
}

// NewSessionStore creates a store rooted at dir.
func NewSessionStore(dir string) *SessionStore {
	return &SessionStore{dir: dir}
}

type sessionFile struct {
	Domain  string                      `json:"domain"`
	SavedAt time.Time                   `json:"saved_at"`
	Cookies []*proto.NetworkCookieParam `json:"cookies"`
}

// Restore loads persisted cookies for the domain into the browsing
// context. Missing or unreadable sessions are a miss, not an error.
func (s *SessionStore) Restore(browser *rod.Browser, domain string) bool {
	data, err := os.ReadFile(s.path(domain))
	if err != nil {
		return false
	}

	var sess sessionFile
	if err := json.Unmarshal(data, &sess); err != nil {
		return false
	}
	if len(sess.Cookies) == 0 {
		return false
	}

	if err := browser.SetCookies(sess.Cookies); err != nil {
		return false
	}
	return true
}

// Persist saves the context's current cookies for the domain.
func (s *SessionStore) Persist(browser *rod.Browser, domain string) error {
	cookies, err := browser.GetCookies()
	if err != nil {
		return fmt.Errorf("get cookies: %w", err)
	}

	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		if !strings.HasSuffix(c.Domain, domain) {
			continue
		}
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		})
	}

	sess := sessionFile{Domain: domain, SavedAt: time.Now().UTC(), Cookies: params}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(s.path(domain), data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Forget drops the persisted session for a domain.
func (s *SessionStore) Forget(domain string) {
	_ = os.Remove(s.path(domain))
}

func (s *SessionStore) path(domain string) string {
	safe := strings.ReplaceAll(domain, ".", "_")
	return filepath.Join(s.dir, safe+".session.json")
}

// topLevelDomain reduces a host to its registrable two-label form.
// Good enough for the site list this pipeline targets.
func topLevelDomain(host string) string {
	host = strings.TrimPrefix(host, "www.")
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}
