package browser

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

// cookieExport matches the JSON produced by common browser cookie
// exporters.
type cookieExport struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expirationDate"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// LoadCookies reads a JSON cookie export and converts it to CDP cookie
// params. Cookies without a name are dropped.
func LoadCookies(path string) ([]*proto.NetworkCookieParam, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("browser: read cookies: %w", err)
	}

	var exported []cookieExport
	if err := json.Unmarshal(data, &exported); err != nil {
		return nil, fmt.Errorf("browser: parse cookies: %w", err)
	}

	cookies := make([]*proto.NetworkCookieParam, 0, len(exported))
	for _, c := range exported {
		if c.Name == "" {
			continue
		}
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		switch strings.ToLower(c.SameSite) {
		case "strict":
			p.SameSite = proto.NetworkCookieSameSiteStrict
		case "lax":
			p.SameSite = proto.NetworkCookieSameSiteLax
		case "none", "no_restriction":
			p.SameSite = proto.NetworkCookieSameSiteNone
		}
		cookies = append(cookies, p)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("browser: cookie file %s holds no usable cookies", path)
	}
	return cookies, nil
}

// isLoginURL reports whether the browser was bounced to a login or
// logout flow, meaning the injected cookies were rejected.
func isLoginURL(url string) bool {
	lower := strings.ToLower(url)
	for _, frag := range []string{"/login", "/i/flow/login", "logout", "/account/access"} {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}
