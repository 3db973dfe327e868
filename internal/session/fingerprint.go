package session

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/maltedev/regional-product-extractor/internal/models"
	"github.com/maltedev/regional-product-extractor/internal/region"
)

type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Fingerprint is everything a browser session presents to the storefront.
// It belongs to a single attempt.
type Fingerprint struct {
	Device      Device
	DeviceName  string
	UserAgent   string
	Locale      string
	Timezone    string
	Width       int
	Height      int
	ScaleFactor float64
	IsMobile    bool
	HasTouch    bool
	Headers     map[string]string
	Cookies     []Cookie
	InitScript  string
}

// CookieSeeder returns cookies that pre-select the region on a storefront.
type CookieSeeder func(r models.RegionConfig, host string) []Cookie

type Provisioner struct {
	pick func(n int) int
}

func NewProvisioner() *Provisioner {
	return &Provisioner{pick: rand.IntN}
}

// Provision builds a fresh fingerprint for one attempt.
func (p *Provisioner) Provision(r models.RegionConfig, host string, device Device, seed CookieSeeder) Fingerprint {
	if device == "" {
		device = Desktop
	}
	prof := ProfileFor(device)

	ua := prof.UserAgents[0]
	if n := len(prof.UserAgents); n > 1 {
		ua = prof.UserAgents[p.pick(n)]
	}

	fp := Fingerprint{
		Device:      device,
		DeviceName:  prof.Name,
		UserAgent:   ua,
		Locale:      r.Locale,
		Timezone:    r.Timezone,
		Width:       prof.Width,
		Height:      prof.Height,
		ScaleFactor: prof.ScaleFactor,
		IsMobile:    prof.IsMobile,
		HasTouch:    prof.HasTouch,
		Headers:     headers(r.Locale, prof),
		InitScript:  StealthScript(r.Locale, prof.Platform),
	}
	if seed != nil {
		fp.Cookies = seed(r, host)
	}
	return fp
}

func headers(locale string, prof Profile) map[string]string {
	mobile := "?0"
	if prof.IsMobile {
		mobile = "?1"
	}
	return map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           region.AcceptLanguage(locale),
		"Sec-Ch-Ua-Mobile":          mobile,
		"Sec-Ch-Ua-Platform":        fmt.Sprintf("%q", prof.Platform),
		"Upgrade-Insecure-Requests": "1",
		"DNT":                       "1",
	}
}

// AmazonCookies sets the display currency and language of an Amazon storefront.
func AmazonCookies(r models.RegionConfig, host string) []Cookie {
	domain := cookieDomain(host, "amazon.")
	return []Cookie{
		{Name: "i18n-prefs", Value: r.Currency, Domain: domain, Path: "/"},
		{Name: "lc-main", Value: strings.ReplaceAll(r.Locale, "-", "_"), Domain: domain, Path: "/"},
	}
}

// TrendyolCookies selects country, language and storefront.
func TrendyolCookies(r models.RegionConfig, host string) []Cookie {
	domain := cookieDomain(host, "trendyol.")
	cookies := []Cookie{
		{Name: "countryCode", Value: r.Code, Domain: domain, Path: "/"},
		{Name: "language", Value: region.Language(r.Locale), Domain: domain, Path: "/"},
	}
	if r.Storefront != "" {
		cookies = append(cookies, Cookie{Name: "storefrontId", Value: r.Storefront, Domain: domain, Path: "/"})
	}
	return cookies
}

// cookieDomain returns ".<brand>.<tld>" for hosts such as "www.amazon.co.uk".
func cookieDomain(host, brand string) string {
	host = strings.ToLower(host)
	if i := strings.Index(host, brand); i >= 0 {
		return "." + host[i:]
	}
	return "." + strings.TrimPrefix(host, "www.")
}

// StealthScript hides the most common automation markers and aligns
// navigator.languages with the session locale.
func StealthScript(locale, platform string) string {
	langs := []string{locale}
	if base := region.Language(locale); base != locale {
		langs = append(langs, base)
	}
	encoded, _ := json.Marshal(langs)
	plat, _ := json.Marshal(navigatorPlatform(platform))

	return fmt.Sprintf(`(() => {
  Object.defineProperty(navigator, 'webdriver', { get: () => undefined, configurable: true });
  Object.defineProperty(navigator, 'languages', { get: () => %s });
  Object.defineProperty(navigator, 'platform', { get: () => %s });
  Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
  window.chrome = window.chrome || { runtime: {} };
  const query = window.navigator.permissions && window.navigator.permissions.query;
  if (query) {
    window.navigator.permissions.query = (p) => p && p.name === 'notifications'
      ? Promise.resolve({ state: Notification.permission })
      : query(p);
  }
})();`, encoded, plat)
}

func navigatorPlatform(platform string) string {
	switch platform {
	case "iOS":
		return "iPhone"
	case "Windows":
		return "Win32"
	}
	return platform
}
