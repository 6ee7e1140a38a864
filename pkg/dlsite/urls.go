package dlsite

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/purell"
)

const siteURL = "https://www.dlsite.com"

// Product codes: RJ for doujin works, RE for the english storefront.
var codePattern = regexp.MustCompile(`R[JE][0-9]{6,8}`)

// ExtractCode returns the first product code found in s.
func ExtractCode(s string) (string, bool) {
	code := codePattern.FindString(s)
	return code, code != ""
}

// IsSiteURL reports whether s begins with the site's canonical URL prefix.
func IsSiteURL(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), siteURL)
}

func WorkURL(code string) string {
	return workURL(siteURL, code)
}

func workURL(base, code string) string {
	return fmt.Sprintf("%s/maniax/work/=/product_id/%s.html", base, code)
}

func searchURL(base, query string, perPage int, locale string) string {
	u := fmt.Sprintf("%s/maniax/fsr/=/keyword/%s/per_page/%d/page/1/", base, url.PathEscape(query), perPage)
	return withLocale(u, locale)
}

// withLocale appends the locale query parameter the site uses to pick
// the language of rendered field values.
func withLocale(rawURL, locale string) string {
	if locale == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("locale", locale)
	u.RawQuery = q.Encode()
	return u.String()
}

func stripLocale(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if _, ok := q["locale"]; !ok {
		return rawURL
	}
	q.Del("locale")
	u.RawQuery = q.Encode()
	return u.String()
}

func Normalize(url string) (string, error) {
	flags := purell.FlagLowercaseScheme |
		purell.FlagLowercaseHost |
		purell.FlagRemoveDefaultPort |
		purell.FlagRemoveFragment |
		purell.FlagDecodeUnnecessaryEscapes |
		purell.FlagSortQuery |
		purell.FlagRemoveDuplicateSlashes |
		purell.FlagRemoveDotSegments

	return purell.NormalizeURLString(url, flags)
}

// NormalizeReferer rewrites link so its host carries a leading "www.".
// The image CDN rejects requests whose Referer lacks that host shape,
// so cache downloads must pass their referer through here first.
func NormalizeReferer(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return link
	}
	if !strings.HasPrefix(u.Host, "www.") {
		u.Host = "www." + u.Host
	}
	return u.String()
}
