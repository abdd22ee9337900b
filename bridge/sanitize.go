package bridge

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

var (
	tagPattern         = regexp.MustCompile(`<[^>]*>`)
	octetPattern       = regexp.MustCompile(`%[a-fA-F0-9]{2}`)
	inlineSpacePattern = regexp.MustCompile(`[\t ]+`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// SanitizeText cleans a single-line admin input: tags, percent-encoded
// octets and control characters are removed and whitespace is collapsed.
func SanitizeText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = octetPattern.ReplaceAllString(s, "")
	s = stripControl(s, false)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SanitizeTextarea is SanitizeText that keeps line breaks.
func SanitizeTextarea(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = tagPattern.ReplaceAllString(s, "")
	s = stripControl(s, true)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpacePattern.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// SanitizeURL accepts an absolute http(s) URL and returns it without a
// trailing slash. An empty input stays empty.
func SanitizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: civicrm_url: %v", ErrInvalidSettings, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: civicrm_url must be an absolute http(s) URL", ErrInvalidSettings)
	}
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

// SanitizeCredentials applies the field rules to all three settings.
func SanitizeCredentials(in Credentials) (Credentials, error) {
	endpoint, err := SanitizeURL(in.Endpoint)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{
		Endpoint: endpoint,
		APIKey:   SanitizeText(in.APIKey),
		SiteKey:  SanitizeText(in.SiteKey),
	}, nil
}

func stripControl(s string, keepNewline bool) string {
	return strings.Map(func(r rune) rune {
		if keepNewline && r == '\n' {
			return r
		}
		if r == '\t' || r == '\n' || r == '\r' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
