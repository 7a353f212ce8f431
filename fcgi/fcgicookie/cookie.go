// Package fcgicookie implements RFC 2109 Cookie header parsing and
// Set-Cookie formatting. FastCGI itself carries no cookie semantics;
// this is HTTP-adjacent syntax the request/response objects need to
// expose to handlers.
package fcgicookie

import (
	"strconv"
	"strings"
	"time"
)

// expiresLayout renders time in UTC as the culture-invariant
// "ddd, dd-MMM-yy hh:mm:ss GMT" form Set-Cookie expects.
const expiresLayout = "Mon, 02-Jan-06 15:04:05 GMT"

// Cookie is one parsed or to-be-emitted cookie.
type Cookie struct {
	Name    string
	Value   string
	Path    string
	Domain  string
	Version int
	Expires time.Time // zero value: no Expires attribute emitted
	Secure  bool
}

// Expired returns a copy of the "unset" form of a cookie: empty value,
// expiry one day in the past, which is how a browser is told to clear it.
func Expired(name string) Cookie {
	return Cookie{
		Name:    name,
		Value:   "",
		Expires: time.Now().UTC().Add(-24 * time.Hour),
	}
}

// Parse decodes a Cookie header value into an ordered sequence of
// cookies. On any malformed item — an unterminated quoted string, an
// item with no "=", a name that isn't a valid token — parsing aborts
// and yields no cookies at all: upstream user agents vary widely, and
// a partially-trusted cookie table is worse than an empty one.
func Parse(header string) []Cookie {
	items, ok := splitItems(header)
	if !ok {
		return nil
	}

	var cookies []Cookie
	current := -1
	version := 0

	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, value, ok := parseNameValue(item)
		if !ok {
			return nil
		}

		switch {
		case strings.EqualFold(name, "$Version"):
			if v, err := strconv.Atoi(value); err == nil {
				version = v
			}
		case strings.EqualFold(name, "$Path"):
			if current >= 0 {
				cookies[current].Path = value
			}
		case strings.EqualFold(name, "$Domain"):
			if current >= 0 {
				cookies[current].Domain = value
			}
		default:
			cookies = append(cookies, Cookie{Name: name, Value: value, Version: version})
			current = len(cookies) - 1
		}
	}
	return cookies
}

// splitItems breaks header into ';'- or ','-delimited items, each
// followed by at most one optional space, respecting double-quoted
// spans so a quoted value may itself contain ';' or ','. It reports
// ok=false when a quote is left unterminated.
func splitItems(header string) (items []string, ok bool) {
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(header); i++ {
		c := header[i]
		if c == '"' {
			inQuotes = !inQuotes
			cur.WriteByte(c)
			continue
		}
		if !inQuotes && (c == ';' || c == ',') {
			items = append(items, cur.String())
			cur.Reset()
			if i+1 < len(header) && header[i+1] == ' ' {
				i++
			}
			continue
		}
		cur.WriteByte(c)
	}
	if inQuotes {
		return nil, false
	}
	items = append(items, cur.String())
	return items, true
}

func parseNameValue(item string) (name, value string, ok bool) {
	eq := strings.IndexByte(item, '=')
	if eq < 0 {
		return "", "", false
	}
	name = strings.TrimSpace(item[:eq])
	if name == "" || !isToken(name) {
		return "", "", false
	}
	return name, parseValue(strings.TrimSpace(item[eq+1:])), true
}

// parseValue unwraps a quoted-string value, or returns an unquoted run
// as-is. splitItems has already isolated this item on unquoted ';'/','
// and rejected unbalanced quotes at the header level, so anything
// that reaches here, including attribute values like $Path=/ that
// aren't valid RFC 2109 tokens, is a legitimate value rather than a
// reason to fail the whole header.
func parseValue(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// isToken reports whether s consists only of RFC 2109 token
// characters: printable, non-control, and none of the tspecials
// "()<>@,;:\\\"/[]?={} " (space and horizontal tab included). Used to
// validate cookie/attribute names; the empty string is rejected by
// the caller before this is reached.
func isToken(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7f {
			return false
		}
		switch c {
		case '(', ')', '<', '>', '@', ',', ';', ':', '\\', '"', '/', '[', ']', '?', '=', '{', '}', ' ', '\t':
			return false
		}
	}
	return true
}

// Format renders one cookie as a Set-Cookie attribute list: the
// primary Name="Value" pair, then Version (unquoted), Path, Domain
// and Expires (all quoted) when present, then a valueless Secure
// flag.
func Format(c Cookie) string {
	var parts []string
	parts = append(parts, c.Name+`="`+c.Value+`"`)
	if c.Version != 0 {
		parts = append(parts, "Version="+strconv.Itoa(c.Version))
	}
	if c.Path != "" {
		parts = append(parts, `Path="`+c.Path+`"`)
	}
	if c.Domain != "" {
		parts = append(parts, `Domain="`+c.Domain+`"`)
	}
	if !c.Expires.IsZero() {
		parts = append(parts, `Expires="`+c.Expires.UTC().Format(expiresLayout)+`"`)
	}
	if c.Secure {
		parts = append(parts, "Secure")
	}
	return strings.Join(parts, "; ")
}

// FormatAll joins several cookies' Format output with commas, the
// form used when the response's cookie table is emitted as a single
// Set-Cookie header.
func FormatAll(cookies []Cookie) string {
	parts := make([]string, len(cookies))
	for i, c := range cookies {
		parts[i] = Format(c)
	}
	return strings.Join(parts, ",")
}
