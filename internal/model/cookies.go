package model

import "strings"

type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ParseCookies parses a Cookie header style string: `;`-delimited `name=value` pairs.
// Pairs without `=` or with an empty name are skipped; values keep any further `=`.
func ParseCookies(raw string) []Cookie {
	out := make([]Cookie, 0, strings.Count(raw, ";")+1)
	for _, part := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name := strings.TrimSpace(k)
		if name == "" {
			continue
		}
		out = append(out, Cookie{Name: name, Value: strings.TrimSpace(v)})
	}
	return out
}

// LookupCookie returns the first cookie with the exact name.
func LookupCookie(cookies []Cookie, name string) (string, bool) {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// DeriveCSRF 从 cookie 中取出 bili_jct；不存在或为空时返回 false。
func DeriveCSRF(raw string) (string, bool) {
	v, ok := LookupCookie(ParseCookies(raw), CSRFCookieName)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
