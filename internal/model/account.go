package model

import "strings"

// CookieSeparator 多账号 cookie 之间的分隔符。
const CookieSeparator = "###"

const CSRFCookieName = "bili_jct"

type Account struct {
	Index  int    `json:"index"`
	Cookie string `json:"-"`
	CSRF   string `json:"-"`
}

// NewAccount builds the session identity for one cookie segment. Index is 1-based.
func NewAccount(index int, cookie string) Account {
	cookie = strings.TrimSpace(cookie)
	csrf, _ := DeriveCSRF(cookie)
	return Account{
		Index:  index,
		Cookie: cookie,
		CSRF:   csrf,
	}
}

// SplitCookies 按 ### 切分并去掉空白段。
func SplitCookies(blob string) []string {
	parts := strings.Split(blob, CookieSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
