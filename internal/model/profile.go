package model

type UserProfile struct {
	Name  string  `json:"uname"`
	Mid   int64   `json:"mid"`
	Level int     `json:"level"`
	Exp   int     `json:"exp"`
	Coins float64 `json:"coins"`
}
