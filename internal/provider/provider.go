package provider

import (
	"context"

	"bili_checkin/internal/model"
)

// Provider opens an authenticated session for one account.
type Provider interface {
	Name() string
	Open(account model.Account) Session
}

// Session is one account's view of the remote API. Every method issues exactly one
// request and never retries; failures are *APIError values.
type Session interface {
	Account() model.Account

	// CheckLogin reports false with a nil error when the cookie is not logged in.
	CheckLogin(ctx context.Context) (bool, error)
	UserProfile(ctx context.Context) (*model.UserProfile, error)

	ShareVideo(ctx context.Context, bvid string) error
	WatchVideo(ctx context.Context, bvid string) error
	LiveSign(ctx context.Context) error
	MangaSign(ctx context.Context) error

	CandidateVideos(ctx context.Context, source model.VideoSource) ([]string, error)
	AddCoin(ctx context.Context, bvid string, multiply int, selectLike bool) error
}
