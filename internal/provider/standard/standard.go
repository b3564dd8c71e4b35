package standard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"bili_checkin/internal/config"
	"bili_checkin/internal/logbus"
	"bili_checkin/internal/model"
	"bili_checkin/internal/provider"
)

const (
	pathNav       = "/x/web-interface/nav"
	pathShare     = "/x/web-interface/share/add"
	pathHeartbeat = "/x/click-interface/web/heartbeat"
	pathCoinAdd   = "/x/web-interface/coin/add"
	pathRanking   = "/x/web-interface/ranking/v2"
	pathFeed      = "/x/polymer/web-dynamic/v1/feed/all"
	pathLiveSign  = "/xlive/web-ucenter/v1/sign/DoSign"
	pathMangaSign = "/twirp/activity.v1.Activity/ClockIn"
)

type StandardProvider struct {
	cfg config.ProviderConfig
	bus *logbus.Bus
}

func New(cfg config.ProviderConfig, bus *logbus.Bus) *StandardProvider {
	return &StandardProvider{cfg: cfg, bus: bus}
}

func (p *StandardProvider) Name() string { return "standard" }

func (p *StandardProvider) Open(account model.Account) provider.Session {
	return &Session{
		account: account,
		client:  p.newClient(account),
		api:     strings.TrimRight(p.cfg.APIBaseURL, "/"),
		live:    strings.TrimRight(p.cfg.LiveBaseURL, "/"),
		manga:   strings.TrimRight(p.cfg.MangaBaseURL, "/"),
	}
}

type Session struct {
	account model.Account
	client  *resty.Client
	api     string
	live    string
	manga   string
}

func (s *Session) Account() model.Account { return s.account }

type apiEnvelope struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message,omitempty"`
	Msg     string          `json:"msg,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// status 主站返回数字 code；漫画的 twirp 接口出错时 code 是字符串，按非 0 处理。
func (e apiEnvelope) status() (int, bool) {
	raw := bytes.TrimSpace(e.Code)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		return -1, true
	}
	return 0, false
}

func (e apiEnvelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Msg != "" {
		return e.Msg
	}
	return "未知错误"
}

type navData struct {
	IsLogin   bool    `json:"isLogin"`
	Uname     *string `json:"uname"`
	Mid       *int64  `json:"mid"`
	LevelInfo *struct {
		CurrentLevel *int `json:"current_level"`
		CurrentExp   *int `json:"current_exp"`
	} `json:"level_info"`
	Money *float64 `json:"money"`
}

type rankingData struct {
	List []struct {
		Bvid string `json:"bvid"`
	} `json:"list"`
}

type feedData struct {
	Items []struct {
		Modules struct {
			ModuleDynamic struct {
				Major *struct {
					Archive *struct {
						Bvid string `json:"bvid"`
					} `json:"archive"`
				} `json:"major"`
			} `json:"module_dynamic"`
		} `json:"modules"`
	} `json:"items"`
}

// call executes req and unwraps the status envelope. out may be nil when the payload is
// not needed.
func (s *Session) call(req *resty.Request, op, method, url string, out any) error {
	resp, err := req.Execute(method, url)
	if err != nil {
		return provider.Transport(op, err)
	}
	var env apiEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return provider.Decode(op, fmt.Errorf("%s: HTTP %d: %w", op, resp.StatusCode(), err))
	}
	code, ok := env.status()
	if !ok {
		return provider.Decode(op, fmt.Errorf("%s: HTTP %d: response has no code", op, resp.StatusCode()))
	}
	if code != 0 {
		return provider.Rejected(op, code, env.message())
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 {
		return provider.Decode(op, fmt.Errorf("%s: response has no data", op))
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return provider.Decode(op, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

func (s *Session) CheckLogin(ctx context.Context) (bool, error) {
	err := s.call(s.client.R().SetContext(ctx), "nav", http.MethodGet, s.api+pathNav, nil)
	if err == nil {
		return true, nil
	}
	switch provider.KindOf(err) {
	case provider.KindUnauthenticated:
		return false, nil
	case provider.KindRejected:
		// 只有 -101 视为未登录
		return true, nil
	default:
		return false, err
	}
}

func (s *Session) UserProfile(ctx context.Context) (*model.UserProfile, error) {
	var data navData
	if err := s.call(s.client.R().SetContext(ctx), "nav", http.MethodGet, s.api+pathNav, &data); err != nil {
		return nil, err
	}
	if data.Uname == nil || data.Mid == nil || data.LevelInfo == nil ||
		data.LevelInfo.CurrentLevel == nil || data.LevelInfo.CurrentExp == nil || data.Money == nil {
		return nil, provider.Decode("nav", errors.New("nav: incomplete user info"))
	}
	return &model.UserProfile{
		Name:  *data.Uname,
		Mid:   *data.Mid,
		Level: *data.LevelInfo.CurrentLevel,
		Exp:   *data.LevelInfo.CurrentExp,
		Coins: *data.Money,
	}, nil
}

func (s *Session) ShareVideo(ctx context.Context, bvid string) error {
	req := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"bvid": bvid,
			"csrf": s.account.CSRF,
		})
	return s.call(req, "share", http.MethodPost, s.api+pathShare, nil)
}

func (s *Session) WatchVideo(ctx context.Context, bvid string) error {
	req := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"bvid":        bvid,
			"csrf":        s.account.CSRF,
			"played_time": "2",
		})
	return s.call(req, "heartbeat", http.MethodPost, s.api+pathHeartbeat, nil)
}

func (s *Session) LiveSign(ctx context.Context) error {
	return s.call(s.client.R().SetContext(ctx), "live_sign", http.MethodGet, s.live+pathLiveSign, nil)
}

func (s *Session) MangaSign(ctx context.Context) error {
	req := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"platform": "ios"})
	return s.call(req, "manga_sign", http.MethodPost, s.manga+pathMangaSign, nil)
}

func (s *Session) CandidateVideos(ctx context.Context, source model.VideoSource) ([]string, error) {
	var out []string
	switch source {
	case model.VideoSourceRanking:
		var data rankingData
		req := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{"rid": "0", "type": "all"})
		if err := s.call(req, "ranking", http.MethodGet, s.api+pathRanking, &data); err != nil {
			return nil, err
		}
		for _, v := range data.List {
			if v.Bvid != "" {
				out = append(out, v.Bvid)
			}
		}
	case model.VideoSourceDynamic:
		var data feedData
		req := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{"type": "video", "page": "1"})
		if err := s.call(req, "feed", http.MethodGet, s.api+pathFeed, &data); err != nil {
			return nil, err
		}
		for _, it := range data.Items {
			major := it.Modules.ModuleDynamic.Major
			if major == nil || major.Archive == nil || major.Archive.Bvid == "" {
				continue
			}
			out = append(out, major.Archive.Bvid)
		}
	default:
		return nil, fmt.Errorf("unknown video source %q", source)
	}
	return out, nil
}

func (s *Session) AddCoin(ctx context.Context, bvid string, multiply int, selectLike bool) error {
	like := "0"
	if selectLike {
		like = "1"
	}
	req := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"bvid":         bvid,
			"multiply":     strconv.Itoa(multiply),
			"select_like":  like,
			"cross_domain": "true",
			"csrf":         s.account.CSRF,
		})
	return s.call(req, "coin_add", http.MethodPost, s.api+pathCoinAdd, nil)
}

func (p *StandardProvider) newClient(account model.Account) *resty.Client {
	client := resty.New().
		SetTimeout(p.cfg.Timeout()).
		SetRetryCount(0).
		SetCookieJar(nil)

	if p.cfg.Proxy != "" {
		client.SetProxy(p.cfg.Proxy)
	}

	client.SetHeaders(map[string]string{
		"User-Agent": p.cfg.UserAgent,
		"Accept":     "application/json, text/plain, */*",
		"Referer":    "https://www.bilibili.com/",
		"Cookie":     account.Cookie,
	})

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if p.bus != nil {
			p.bus.Log("debug", "http request", map[string]any{
				"account": account.Index,
				"method":  req.Method,
				"url":     req.URL,
			})
		}
		return nil
	})

	return client
}
