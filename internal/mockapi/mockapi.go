// Package mockapi is an in-memory stand-in for the Bilibili endpoints and the PushPlus
// webhook. cmd/mock serves it for local dry runs; tests mount it on httptest servers.
package mockapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
)

const (
	DailyCoinLimit = 5
	// CoinLimitMessage 当日投币满 5 个后返回的提示。
	CoinLimitMessage = "今日投币已达到上限"
)

type User struct {
	SESSDATA string
	CSRF     string
	Name     string
	Mid      int64
	Level    int
	Exp      int
	Coins    float64
}

type userState struct {
	User
	coinsToday  int
	coined      map[string]bool
	shared      bool
	liveSigned  bool
	mangaSigned bool
}

type PushMessage struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
}

type Server struct {
	mu        sync.Mutex
	users     map[string]*userState
	videos    []string
	calls     map[string]int
	broken    map[string]bool
	pushToken string
	pushes    []PushMessage
}

func New(videos ...string) *Server {
	return &Server{
		users:  make(map[string]*userState),
		videos: append([]string(nil), videos...),
		calls:  make(map[string]int),
		broken: make(map[string]bool),
	}
}

func (s *Server) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.SESSDATA] = &userState{User: u, coined: make(map[string]bool)}
}

// SetCoinsToday marks n coins as already donated today for the user.
func (s *Server) SetCoinsToday(sessdata string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.users[sessdata]; u != nil {
		u.coinsToday = n
	}
}

func (s *Server) SetPushToken(token string) {
	s.mu.Lock()
	s.pushToken = token
	s.mu.Unlock()
}

// Break makes path answer with a non-JSON 502 page.
func (s *Server) Break(path string) {
	s.mu.Lock()
	s.broken[path] = true
	s.mu.Unlock()
}

func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *Server) Pushes() []PushMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PushMessage(nil), s.pushes...)
}

func (s *Server) User(sessdata string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[sessdata]
	if u == nil {
		return User{}, false
	}
	return u.User, true
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/x/web-interface/nav", s.handleNav)
	mux.HandleFunc("/x/web-interface/share/add", s.post(s.authed(s.handleShare)))
	mux.HandleFunc("/x/click-interface/web/heartbeat", s.post(s.authed(s.handleHeartbeat)))
	mux.HandleFunc("/x/web-interface/coin/add", s.post(s.authed(s.handleCoinAdd)))
	mux.HandleFunc("/x/web-interface/ranking/v2", s.handleRanking)
	mux.HandleFunc("/x/polymer/web-dynamic/v1/feed/all", s.authed(s.handleFeed))
	mux.HandleFunc("/xlive/web-ucenter/v1/sign/DoSign", s.authed(s.handleLiveSign))
	mux.HandleFunc("/twirp/activity.v1.Activity/ClockIn", s.post(s.authed(s.handleMangaSign)))
	mux.HandleFunc("/send", s.post(s.handlePush))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		broken := s.broken[r.URL.Path]
		s.mu.Unlock()
		if broken {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html><body>502 Bad Gateway</body></html>"))
			return
		}
		mux.ServeHTTP(w, r)
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, u *userState)

func (s *Server) post(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := s.userFor(r)
		if u == nil {
			writeJSON(w, map[string]any{"code": -101, "message": "账号未登录", "ttl": 1})
			return
		}
		if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/x/") {
			if r.FormValue("csrf") != u.CSRF {
				writeJSON(w, map[string]any{"code": -111, "message": "csrf 校验失败"})
				return
			}
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		next(w, r, u)
	}
}

func (s *Server) userFor(r *http.Request) *userState {
	c, err := r.Cookie("SESSDATA")
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[c.Value]
}

func (s *Server) handleNav(w http.ResponseWriter, r *http.Request) {
	u := s.userFor(r)
	if u == nil {
		writeJSON(w, map[string]any{
			"code":    -101,
			"message": "账号未登录",
			"data":    map[string]any{"isLogin": false},
		})
		return
	}
	s.mu.Lock()
	data := map[string]any{
		"isLogin": true,
		"uname":   u.Name,
		"mid":     u.Mid,
		"level_info": map[string]any{
			"current_level": u.Level,
			"current_exp":   u.Exp,
		},
		"money": u.Coins,
	}
	s.mu.Unlock()
	writeJSON(w, map[string]any{"code": 0, "message": "0", "data": data})
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request, u *userState) {
	if strings.TrimSpace(r.FormValue("bvid")) == "" {
		writeJSON(w, map[string]any{"code": -400, "message": "请求错误"})
		return
	}
	if !u.shared {
		u.shared = true
		u.Exp += 5
	}
	writeJSON(w, map[string]any{"code": 0, "message": "0", "data": 5})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request, _ *userState) {
	if strings.TrimSpace(r.FormValue("bvid")) == "" {
		writeJSON(w, map[string]any{"code": -400, "message": "请求错误"})
		return
	}
	writeJSON(w, map[string]any{"code": 0, "message": "0"})
}

func (s *Server) handleCoinAdd(w http.ResponseWriter, r *http.Request, u *userState) {
	bvid := r.FormValue("bvid")
	multiply := 1
	if r.FormValue("multiply") == "2" {
		multiply = 2
	}
	switch {
	case u.coinsToday+multiply > DailyCoinLimit:
		writeJSON(w, map[string]any{"code": 34005, "message": CoinLimitMessage})
	case u.coined[bvid]:
		writeJSON(w, map[string]any{"code": 34005, "message": "超过投币上限啦~"})
	case u.Coins < float64(multiply):
		writeJSON(w, map[string]any{"code": -104, "message": "硬币不足"})
	default:
		u.coined[bvid] = true
		u.coinsToday += multiply
		u.Coins -= float64(multiply)
		u.Exp += 10 * multiply
		writeJSON(w, map[string]any{"code": 0, "message": "0", "data": map[string]any{"like": r.FormValue("select_like") == "1"}})
	}
}

func (s *Server) handleRanking(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	list := make([]map[string]any, 0, len(s.videos))
	for _, v := range s.videos {
		list = append(list, map[string]any{"bvid": v})
	}
	s.mu.Unlock()
	writeJSON(w, map[string]any{"code": 0, "message": "0", "data": map[string]any{"list": list}})
}

func (s *Server) handleFeed(w http.ResponseWriter, _ *http.Request, _ *userState) {
	items := make([]map[string]any, 0, len(s.videos))
	for _, v := range s.videos {
		items = append(items, map[string]any{
			"modules": map[string]any{
				"module_dynamic": map[string]any{
					"major": map[string]any{
						"archive": map[string]any{"bvid": v},
					},
				},
			},
		})
	}
	writeJSON(w, map[string]any{"code": 0, "message": "0", "data": map[string]any{"items": items}})
}

func (s *Server) handleLiveSign(w http.ResponseWriter, _ *http.Request, u *userState) {
	if u.liveSigned {
		writeJSON(w, map[string]any{"code": 1011040, "message": "今日已签到过,无法重复签到"})
		return
	}
	u.liveSigned = true
	writeJSON(w, map[string]any{"code": 0, "message": "0", "data": map[string]any{"text": "3000点用户经验,2根辣条"}})
}

func (s *Server) handleMangaSign(w http.ResponseWriter, r *http.Request, u *userState) {
	if r.FormValue("platform") == "" {
		writeJSONStatus(w, http.StatusBadRequest, map[string]any{"code": "invalid_argument", "msg": "platform is required"})
		return
	}
	if u.mangaSigned {
		writeJSONStatus(w, http.StatusBadRequest, map[string]any{"code": "invalid_argument", "msg": "clockin clockin is duplicate"})
		return
	}
	u.mangaSigned = true
	writeJSON(w, map[string]any{"code": 0, "msg": "", "data": map[string]any{}})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var body PushMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, map[string]any{"code": 400, "msg": "请求参数错误"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pushToken == "" || body.Token != s.pushToken {
		writeJSON(w, map[string]any{"code": 999, "msg": "无效的用户token"})
		return
	}
	s.pushes = append(s.pushes, body)
	writeJSON(w, map[string]any{"code": 200, "msg": "请求成功", "data": "mock-push"})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
