package engine

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bili_checkin/internal/config"
	"bili_checkin/internal/logbus"
	"bili_checkin/internal/mockapi"
	"bili_checkin/internal/model"
	"bili_checkin/internal/provider"
	"bili_checkin/internal/provider/standard"
)

type fakeProvider struct {
	sessions []*fakeSession
	build    func(acc model.Account) *fakeSession
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Open(acc model.Account) provider.Session {
	s := p.build(acc)
	s.account = acc
	p.sessions = append(p.sessions, s)
	return s
}

type fakeSession struct {
	account    model.Account
	profile    *model.UserProfile
	profileErr error
	refreshErr error
	profileN   int
	taskErr    map[string]error
	videos     map[model.VideoSource][]string
	videoErr   error
	coinErrs   map[string]error

	calls []string
	coins []string
	bvids []string
}

func (s *fakeSession) Account() model.Account { return s.account }

func (s *fakeSession) record(op string) error {
	s.calls = append(s.calls, op)
	return s.taskErr[op]
}

func (s *fakeSession) CheckLogin(context.Context) (bool, error) {
	s.calls = append(s.calls, "check")
	return s.profileErr == nil, nil
}

func (s *fakeSession) UserProfile(context.Context) (*model.UserProfile, error) {
	s.calls = append(s.calls, "profile")
	s.profileN++
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	if s.profileN > 1 && s.refreshErr != nil {
		return nil, s.refreshErr
	}
	p := *s.profile
	return &p, nil
}

func (s *fakeSession) ShareVideo(_ context.Context, bvid string) error {
	s.bvids = append(s.bvids, bvid)
	return s.record("share")
}

func (s *fakeSession) WatchVideo(_ context.Context, bvid string) error {
	s.bvids = append(s.bvids, bvid)
	return s.record("watch")
}

func (s *fakeSession) LiveSign(context.Context) error  { return s.record("live") }
func (s *fakeSession) MangaSign(context.Context) error { return s.record("manga") }

func (s *fakeSession) CandidateVideos(_ context.Context, source model.VideoSource) ([]string, error) {
	s.calls = append(s.calls, "videos:"+string(source))
	if s.videoErr != nil {
		return nil, s.videoErr
	}
	return s.videos[source], nil
}

func (s *fakeSession) AddCoin(_ context.Context, bvid string, multiply int, _ bool) error {
	s.calls = append(s.calls, "coin")
	if multiply != 1 {
		return errors.New("unexpected multiply")
	}
	if err := s.coinErrs[bvid]; err != nil {
		return err
	}
	s.coins = append(s.coins, bvid)
	return nil
}

func healthySession() *fakeSession {
	return &fakeSession{
		profile: &model.UserProfile{Name: "Alice", Level: 4, Exp: 100, Coins: 10},
		videos: map[model.VideoSource][]string{
			model.VideoSourceDynamic: {"BV1", "BV2", "BV3", "BV4", "BV5", "BV6"},
			model.VideoSourceRanking: {"BVr1", "BVr2"},
		},
	}
}

func intPtr(v int) *int { return &v }

func newEngine(build func(model.Account) *fakeSession, task config.TaskConfig) (*Engine, *fakeProvider, *logbus.Bus) {
	p := &fakeProvider{build: build}
	bus := logbus.New(500)
	return New(Options{Provider: p, Bus: bus, Task: task}), p, bus
}

func TestRunAllOneResultPerSegment(t *testing.T) {
	e, p, _ := newEngine(func(model.Account) *fakeSession { return healthySession() }, config.TaskConfig{})

	results, err := e.RunAll(context.Background(), "SESSDATA=a###  ###SESSDATA=b;bili_jct=c###")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, 2, results[1].Index)
	assert.Equal(t, "c", p.sessions[1].account.CSRF)
	require.NotEmpty(t, results[0].RunID)
	assert.Equal(t, results[0].RunID, results[1].RunID)

	// 四个可配置任务加观看视频
	assert.Len(t, results[0].Outcomes, 5)
	assert.Equal(t, model.TaskWatchVideo, results[0].Outcomes[4].Task)
	assert.Equal(t, 0, results[0].Failed())
}

func TestRunAllNoAccounts(t *testing.T) {
	e, _, _ := newEngine(func(model.Account) *fakeSession { return healthySession() }, config.TaskConfig{})
	_, err := e.RunAll(context.Background(), " ### ")
	assert.ErrorIs(t, err, ErrNoAccounts)
}

func TestLoginFailureSkipsEveryTask(t *testing.T) {
	e, p, _ := newEngine(func(acc model.Account) *fakeSession {
		s := healthySession()
		if acc.Index == 1 {
			s.profileErr = provider.Rejected("nav", provider.CodeNotLoggedIn, "账号未登录")
		}
		return s
	}, config.TaskConfig{Tasks: "live_sign,add_coin"})

	results, err := e.RunAll(context.Background(), "SESSDATA=bad###SESSDATA=good")
	require.NoError(t, err)
	require.Len(t, results, 2)

	bad := results[0]
	assert.Nil(t, bad.Profile)
	require.Len(t, bad.Outcomes, 3)
	for _, o := range bad.Outcomes {
		assert.False(t, o.Success)
		assert.Equal(t, model.ReasonLoginFailed, o.Message)
	}
	assert.Equal(t, []string{"profile"}, p.sessions[0].calls)

	// 第二个账号不受影响
	assert.Equal(t, 0, results[1].Failed())
	assert.NotNil(t, results[1].Profile)
}

func TestTaskFailuresAreIndependent(t *testing.T) {
	e, _, bus := newEngine(func(model.Account) *fakeSession {
		s := healthySession()
		s.taskErr = map[string]error{"live": provider.Rejected("live_sign", 1011040, "今日已签到过")}
		return s
	}, config.TaskConfig{})

	results, err := e.RunAll(context.Background(), "SESSDATA=a")
	require.NoError(t, err)
	r := results[0]

	live, ok := r.Outcome(model.TaskLiveSign)
	require.True(t, ok)
	assert.False(t, live.Success)
	assert.Equal(t, "今日已签到过", live.Message)

	for _, task := range []model.TaskName{model.TaskShareVideo, model.TaskMangaSign, model.TaskAddCoin, model.TaskWatchVideo} {
		o, ok := r.Outcome(task)
		require.True(t, ok, task)
		assert.True(t, o.Success, task)
	}

	var logged bool
	for _, l := range bus.Logs() {
		if l.Level == "error" && l.Msg == "任务【直播签到】: ❌失败，原因: 今日已签到过" {
			logged = true
		}
	}
	assert.True(t, logged)
}

func TestProfileRefreshedAfterTasks(t *testing.T) {
	var sess *fakeSession
	e, _, _ := newEngine(func(model.Account) *fakeSession {
		sess = healthySession()
		return sess
	}, config.TaskConfig{Tasks: "add_coin", CoinAddNum: intPtr(2)})

	results, err := e.RunAll(context.Background(), "SESSDATA=a")
	require.NoError(t, err)
	assert.Equal(t, "profile", sess.calls[len(sess.calls)-1])
	assert.NotNil(t, results[0].Profile)
}

func TestProfileRefreshFailureKeepsInitialSnapshot(t *testing.T) {
	var sess *fakeSession
	e, _, bus := newEngine(func(model.Account) *fakeSession {
		sess = healthySession()
		sess.refreshErr = provider.Transport("nav", errors.New("connection reset"))
		return sess
	}, config.TaskConfig{Tasks: "live_sign"})

	results, err := e.RunAll(context.Background(), "SESSDATA=a")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.profileN)
	assert.Equal(t, &model.UserProfile{Name: "Alice", Level: 4, Exp: 100, Coins: 10}, results[0].Profile)
	assert.Equal(t, 0, results[0].Failed())

	var warned bool
	for _, l := range bus.Logs() {
		if l.Level == "warn" && l.Msg == "任务后刷新用户信息失败，使用任务前的信息" {
			warned = true
			assert.Equal(t, 1, l.Fields["account"])
		}
	}
	assert.True(t, warned)
}

func TestFallbackVideoWhenFeedEmpty(t *testing.T) {
	var sess *fakeSession
	e, _, _ := newEngine(func(model.Account) *fakeSession {
		sess = healthySession()
		sess.videoErr = errors.New("feed down")
		return sess
	}, config.TaskConfig{Tasks: "share_video"})

	results, err := e.RunAll(context.Background(), "SESSDATA=a")
	require.NoError(t, err)
	assert.Equal(t, []string{model.FallbackBVID, model.FallbackBVID}, sess.bvids)
	assert.Equal(t, 0, results[0].Failed())
}

func TestCoinTarget(t *testing.T) {
	assert.Equal(t, 3, CoinTarget(10, 3))
	assert.Equal(t, 3, CoinTarget(10, 3.5))
	assert.Equal(t, 5, CoinTarget(10, 100))
	assert.Equal(t, 2, CoinTarget(2, 100))
	assert.Equal(t, 0, CoinTarget(1, 0.5))
	assert.Equal(t, 0, CoinTarget(-1, 10))
}

func TestSpendCoinsStopsAtTarget(t *testing.T) {
	var sess *fakeSession
	e, _, _ := newEngine(func(model.Account) *fakeSession {
		sess = healthySession()
		sess.profile.Coins = 3
		return sess
	}, config.TaskConfig{Tasks: "add_coin", CoinAddNum: intPtr(10)})

	results, err := e.RunAll(context.Background(), "SESSDATA=a")
	require.NoError(t, err)
	assert.Equal(t, []string{"BV1", "BV2", "BV3"}, sess.coins)
	o, _ := results[0].Outcome(model.TaskAddCoin)
	assert.True(t, o.Success)
	assert.Equal(t, "尝试投币，最终成功 3 枚", o.Message)
}

func TestSpendCoinsZeroConfiguredSkipsFetch(t *testing.T) {
	var sess *fakeSession
	e, _, _ := newEngine(func(model.Account) *fakeSession {
		sess = healthySession()
		return sess
	}, config.TaskConfig{Tasks: "add_coin", CoinAddNum: intPtr(0)})

	results, err := e.RunAll(context.Background(), "SESSDATA=a")
	require.NoError(t, err)
	o, _ := results[0].Outcome(model.TaskAddCoin)
	assert.True(t, o.Success)
	assert.Empty(t, sess.coins)
	// 只有分享/观看选视频时拉一次动态
	assert.NotContains(t, sess.calls, "coin")
	assert.NotContains(t, sess.calls, "videos:ranking")
}

func TestSpendCoinsNoBalance(t *testing.T) {
	var sess *fakeSession
	e, _, _ := newEngine(func(model.Account) *fakeSession {
		sess = healthySession()
		sess.profile.Coins = 0.5
		return sess
	}, config.TaskConfig{Tasks: "add_coin", CoinVideoSource: "ranking"})

	results, err := e.RunAll(context.Background(), "SESSDATA=a")
	require.NoError(t, err)
	o, _ := results[0].Outcome(model.TaskAddCoin)
	assert.True(t, o.Success)
	assert.Equal(t, "硬币不足(0.5)，跳过", o.Message)
	assert.NotContains(t, sess.calls, "videos:ranking")
}

func TestSpendCoinsLimitMarkerStops(t *testing.T) {
	var sess *fakeSession
	e, _, _ := newEngine(func(model.Account) *fakeSession {
		sess = healthySession()
		sess.coinErrs = map[string]error{
			"BV1": provider.Rejected("coin_add", 34005, "超过投币上限啦~"),
			"BV3": provider.Rejected("coin_add", 34005, "今日投币已达到上限"),
		}
		return sess
	}, config.TaskConfig{Tasks: "add_coin", CoinAddNum: intPtr(5)})

	results, err := e.RunAll(context.Background(), "SESSDATA=a")
	require.NoError(t, err)
	assert.Equal(t, []string{"BV2"}, sess.coins)
	o, _ := results[0].Outcome(model.TaskAddCoin)
	assert.True(t, o.Success)
	assert.Equal(t, "尝试投币，最终成功 1 枚", o.Message)
}

func TestSpendCoinsTargetExceedsList(t *testing.T) {
	var sess *fakeSession
	e, _, _ := newEngine(func(model.Account) *fakeSession {
		sess = healthySession()
		sess.videos[model.VideoSourceDynamic] = []string{"BV1", "BV2"}
		return sess
	}, config.TaskConfig{Tasks: "add_coin", CoinAddNum: intPtr(5)})

	results, err := e.RunAll(context.Background(), "SESSDATA=a")
	require.NoError(t, err)
	assert.Equal(t, []string{"BV1", "BV2"}, sess.coins)
	o, _ := results[0].Outcome(model.TaskAddCoin)
	assert.True(t, o.Success)
	assert.Equal(t, "尝试投币，最终成功 2 枚", o.Message)
}

func TestSpendCoinsEmptyListFails(t *testing.T) {
	e, _, _ := newEngine(func(model.Account) *fakeSession {
		s := healthySession()
		s.videos[model.VideoSourceRanking] = nil
		return s
	}, config.TaskConfig{Tasks: "add_coin", CoinVideoSource: "ranking"})

	results, err := e.RunAll(context.Background(), "SESSDATA=a")
	require.NoError(t, err)
	o, _ := results[0].Outcome(model.TaskAddCoin)
	assert.False(t, o.Success)
	assert.Equal(t, "无法获取视频列表", o.Message)
}

func TestIsCoinLimitReached(t *testing.T) {
	assert.True(t, IsCoinLimitReached(provider.Rejected("coin_add", 34005, "今日投币已达到上限")))
	assert.False(t, IsCoinLimitReached(provider.Rejected("coin_add", 34005, "超过投币上限啦~")))
	assert.False(t, IsCoinLimitReached(provider.Transport("coin_add", errors.New("已达到"))))
	assert.False(t, IsCoinLimitReached(nil))
}

func TestUnknownTasksIgnored(t *testing.T) {
	e, _, bus := newEngine(func(model.Account) *fakeSession { return healthySession() }, config.TaskConfig{Tasks: "manga_sign,daily_lottery"})
	assert.Equal(t, []model.TaskName{model.TaskMangaSign}, e.Tasks())

	logs := bus.Logs()
	require.NotEmpty(t, logs)
	assert.Equal(t, "warn", logs[0].Level)
}

func TestCheckAll(t *testing.T) {
	e, _, _ := newEngine(func(acc model.Account) *fakeSession {
		s := healthySession()
		if acc.Index == 2 {
			s.profileErr = errors.New("expired")
		}
		return s
	}, config.TaskConfig{})

	st, err := e.CheckAll(context.Background(), "SESSDATA=a###SESSDATA=b")
	require.NoError(t, err)
	require.Len(t, st, 2)
	assert.True(t, st[0].LoggedIn)
	assert.False(t, st[1].LoggedIn)
	assert.False(t, AllLoggedIn(st))
	assert.True(t, AllLoggedIn(st[:1]))
}

func TestAllLoggedIn(t *testing.T) {
	assert.False(t, AllLoggedIn(nil))
	assert.True(t, AllLoggedIn([]LoginStatus{{Index: 1, LoggedIn: true}, {Index: 2, LoggedIn: true}}))
	assert.False(t, AllLoggedIn([]LoginStatus{{Index: 1, LoggedIn: true}, {Index: 2}}))
	// 网络错误也按检查失败处理
	assert.False(t, AllLoggedIn([]LoginStatus{{Index: 1, LoggedIn: false, Err: errors.New("timeout")}}))
}

func TestRunAllAgainstMockAPI(t *testing.T) {
	m := mockapi.New("BV1aa", "BV1bb", "BV1cc", "BV1dd")
	m.AddUser(mockapi.User{SESSDATA: "s1", CSRF: "c1", Name: "Alice", Mid: 1, Level: 3, Exp: 100, Coins: 2})
	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)

	bus := logbus.New(500)
	prov := standard.New(config.ProviderConfig{
		APIBaseURL:   srv.URL,
		LiveBaseURL:  srv.URL,
		MangaBaseURL: srv.URL,
		TimeoutMs:    2000,
	}, bus)
	e := New(Options{Provider: prov, Bus: bus, Task: config.TaskConfig{CoinAddNum: intPtr(5), CoinVideoSource: "dynamic"}})

	results, err := e.RunAll(context.Background(), "SESSDATA=s1; bili_jct=c1###SESSDATA=gone; bili_jct=x")
	require.NoError(t, err)
	require.Len(t, results, 2)

	ok := results[0]
	assert.Equal(t, 0, ok.Failed())
	coin, _ := ok.Outcome(model.TaskAddCoin)
	assert.Equal(t, "尝试投币，最终成功 2 枚", coin.Message)
	require.NotNil(t, ok.Profile)
	assert.Equal(t, float64(0), ok.Profile.Coins)
	assert.Equal(t, 100+5+20, ok.Profile.Exp)

	gone := results[1]
	assert.Nil(t, gone.Profile)
	assert.Equal(t, 5, gone.Failed())
	// 登录失败的账号不会调用任何任务接口
	assert.Equal(t, 1, m.Calls("/xlive/web-ucenter/v1/sign/DoSign"))
}
