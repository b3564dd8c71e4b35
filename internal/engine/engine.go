package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"bili_checkin/internal/config"
	"bili_checkin/internal/logbus"
	"bili_checkin/internal/model"
	"bili_checkin/internal/provider"
	"bili_checkin/internal/report"
)

var ErrNoAccounts = errors.New("no account cookies configured")

type Options struct {
	Provider provider.Provider
	Bus      *logbus.Bus
	Task     config.TaskConfig
}

type Engine struct {
	provider provider.Provider
	bus      *logbus.Bus
	task     config.TaskConfig
	tasks    []model.TaskName
}

func New(opts Options) *Engine {
	tasks, unknown := model.ParseTaskList(opts.Task.Tasks)
	e := &Engine{
		provider: opts.Provider,
		bus:      opts.Bus,
		task:     opts.Task,
		tasks:    tasks,
	}
	if len(unknown) > 0 {
		e.log("warn", "忽略未知的任务配置", map[string]any{"unknown": unknown})
	}
	return e
}

// Tasks returns the configured tasks in execution order; watch_video is implied.
func (e *Engine) Tasks() []model.TaskName {
	return append([]model.TaskName(nil), e.tasks...)
}

// RunAll runs every account in the ### separated cookie blob, one after another.
// The returned slice has one result per non-blank segment, in input order.
func (e *Engine) RunAll(ctx context.Context, cookies string) ([]model.AccountResult, error) {
	segments := model.SplitCookies(cookies)
	if len(segments) == 0 {
		return nil, ErrNoAccounts
	}

	runID := uuid.NewString()
	e.log("info", fmt.Sprintf("检测到 %d 个账号，开始执行任务...", len(segments)), map[string]any{
		"run":      runID,
		"provider": e.provider.Name(),
	})

	results := make([]model.AccountResult, 0, len(segments))
	for i, cookie := range segments {
		acc := model.NewAccount(i+1, cookie)
		e.log("info", fmt.Sprintf("--- 开始为账号 %d 执行任务 ---", acc.Index), map[string]any{"run": runID})

		sess := e.provider.Open(acc)
		res := e.RunAccount(ctx, sess)
		res.RunID = runID
		if res.Profile != nil {
			if final, err := sess.UserProfile(ctx); err == nil {
				res.Profile = final
			} else {
				e.log("warn", "任务后刷新用户信息失败，使用任务前的信息", map[string]any{
					"account": acc.Index,
					"error":   err.Error(),
				})
			}
		}
		e.logSummary(runID, res)
		results = append(results, res)
	}

	failed := 0
	for _, r := range results {
		failed += r.Failed()
	}
	e.log("info", "全部账号执行完毕", map[string]any{
		"run":      runID,
		"accounts": len(results),
		"failed":   failed,
	})
	return results, nil
}

// RunAccount executes the configured tasks for one session. A failed profile fetch
// marks every task failed without calling any task endpoint; otherwise each task runs
// regardless of earlier failures.
func (e *Engine) RunAccount(ctx context.Context, sess provider.Session) model.AccountResult {
	acc := sess.Account()
	res := model.AccountResult{Index: acc.Index}

	profile, err := sess.UserProfile(ctx)
	if err != nil {
		e.log("error", "获取用户信息失败，跳过该账号", map[string]any{
			"account": acc.Index,
			"kind":    provider.KindOf(err).String(),
			"error":   err.Error(),
		})
		res.Outcomes = e.loginFailedOutcomes()
		return res
	}
	res.Profile = profile
	e.log("info", "账号名称: "+report.Mask(profile.Name), map[string]any{"account": acc.Index})

	bvid := e.pickVideo(ctx, sess)
	for _, t := range e.tasks {
		res.Outcomes = append(res.Outcomes, e.runTask(ctx, sess, t, bvid, profile))
	}
	res.Outcomes = append(res.Outcomes, e.runTask(ctx, sess, model.TaskWatchVideo, bvid, profile))
	return res
}

func (e *Engine) loginFailedOutcomes() []model.TaskOutcome {
	out := make([]model.TaskOutcome, 0, len(e.tasks)+1)
	for _, t := range e.tasks {
		out = append(out, model.TaskOutcome{Task: t, Message: model.ReasonLoginFailed})
	}
	return append(out, model.TaskOutcome{Task: model.TaskWatchVideo, Message: model.ReasonLoginFailed})
}

// pickVideo 分享/观看用动态里的第一个视频，拿不到就用备用 BV 号。
func (e *Engine) pickVideo(ctx context.Context, sess provider.Session) string {
	videos, err := sess.CandidateVideos(ctx, model.VideoSourceDynamic)
	if err != nil {
		e.log("warn", "获取动态视频失败，使用备用视频", map[string]any{
			"account": sess.Account().Index,
			"error":   err.Error(),
		})
	}
	if len(videos) == 0 {
		return model.FallbackBVID
	}
	return videos[0]
}

func (e *Engine) runTask(ctx context.Context, sess provider.Session, task model.TaskName, bvid string, profile *model.UserProfile) model.TaskOutcome {
	var out model.TaskOutcome
	switch task {
	case model.TaskShareVideo:
		out = outcomeOf(task, sess.ShareVideo(ctx, bvid))
	case model.TaskLiveSign:
		out = outcomeOf(task, sess.LiveSign(ctx))
	case model.TaskMangaSign:
		out = outcomeOf(task, sess.MangaSign(ctx))
	case model.TaskAddCoin:
		out = e.spendCoins(ctx, sess, profile)
	case model.TaskWatchVideo:
		out = outcomeOf(task, sess.WatchVideo(ctx, bvid))
	default:
		out = model.TaskOutcome{Task: task, Message: "未知任务"}
	}

	fields := map[string]any{"account": sess.Account().Index, "task": string(task)}
	if out.Success {
		e.log("info", fmt.Sprintf("任务【%s】: ✅成功", task.Label()), fields)
	} else {
		fields["reason"] = out.Message
		e.log("error", fmt.Sprintf("任务【%s】: ❌失败，原因: %s", task.Label(), out.Message), fields)
	}
	return out
}

func outcomeOf(task model.TaskName, err error) model.TaskOutcome {
	if err != nil {
		return model.TaskOutcome{Task: task, Message: err.Error()}
	}
	return model.TaskOutcome{Task: task, Success: true}
}

func (e *Engine) logSummary(runID string, res model.AccountResult) {
	fields := map[string]any{"run": runID, "account": res.Index}
	e.log("info", "==================== 任务完成情况 ====================", fields)
	for _, o := range res.Outcomes {
		mark := "✅"
		if !o.Success {
			mark = "❌"
		}
		line := fmt.Sprintf("%s %s", mark, o.Task.Label())
		if o.Message != "" {
			line += " - " + o.Message
		}
		e.log("info", line, fields)
	}
	if p := res.Profile; p != nil {
		e.log("info", "用户名称: "+report.Mask(p.Name), fields)
		e.log("info", "用户等级: Lv."+strconv.Itoa(p.Level), fields)
		e.log("info", "当前经验: "+strconv.Itoa(p.Exp), fields)
		e.log("info", "拥有硬币: "+report.FormatCoins(p.Coins), fields)
	}
}

func (e *Engine) log(level, msg string, fields map[string]any) {
	if e.bus != nil {
		e.bus.Log(level, msg, fields)
	}
}
