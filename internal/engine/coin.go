package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"bili_checkin/internal/model"
	"bili_checkin/internal/provider"
	"bili_checkin/internal/report"
)

// MaxDailyCoins 每日投币获得经验的上限。
const MaxDailyCoins = 5

// CoinLimitMarker is matched against the remote message of a rejected donation. The
// platform has no structured "daily limit reached" code, so this substring is the only
// signal; it breaks if upstream rewords the message.
const CoinLimitMarker = "已达到"

// CoinTarget returns min(desired, floor(balance), MaxDailyCoins), never negative.
func CoinTarget(desired int, balance float64) int {
	target := desired
	if b := int(math.Floor(balance)); b < target {
		target = b
	}
	if target > MaxDailyCoins {
		target = MaxDailyCoins
	}
	if target < 0 {
		return 0
	}
	return target
}

func IsCoinLimitReached(err error) bool {
	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != provider.KindRejected {
		return false
	}
	return strings.Contains(apiErr.Message, CoinLimitMarker)
}

// spendCoins donates one coin per candidate video until the target is met, the list is
// exhausted or the platform reports the daily limit. Only an empty candidate list fails.
func (e *Engine) spendCoins(ctx context.Context, sess provider.Session, profile *model.UserProfile) model.TaskOutcome {
	out := model.TaskOutcome{Task: model.TaskAddCoin}
	account := sess.Account().Index

	desired := e.task.CoinsToAdd()
	if desired <= 0 {
		out.Success = true
		out.Message = "配置为0，跳过"
		return out
	}
	var balance float64
	if profile != nil {
		balance = profile.Coins
	}
	target := CoinTarget(desired, balance)
	if target <= 0 {
		out.Success = true
		out.Message = fmt.Sprintf("硬币不足(%s)，跳过", report.FormatCoins(balance))
		return out
	}

	source := model.VideoSource(e.task.CoinVideoSource)
	if source != model.VideoSourceRanking {
		source = model.VideoSourceDynamic
	}
	videos, err := sess.CandidateVideos(ctx, source)
	if err != nil {
		e.log("warn", "获取投币视频列表失败", map[string]any{
			"account": account,
			"source":  string(source),
			"error":   err.Error(),
		})
	}
	if len(videos) == 0 {
		out.Message = "无法获取视频列表"
		return out
	}
	e.log("info", "获取投币目标视频", map[string]any{
		"account": account,
		"source":  string(source),
		"count":   len(videos),
		"target":  target,
	})

	added := 0
	for _, bvid := range videos {
		if added >= target {
			break
		}
		err := sess.AddCoin(ctx, bvid, 1, e.task.SelectLike())
		if err == nil {
			added++
			e.log("info", fmt.Sprintf("为视频 %s 投币成功。", bvid), map[string]any{"account": account})
			continue
		}
		if IsCoinLimitReached(err) {
			e.log("warn", "今日投币上限已满，终止投币。", map[string]any{"account": account})
			break
		}
		e.log("warn", fmt.Sprintf("为视频 %s 投币失败: %s", bvid, err.Error()), map[string]any{
			"account": account,
			"kind":    provider.KindOf(err).String(),
		})
	}

	out.Success = true
	out.Message = fmt.Sprintf("尝试投币，最终成功 %d 枚", added)
	return out
}
