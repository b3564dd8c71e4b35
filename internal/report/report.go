package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"bili_checkin/internal/model"
)

// Title 推送标题。
const Title = "Bilibili 任务通知"

const timeLayout = "2006-01-02 15:04:05"

// Mask hides the middle of a display name: "" -> "*", up to two runes -> first rune
// plus "*", longer -> first rune, one "*" per hidden rune, last rune.
func Mask(s string) string {
	r := []rune(s)
	switch {
	case len(r) == 0:
		return "*"
	case len(r) <= 2:
		return string(r[0]) + "*"
	default:
		return string(r[0]) + strings.Repeat("*", len(r)-2) + string(r[len(r)-1])
	}
}

// FormatCoins 硬币可能是 0.5 的倍数，去掉多余的小数位。
func FormatCoins(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Format renders the markdown report. Output depends only on results and now.
func Format(results []model.AccountResult, now time.Time) string {
	var b strings.Builder

	failed := 0
	for _, r := range results {
		failed += r.Failed()
	}
	b.WriteString("### Bilibili 每日任务报告\n\n")
	fmt.Fprintf(&b, "共 %d 个账号，%d 项任务失败\n", len(results), failed)

	for _, r := range results {
		b.WriteString("\n")
		writeAccount(&b, r)
	}

	b.WriteString("\n")
	if len(results) > 0 && results[0].RunID != "" {
		fmt.Fprintf(&b, "> 运行编号: %s\n\n", results[0].RunID)
	}
	fmt.Fprintf(&b, "> 报告时间: %s\n", now.Format(timeLayout))
	return b.String()
}

func writeAccount(b *strings.Builder, r model.AccountResult) {
	name := "登录失败"
	if r.Profile != nil {
		name = Mask(r.Profile.Name)
	}
	fmt.Fprintf(b, "#### 账号 %d：%s\n", r.Index, name)
	if r.Profile != nil {
		fmt.Fprintf(b, "- **用户等级**: Lv.%d\n", r.Profile.Level)
		fmt.Fprintf(b, "- **当前经验**: %d\n", r.Profile.Exp)
	}
	for _, o := range r.Outcomes {
		switch {
		case o.Success && o.Message != "":
			fmt.Fprintf(b, "- **%s**: ✅ %s\n", o.Task.Label(), o.Message)
		case o.Success:
			fmt.Fprintf(b, "- **%s**: ✅\n", o.Task.Label())
		case o.Message != "":
			fmt.Fprintf(b, "- **%s**: ❌ 原因: %s\n", o.Task.Label(), o.Message)
		default:
			fmt.Fprintf(b, "- **%s**: ❌\n", o.Task.Label())
		}
	}
	if r.Profile != nil {
		fmt.Fprintf(b, "- **拥有硬币**: %s\n", FormatCoins(r.Profile.Coins))
	}
}
