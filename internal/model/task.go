package model

import "strings"

type TaskName string

const (
	TaskShareVideo TaskName = "share_video"
	TaskLiveSign   TaskName = "live_sign"
	TaskMangaSign  TaskName = "manga_sign"
	TaskAddCoin    TaskName = "add_coin"
	TaskWatchVideo TaskName = "watch_video"
)

// ConfigurableTasks 可配置的任务，顺序即执行顺序。观看视频总会执行，不在其中。
var ConfigurableTasks = []TaskName{TaskShareVideo, TaskLiveSign, TaskMangaSign, TaskAddCoin}

// ReasonLoginFailed is recorded on every task of an account whose profile could not be read.
const ReasonLoginFailed = "登录失败：Cookie失效或网络问题"

func (t TaskName) Label() string {
	switch t {
	case TaskShareVideo:
		return "分享视频"
	case TaskLiveSign:
		return "直播签到"
	case TaskMangaSign:
		return "漫画签到"
	case TaskAddCoin:
		return "投币任务"
	case TaskWatchVideo:
		return "观看视频"
	default:
		return string(t)
	}
}

// ParseTaskList parses a comma separated task list. The result follows the fixed
// execution order, not the input order; unrecognized names are returned separately.
// An input with no recognized names yields all configurable tasks.
func ParseTaskList(s string) (tasks []TaskName, unknown []string) {
	want := make(map[TaskName]bool)
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		known := false
		for _, t := range ConfigurableTasks {
			if string(t) == name {
				want[t] = true
				known = true
				break
			}
		}
		if !known {
			unknown = append(unknown, name)
		}
	}
	if len(want) == 0 {
		return append([]TaskName(nil), ConfigurableTasks...), unknown
	}
	for _, t := range ConfigurableTasks {
		if want[t] {
			tasks = append(tasks, t)
		}
	}
	return tasks, unknown
}

type TaskOutcome struct {
	Task    TaskName `json:"task"`
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
}

type AccountResult struct {
	Index    int           `json:"index"`
	Outcomes []TaskOutcome `json:"outcomes"`
	Profile  *UserProfile  `json:"profile,omitempty"`
	// RunID ties the result to the log lines of the run that produced it.
	RunID string `json:"runId,omitempty"`
}

func (r AccountResult) Outcome(task TaskName) (TaskOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Task == task {
			return o, true
		}
	}
	return TaskOutcome{}, false
}

func (r AccountResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Success {
			n++
		}
	}
	return n
}
