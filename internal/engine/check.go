package engine

import (
	"context"

	"bili_checkin/internal/model"
)

type LoginStatus struct {
	Index    int
	LoggedIn bool
	Err      error
}

// AllLoggedIn reports whether every account passed the login check.
func AllLoggedIn(statuses []LoginStatus) bool {
	if len(statuses) == 0 {
		return false
	}
	for _, st := range statuses {
		if st.Err != nil || !st.LoggedIn {
			return false
		}
	}
	return true
}

// CheckAll only verifies that each cookie is still logged in; no task endpoint is called.
func (e *Engine) CheckAll(ctx context.Context, cookies string) ([]LoginStatus, error) {
	segments := model.SplitCookies(cookies)
	if len(segments) == 0 {
		return nil, ErrNoAccounts
	}
	out := make([]LoginStatus, 0, len(segments))
	for i, cookie := range segments {
		acc := model.NewAccount(i+1, cookie)
		st := LoginStatus{Index: acc.Index}
		st.LoggedIn, st.Err = e.provider.Open(acc).CheckLogin(ctx)

		fields := map[string]any{"account": acc.Index, "csrf": acc.CSRF != ""}
		switch {
		case st.Err != nil:
			fields["error"] = st.Err.Error()
			e.log("error", "登录状态检查失败", fields)
		case !st.LoggedIn:
			e.log("error", "账号未登录或Cookie失效", fields)
		default:
			e.log("info", "账号登录有效", fields)
		}
		out = append(out, st)
	}
	return out, nil
}
