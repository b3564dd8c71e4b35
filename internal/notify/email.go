package notify

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/mail"
	"strings"

	"gopkg.in/gomail.v2"

	"bili_checkin/internal/config"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Email sends the report to the configured mailbox from itself, using the mailbox's
// SMTP server and auth code.
type Email struct {
	address  string
	authCode string
	dial     func(host string, port int, user, pass string, ssl bool) mailSender
}

func NewEmail(cfg config.EmailConfig) *Email {
	return &Email{
		address:  strings.TrimSpace(cfg.Address),
		authCode: strings.TrimSpace(cfg.AuthCode),
		dial: func(host string, port int, user, pass string, ssl bool) mailSender {
			d := gomail.NewDialer(host, port, user, pass)
			d.SSL = ssl
			return d
		},
	}
}

func (n *Email) Name() string { return "邮件" }

func (n *Email) Send(ctx context.Context, msg Message) error {
	if err := validateEmailSettings(n.address, n.authCode); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	host, port, useSSL, err := smtpConfigForEmail(n.address)
	if err != nil {
		return err
	}
	htmlBody, err := buildEmailBody(msg)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(n.address, "B站签到助手"))
	m.SetHeader("To", n.address)
	m.SetHeader("Subject", msg.Title)
	m.SetBody("text/plain", msg.Content)
	m.AddAlternative("text/html", htmlBody)

	return n.dial(host, port, n.address, n.authCode, useSSL).DialAndSend(m)
}

func validateEmailSettings(address, authCode string) error {
	if address == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(address); err != nil {
		return errors.New("invalid email")
	}
	if authCode == "" {
		return errors.New("authCode is required")
	}
	return nil
}

func smtpConfigForEmail(email string) (host string, port int, useSSL bool, err error) {
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
		return "", 0, false, errors.New("invalid email format")
	}
	domain := strings.ToLower(strings.TrimSpace(parts[1]))

	switch {
	case domain == "qq.com" || strings.HasSuffix(domain, ".qq.com") || domain == "foxmail.com" || strings.HasSuffix(domain, ".foxmail.com"):
		return "smtp.qq.com", 465, true, nil
	case domain == "163.com" || strings.HasSuffix(domain, ".163.com") ||
		domain == "126.com" || strings.HasSuffix(domain, ".126.com") ||
		domain == "yeah.net" || strings.HasSuffix(domain, ".yeah.net"):
		return "smtp.163.com", 465, true, nil
	case domain == "gmail.com" || strings.HasSuffix(domain, ".gmail.com"):
		return "smtp.gmail.com", 587, false, nil
	case domain == "outlook.com" || strings.HasSuffix(domain, ".outlook.com") ||
		domain == "hotmail.com" || strings.HasSuffix(domain, ".hotmail.com") ||
		domain == "live.com" || strings.HasSuffix(domain, ".live.com"):
		return "smtp.office365.com", 587, false, nil
	case domain == "sina.com" || strings.HasSuffix(domain, ".sina.com"):
		return "smtp.sina.com", 465, true, nil
	default:
		return "smtp." + domain, 465, true, nil
	}
}

var emailHTMLTpl = template.Must(template.New("email").Parse(`
<!doctype html>
<html lang="zh-CN">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width" />
    <title>{{ .Title }}</title>
  </head>
  <body style="margin:0;padding:0;background:#f6f8fb;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,'Helvetica Neue',Arial,'PingFang SC','Hiragino Sans GB','Microsoft YaHei',sans-serif;">
    <div style="max-width:640px;margin:0 auto;padding:24px;">
      <div style="background:#ffffff;border:1px solid #e6e8ef;border-radius:14px;overflow:hidden;">
        <div style="padding:18px 22px;background:linear-gradient(135deg,#fb7299,#00a1d6);color:#ffffff;">
          <div style="font-size:16px;font-weight:700;letter-spacing:.2px;">{{ .Title }}</div>
        </div>
        <div style="padding:22px;">
          {{ range .Lines }}
            {{ if eq .Kind "h3" }}
            <div style="font-size:15px;font-weight:700;color:#111827;margin:4px 0 10px;">{{ .Text }}</div>
            {{ else if eq .Kind "h4" }}
            <div style="font-size:14px;font-weight:700;color:#111827;margin:16px 0 6px;padding-top:10px;border-top:1px solid #eef0f6;">{{ .Text }}</div>
            {{ else if eq .Kind "item" }}
            <div style="font-size:13px;color:#111827;line-height:1.8;padding-left:8px;"><span style="color:#6b7280;">{{ .Key }}</span>{{ if .Key }}：{{ end }}{{ .Text }}</div>
            {{ else if eq .Kind "quote" }}
            <div style="margin-top:14px;color:#9ca3af;font-size:12px;line-height:1.6;">{{ .Text }}</div>
            {{ else }}
            <div style="font-size:13px;color:#374151;line-height:1.8;">{{ .Text }}</div>
            {{ end }}
          {{ end }}
        </div>
      </div>
      <div style="text-align:center;margin-top:12px;color:#9ca3af;font-size:12px;">
        此邮件由系统自动发送
      </div>
    </div>
  </body>
</html>
`))

type emailLine struct {
	Kind string
	Key  string
	Text string
}

// markdownLines 只处理报告里用到的几种 markdown 写法。
func markdownLines(content string) []emailLine {
	var out []emailLine
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#### "):
			out = append(out, emailLine{Kind: "h4", Text: stripEmphasis(line[5:])})
		case strings.HasPrefix(line, "### "):
			out = append(out, emailLine{Kind: "h3", Text: stripEmphasis(line[4:])})
		case strings.HasPrefix(line, "> "):
			out = append(out, emailLine{Kind: "quote", Text: stripEmphasis(line[2:])})
		case strings.HasPrefix(line, "- "):
			body := line[2:]
			key, val := "", body
			if k, v, ok := strings.Cut(body, ":"); ok && strings.HasPrefix(k, "**") {
				key, val = k, v
			}
			out = append(out, emailLine{Kind: "item", Key: stripEmphasis(key), Text: stripEmphasis(val)})
		default:
			out = append(out, emailLine{Kind: "text", Text: stripEmphasis(line)})
		}
	}
	return out
}

func stripEmphasis(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "**", ""))
}

func buildEmailBody(msg Message) (string, error) {
	title := strings.TrimSpace(msg.Title)
	if title == "" {
		title = "通知"
	}
	var buf bytes.Buffer
	if err := emailHTMLTpl.Execute(&buf, map[string]any{
		"Title": title,
		"Lines": markdownLines(msg.Content),
	}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
