package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"bili_checkin/internal/config"
)

// pushPlusOK is the success code in the PushPlus response body.
const pushPlusOK = 200

type PushPlus struct {
	token    string
	endpoint string
	client   *resty.Client
}

func NewPushPlus(cfg config.PushPlusConfig) *PushPlus {
	return &PushPlus{
		token:    cfg.Token,
		endpoint: cfg.Endpoint,
		client: resty.New().
			SetTimeout(15 * time.Second).
			SetRetryCount(0),
	}
}

func (p *PushPlus) Name() string { return "PushPlus" }

type pushPlusReq struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
}

type pushPlusResp struct {
	Code *int   `json:"code"`
	Msg  string `json:"msg"`
}

func (p *PushPlus) Send(ctx context.Context, msg Message) error {
	var resp pushPlusResp
	r, err := p.client.R().
		SetContext(ctx).
		SetBody(pushPlusReq{
			Token:    p.token,
			Title:    msg.Title,
			Content:  msg.Content,
			Template: "markdown",
		}).
		SetResult(&resp).
		ForceContentType("application/json").
		Post(p.endpoint)
	if err != nil {
		return err
	}
	if resp.Code == nil {
		return fmt.Errorf("pushplus: unexpected response (HTTP %d)", r.StatusCode())
	}
	if *resp.Code != pushPlusOK {
		if resp.Msg == "" {
			return errors.New("未知错误")
		}
		return errors.New(resp.Msg)
	}
	return nil
}
