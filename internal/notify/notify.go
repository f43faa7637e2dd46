// Package notify 运营通知：webhook 推送或仅写日志
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "notify")

type message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Time  int64  `json:"ts"`
}

// Webhook POST JSON {title, body, ts} 到配置的 URL
type Webhook struct {
	url    string
	client *resty.Client
	now    func() time.Time
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "coinjump")
	return &Webhook{url: strings.TrimSpace(url), client: client, now: time.Now}
}

func (w *Webhook) Notify(ctx context.Context, title, body string) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(message{Title: title, Body: body, Time: w.now().UnixMilli()}).
		Post(w.url)
	if err != nil {
		return errors.Wrap(err, "post webhook")
	}
	if !resp.IsSuccess() {
		return errors.Errorf("webhook non-2xx: %s %s", resp.Status(), strings.TrimSpace(string(resp.Body())))
	}
	return nil
}

// LogNotifier 未配置 webhook 时使用
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, title, body string) error {
	log.WithField("title", title).Info(body)
	return nil
}
