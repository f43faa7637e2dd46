package retry

import (
	"context"
	"errors"
	"strings"

	"github.com/betbot/coinjump/internal/domain"
)

type Class string

const (
	ClassFatal     Class = "fatal"
	ClassTransient Class = "transient"
)

type Decision struct {
	Class  Class
	Reason string
}

func (d Decision) IsTransient() bool {
	return d.Class == ClassTransient
}

// transientKeywords 网络/连接类错误特征（不区分大小写的子串匹配）
var transientKeywords = []string{
	"proxy",
	"connectionrefused",
	"connection refused",
	"newconnectionerror",
	"timeout",
	"connectionerror",
	"econnrefused",
	"read timed out",
	"connect timeout",
	"max retries exceeded",
	"remote disconnected",
	"remotedisconnected",
	"connection reset",
}

// fatalMarkers 明确的致命错误，即使消息里出现网络关键字也不会被吞掉
var fatalMarkers = []error{
	domain.ErrOrderUnresolved,
	domain.ErrUnsupportedStartAsset,
	context.Canceled,
}

// Keywords 返回关键字列表副本
func Keywords() []string {
	out := make([]string, len(transientKeywords))
	copy(out, transientKeywords)
	return out
}

func Classify(err error) Decision {
	if err == nil {
		return Decision{Class: ClassFatal, Reason: "nil_error"}
	}
	for _, marker := range fatalMarkers {
		if errors.Is(err, marker) {
			return Decision{Class: ClassFatal, Reason: "marker:" + marker.Error()}
		}
	}

	lower := strings.ToLower(err.Error())
	for _, kw := range transientKeywords {
		if strings.Contains(lower, kw) {
			return Decision{Class: ClassTransient, Reason: "keyword:" + kw}
		}
	}
	return Decision{Class: ClassFatal, Reason: "unclassified"}
}
