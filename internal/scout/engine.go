package scout

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/betbot/coinjump/internal/domain"
	"github.com/betbot/coinjump/internal/metrics"
	"github.com/betbot/coinjump/internal/retry"
)

// Engine 每个 tick 的唯一入口：按需初始化 → 侦察 → 错误分类。
// Tick 由外部调度器串行调用，Snapshot 可被任意 goroutine 并发读取。
type Engine struct {
	deps        *Deps
	initializer *Initializer
	scout       *RatioScout

	ready    atomic.Bool
	snapshot atomic.Pointer[domain.Snapshot]
}

func NewEngine(deps *Deps, initializer *Initializer) (*Engine, error) {
	rs, err := NewRatioScout(deps)
	if err != nil {
		return nil, err
	}
	if initializer == nil {
		return nil, errors.New("scout: initializer is required")
	}
	e := &Engine{deps: deps, initializer: initializer, scout: rs}
	e.snapshot.Store(&domain.Snapshot{})
	return e, nil
}

// Initialize 在调度开始前确定当前持仓（阻塞，资金不足时按冷却重试）
func (e *Engine) Initialize(ctx context.Context) error {
	if err := e.initializer.Initialize(ctx); err != nil {
		return err
	}
	e.ready.Store(true)
	e.refreshHolding(ctx)
	return nil
}

// Tick 执行一次侦察。瞬时网络错误被吞掉（Warn）并返回 nil，其余错误原样返回。
func (e *Engine) Tick(ctx context.Context) error {
	metrics.Ticks.Add(1)
	now := e.deps.Now()

	if !e.ready.Load() {
		if err := e.Initialize(ctx); err != nil {
			return e.fail(now, err)
		}
	}

	out, err := e.scout.Scout(ctx)
	if err != nil {
		return e.fail(now, err)
	}

	switch out.Kind {
	case domain.OutcomeNoOp:
		metrics.NoOpTicks.Add(1)
	case domain.OutcomeSkipped:
		metrics.SkippedTicks.Add(1)
	case domain.OutcomeJumped, domain.OutcomeBridged:
		log.Infof("tick outcome=%s %s -> %s", out.Kind, out.From, out.To)
	case domain.OutcomeRetry:
		// 失败详情已在换仓处按换仓对限频输出
		log.Debugf("tick outcome=retry %s -> %s: %s", out.From, out.To, out.Reason)
	}
	e.publish(now, out, "")
	if out.HoldingMoved {
		e.refreshHolding(ctx)
	}
	return nil
}

func (e *Engine) fail(now time.Time, err error) error {
	defer e.refreshHolding(context.Background())
	d := retry.Classify(err)
	if d.IsTransient() {
		metrics.TransientErrors.Add(1)
		log.WithField("reason", d.Reason).Warnf("transient error, retrying next tick: %v", err)
		e.publish(now, domain.Outcome{Kind: domain.OutcomeRetry}, err.Error())
		return nil
	}
	log.WithField("reason", d.Reason).Errorf("fatal error: %v", err)
	e.publish(now, domain.Outcome{}, err.Error())
	return err
}

func (e *Engine) publish(now time.Time, out domain.Outcome, errMsg string) {
	prev := e.snapshot.Load()
	next := *prev
	next.LastTickAt = now
	next.LastOutcome = out.Kind
	next.LastError = errMsg
	if out.Winner != nil {
		w := *out.Winner
		next.LastDecision = &w
	} else if best, ok := bestDecision(out.Decisions); ok {
		next.LastDecision = &best
	}
	e.snapshot.Store(&next)
}

// refreshHolding 从状态存储同步快照中的当前持仓
func (e *Engine) refreshHolding(ctx context.Context) {
	held, ok, err := e.deps.State.CurrentCoin(ctx)
	if err != nil || !ok {
		return
	}
	prev := e.snapshot.Load()
	next := *prev
	next.CurrentAsset = e.deps.resolve(held)
	next.HasAsset = true
	e.snapshot.Store(&next)
}

// Snapshot 非阻塞只读快照（最终一致）
func (e *Engine) Snapshot() domain.Snapshot {
	return *e.snapshot.Load()
}

// bestDecision 未通过阈值时取 Improvement 最大的判定，便于观察距离阈值多远
func bestDecision(decisions []domain.Decision) (domain.Decision, bool) {
	var (
		best  domain.Decision
		found bool
	)
	for _, d := range decisions {
		if !found || d.Improvement.GreaterThan(best.Improvement) {
			best, found = d, true
		}
	}
	return best, found
}
