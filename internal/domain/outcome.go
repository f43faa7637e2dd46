package domain

import "time"

// OutcomeKind tick 结果类型
type OutcomeKind string

const (
	OutcomeNoOp    OutcomeKind = "no_op"   // 没有候选通过阈值（最常见）
	OutcomeSkipped OutcomeKind = "skipped" // 价格不可用，跳过本 tick
	OutcomeJumped  OutcomeKind = "jumped"  // 换仓成功
	OutcomeBridged OutcomeKind = "bridged" // 粉尘回退：已换成桥接资产，暂无目标
	OutcomeRetry   OutcomeKind = "retry"   // 交易失败，下个 tick 重试
)

// Outcome 一次 Scout 的结果
type Outcome struct {
	Kind         OutcomeKind
	From         Asset
	To           Asset // jumped/bridged/retry(partial) 时有效
	Reason       string
	Decisions    []Decision
	Winner       *Decision
	Fills        []Fill
	BridgeScout  bool // 是否由粉尘回退路径产生
	HoldingMoved bool // 本 tick 是否修改了当前持仓
}

// Snapshot 只读状态快照（供状态页等读取，最终一致）
type Snapshot struct {
	CurrentAsset Asset
	HasAsset     bool
	LastTickAt   time.Time
	LastDecision *Decision
	LastOutcome  OutcomeKind
	LastError    string
}
