// Package conflict defines the coordination conflict domain entity.
package conflict

import (
	"sort"
	"strings"
	"time"
)

// Type classifies a detected coordination conflict.
type Type string

const (
	// TypeResource: an agent holds more than one urgent task at once.
	TypeResource Type = "resource"
	// TypePriority: two active tasks of different priority rank share an agent.
	TypePriority Type = "priority"
	// TypeDecision: agents disagree on a coordination decision.
	TypeDecision Type = "decision"
	// TypeCapability: an assignment no longer matches agent capabilities.
	TypeCapability Type = "capability"
	// TypeTiming: a task cannot finish before its deadline.
	TypeTiming Type = "timing"
)

// Strategy identifies how a conflict is (or should be) resolved.
type Strategy string

const (
	StrategyReassign       Strategy = "reassign_agents"
	StrategyReprioritize   Strategy = "reprioritize"
	StrategyExtendDeadline Strategy = "extend_deadline"
	StrategySplit          Strategy = "split_task"
)

// StrategyFor maps a conflict type to its default resolution strategy.
func StrategyFor(t Type) Strategy {
	switch t {
	case TypeResource, TypeCapability:
		return StrategyReassign
	case TypePriority, TypeDecision:
		return StrategyReprioritize
	case TypeTiming:
		return StrategyExtendDeadline
	}
	return StrategyReassign
}

// Conflict records a detected inconsistency between concurrently scheduled
// tasks and agents. Created by the detector, mutated by the resolver.
type Conflict struct {
	ID         string     `json:"id"`
	Type       Type       `json:"type"`
	Signature  string     `json:"signature"`
	Agents     []string   `json:"agents"`
	TaskIDs    []string   `json:"task_ids"`
	Severity   float64    `json:"severity"` // [0,1]
	Resolved   bool       `json:"resolved"`
	Strategy   Strategy   `json:"strategy,omitempty"`
	DetectedAt time.Time  `json:"detected_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Signature produces a deterministic identity for a conflict so repeated
// detector passes do not duplicate an already-active conflict.
func Signature(t Type, taskIDs []string) string {
	ids := append([]string(nil), taskIDs...)
	sort.Strings(ids)
	return string(t) + ":" + strings.Join(ids, ",")
}
