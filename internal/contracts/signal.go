package contracts

import (
	"fmt"
	"time"
)

// SignalState is the lifecycle state of a released signal. Transitions are
// one-way: ACTIVE moves to exactly one terminal state and never back.
type SignalState string

const (
	StateActive SignalState = "ACTIVE"

	// Terminal states.
	StateWin               SignalState = "WIN"
	StateLoss              SignalState = "LOSS"
	StateTimeoutValid      SignalState = "TIMEOUT_VALID"      // moved favorably, needed more time
	StateTimeoutLowVol     SignalState = "TIMEOUT_LOWVOL"     // barely moved at all
	StateTimeoutStagnation SignalState = "TIMEOUT_STAGNATION" // oscillated without net progress
	StateTimeoutWrong      SignalState = "TIMEOUT_WRONG"      // moved against without hitting stop
)

// Terminal reports whether the state ends monitoring.
func (s SignalState) Terminal() bool {
	return s != StateActive
}

// Timeout reports whether the state is one of the timeout sub-types.
func (s SignalState) Timeout() bool {
	switch s {
	case StateTimeoutValid, StateTimeoutLowVol, StateTimeoutStagnation, StateTimeoutWrong:
		return true
	}
	return false
}

// TrainingWeight is the value an outcome carries for the learning loop.
// Decisive outcomes teach the most; a wrong-way timeout teaches the least
// because the stop never confirmed the failure.
func (s SignalState) TrainingWeight() float64 {
	switch s {
	case StateWin, StateLoss:
		return 1.0
	case StateTimeoutValid:
		return 0.8
	case StateTimeoutStagnation:
		return 0.5
	case StateTimeoutLowVol:
		return 0.3
	case StateTimeoutWrong:
		return 0.2
	default:
		return 0
	}
}

// Signal is a fully assembled, published trade recommendation. It is
// immutable after assembly except for the lifecycle fields, which are owned
// exclusively by the outcome tracker for that signal id.
type Signal struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`

	Entry    float64   `json:"entry"`
	StopLoss float64   `json:"stop_loss"`
	Targets  []float64 `json:"targets"` // ordered nearest first, at least one

	Confidence   float64     `json:"confidence"`    // calibrated, 0-100
	QualityScore float64     `json:"quality_score"` // 0-100
	Tier         string      `json:"tier"`          // subscription tier id
	Strategy     string      `json:"strategy"`
	Regime       Regime      `json:"regime"`
	PositionPct  float64     `json:"position_pct"` // suggested fraction of equity, 0-1
	Rationale    string      `json:"rationale"`

	State     SignalState `json:"state"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`

	// Outcome fields, written once when the tracker classifies the signal.
	ExitPrice float64    `json:"exit_price,omitempty"`
	ReturnPct float64    `json:"return_pct,omitempty"`
	TargetHit int        `json:"target_hit"` // index into Targets, -1 if none
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// Validate enforces the structural invariants every assembled signal must
// satisfy. A violation here is a programming defect, not bad market data.
func (s *Signal) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("signal has no id")
	}
	if s.Symbol == "" {
		return fmt.Errorf("signal %s has no symbol", s.ID)
	}
	if s.Direction != Long && s.Direction != Short {
		return fmt.Errorf("signal %s has invalid direction %q", s.ID, s.Direction)
	}
	if s.Entry <= 0 {
		return fmt.Errorf("signal %s has non-positive entry %.8f", s.ID, s.Entry)
	}
	if len(s.Targets) == 0 {
		return fmt.Errorf("signal %s has no targets", s.ID)
	}
	if s.Confidence < 0 || s.Confidence > 100 {
		return fmt.Errorf("signal %s confidence %.2f out of range", s.ID, s.Confidence)
	}
	if !s.ExpiresAt.After(s.CreatedAt) {
		return fmt.Errorf("signal %s expires at or before creation", s.ID)
	}

	// Stop and targets must sit on the direction-correct side of entry.
	switch s.Direction {
	case Long:
		if s.StopLoss >= s.Entry {
			return fmt.Errorf("signal %s: long stop %.8f not below entry %.8f", s.ID, s.StopLoss, s.Entry)
		}
		for i, tgt := range s.Targets {
			if tgt <= s.Entry {
				return fmt.Errorf("signal %s: long target[%d] %.8f not above entry %.8f", s.ID, i, tgt, s.Entry)
			}
		}
	case Short:
		if s.StopLoss <= s.Entry {
			return fmt.Errorf("signal %s: short stop %.8f not above entry %.8f", s.ID, s.StopLoss, s.Entry)
		}
		for i, tgt := range s.Targets {
			if tgt >= s.Entry {
				return fmt.Errorf("signal %s: short target[%d] %.8f not below entry %.8f", s.ID, i, tgt, s.Entry)
			}
		}
	}
	return nil
}

// RewardRisk returns the reward:risk ratio against the first target.
func (s *Signal) RewardRisk() float64 {
	risk := s.Entry - s.StopLoss
	reward := s.Targets[0] - s.Entry
	if s.Direction == Short {
		risk = s.StopLoss - s.Entry
		reward = s.Entry - s.Targets[0]
	}
	if risk <= 0 {
		return 0
	}
	return reward / risk
}

// Return computes the signed percentage return of exiting at price.
func (s *Signal) Return(price float64) float64 {
	if s.Entry == 0 {
		return 0
	}
	pct := (price - s.Entry) / s.Entry * 100
	if s.Direction == Short {
		pct = -pct
	}
	return pct
}

// Outcome is the terminal classification of a signal, handed to the learning
// loop exactly once.
type Outcome struct {
	SignalID   string      `json:"signal_id"`
	Symbol     string      `json:"symbol"`
	State      SignalState `json:"state"`
	ExitPrice  float64     `json:"exit_price"`
	ReturnPct  float64     `json:"return_pct"`
	TargetHit  int         `json:"target_hit"` // -1 when no target was reached
	Strategy   string      `json:"strategy"`
	Regime     Regime      `json:"regime"`
	Confidence float64     `json:"confidence"` // signal's original confidence
	ClosedAt   time.Time   `json:"closed_at"`
}

// Rejection is one append-only audit entry for a candidate declined by a
// pipeline stage.
type Rejection struct {
	ID        int64              `json:"id"`
	Stage     string             `json:"stage"` // consensus, gate, quality, assembler
	Symbol    string             `json:"symbol"`
	Reason    string             `json:"reason"`
	Scores    map[string]float64 `json:"scores,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}
