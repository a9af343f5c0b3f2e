package episode

import (
	"testing"
	"time"

	"github.com/stridelabs/stride-platform/internal/motion"
)

var gateBase = time.Date(2025, 6, 26, 12, 0, 0, 0, time.UTC)

func TestShouldTransition_InitialState(t *testing.T) {
	// Gate 1: first classification always opens an episode
	decision := ShouldTransition(nil, nil, gateBase, motion.WalkingStraight, 0.5, 1)

	if !decision.Accept {
		t.Error("expected initial classification to open an episode")
	}
	if decision.Reason != "initial_state" {
		t.Errorf("expected initial_state reason, got %s", decision.Reason)
	}
}

func TestShouldTransition_UnknownNeverOpens(t *testing.T) {
	// Gate 0: unclassified windows never form episodes
	decision := ShouldTransition(nil, nil, gateBase, motion.Unknown, 0.9, 5)

	if decision.Accept {
		t.Error("expected UNKNOWN to be rejected with no open episode")
	}
	if decision.Reason != "unclassified" {
		t.Errorf("expected unclassified reason, got %s", decision.Reason)
	}

	current := motion.WalkingStraight
	decision = ShouldTransition(&current, nil, gateBase, motion.Unknown, 0.9, 5)

	if decision.Accept {
		t.Error("expected UNKNOWN to be rejected with an open episode")
	}
}

func TestShouldTransition_HighConfidenceChange(t *testing.T) {
	// State change with high confidence should pass
	current := motion.Stationary
	lastChange := gateBase.Add(-2 * time.Minute)

	decision := ShouldTransition(&current, &lastChange, gateBase, motion.WalkingStraight, 0.85, 1)

	if !decision.Accept {
		t.Error("expected high confidence state change to pass")
	}
	if decision.Reason != "transition" {
		t.Errorf("expected transition reason, got %s", decision.Reason)
	}
	if decision.RequiredConfidence != ChangeConfidence {
		t.Errorf("RequiredConfidence = %f, want %f", decision.RequiredConfidence, ChangeConfidence)
	}
}

func TestShouldTransition_LowConfidenceBlocked(t *testing.T) {
	// State change with low confidence should be blocked
	current := motion.Stationary
	lastChange := gateBase.Add(-2 * time.Minute)

	decision := ShouldTransition(&current, &lastChange, gateBase, motion.WalkingStraight, 0.5, 1)

	if decision.Accept {
		t.Error("expected low confidence state change to be blocked")
	}
	if decision.Reason != "low_confidence" {
		t.Errorf("expected low_confidence reason, got %s", decision.Reason)
	}
}

func TestShouldTransition_StreakOverride(t *testing.T) {
	// A sustained streak stands in for a single high-confidence result
	current := motion.Stationary
	lastChange := gateBase.Add(-2 * time.Minute)

	decision := ShouldTransition(&current, &lastChange, gateBase, motion.WalkingStraight, 0.4, StreakOverride)
	if !decision.Accept {
		t.Error("expected streak of moderate-confidence classifications to pass")
	}

	decision = ShouldTransition(&current, &lastChange, gateBase, motion.WalkingStraight, 0.4, StreakOverride-1)
	if decision.Accept {
		t.Error("expected short streak to be blocked")
	}

	// The streak never rescues confidence below the maintain threshold
	decision = ShouldTransition(&current, &lastChange, gateBase, motion.WalkingStraight, 0.2, StreakOverride+2)
	if decision.Accept {
		t.Error("expected very low confidence to be blocked despite streak")
	}
}

func TestShouldTransition_Maintained(t *testing.T) {
	// Same movement extends the episode, never transitions
	current := motion.WalkingStraight
	lastChange := gateBase.Add(-2 * time.Minute)

	decision := ShouldTransition(&current, &lastChange, gateBase, motion.WalkingStraight, 0.4, 10)

	if decision.Accept {
		t.Error("expected maintaining classification not to transition")
	}
	if decision.Reason != "maintained" {
		t.Errorf("expected maintained reason, got %s", decision.Reason)
	}
	if decision.RequiredConfidence != MaintainConfidence {
		t.Errorf("RequiredConfidence = %f, want %f", decision.RequiredConfidence, MaintainConfidence)
	}

	// Below the maintain threshold the classification is too weak to
	// count toward episode statistics
	decision = ShouldTransition(&current, &lastChange, gateBase, motion.WalkingStraight, 0.2, 10)
	if decision.Reason != "low_confidence" {
		t.Errorf("expected low_confidence reason, got %s", decision.Reason)
	}
}

func TestShouldTransition_HoldWindow(t *testing.T) {
	// Time hysteresis blocks rapid transitions
	current := motion.WalkingStraight
	lastChange := gateBase.Add(-5 * time.Second) // Too recent

	decision := ShouldTransition(&current, &lastChange, gateBase, motion.ClimbingStairs, 0.9, 1)

	if decision.Accept {
		t.Error("expected hold window to block transition")
	}
	if decision.Reason != "hold_window" {
		t.Errorf("expected hold_window reason, got %s", decision.Reason)
	}

	// Enough time passed
	lastChange = gateBase.Add(-15 * time.Second)
	decision = ShouldTransition(&current, &lastChange, gateBase, motion.ClimbingStairs, 0.9, 1)

	if !decision.Accept {
		t.Error("expected transition to pass after hold window")
	}
}

func TestShouldTransition_NoLastTransition(t *testing.T) {
	// First state change (no previous transition time)
	current := motion.Stationary

	decision := ShouldTransition(&current, nil, gateBase, motion.WalkingStraight, 0.7, 1)

	if !decision.Accept {
		t.Error("expected state change with no previous transition to pass")
	}
}
