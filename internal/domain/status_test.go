package domain

import "testing"

func TestExecutionStatus_HappyPath(t *testing.T) {
	path := []ExecutionStatus{
		ExecStatusCreated,
		ExecStatusValidated,
		ExecStatusEnvReady,
		ExecStatusLaunching,
		ExecStatusRunning,
		ExecStatusCompleting,
		ExecStatusCompleted,
	}

	for i := 0; i < len(path)-1; i++ {
		if !path[i].CanTransitionTo(path[i+1]) {
			t.Errorf("%s -> %s should be allowed", path[i], path[i+1])
		}
	}
}

func TestExecutionStatus_StopPath(t *testing.T) {
	for _, from := range []ExecutionStatus{ExecStatusLaunching, ExecStatusRunning} {
		if !from.CanTransitionTo(ExecStatusStopping) {
			t.Errorf("%s -> STOPPING should be allowed", from)
		}
	}
	if !ExecStatusStopping.CanTransitionTo(ExecStatusStopped) {
		t.Error("STOPPING -> STOPPED should be allowed")
	}
}

func TestExecutionStatus_FailingFromAnyNonTerminal(t *testing.T) {
	nonTerminal := []ExecutionStatus{
		ExecStatusCreated,
		ExecStatusValidated,
		ExecStatusEnvReady,
		ExecStatusLaunching,
		ExecStatusRunning,
		ExecStatusCompleting,
		ExecStatusStopping,
	}

	for _, from := range nonTerminal {
		if !from.CanTransitionTo(ExecStatusFailing) {
			t.Errorf("%s -> FAILING should be allowed", from)
		}
	}
	if !ExecStatusFailing.CanTransitionTo(ExecStatusFailed) {
		t.Error("FAILING -> FAILED should be allowed")
	}
}

func TestExecutionStatus_TerminalIsFinal(t *testing.T) {
	all := []ExecutionStatus{
		ExecStatusCreated, ExecStatusValidated, ExecStatusEnvReady,
		ExecStatusLaunching, ExecStatusRunning, ExecStatusCompleting,
		ExecStatusStopping, ExecStatusFailing,
		ExecStatusCompleted, ExecStatusStopped, ExecStatusFailed,
	}

	for _, terminal := range []ExecutionStatus{ExecStatusCompleted, ExecStatusStopped, ExecStatusFailed} {
		if !terminal.IsTerminal() {
			t.Errorf("%s should be terminal", terminal)
		}
		for _, to := range all {
			if terminal.CanTransitionTo(to) {
				t.Errorf("%s -> %s should be rejected", terminal, to)
			}
		}
	}
}

func TestExecutionStatus_NoSkips(t *testing.T) {
	cases := []struct {
		from, to ExecutionStatus
	}{
		{ExecStatusCreated, ExecStatusRunning},
		{ExecStatusCreated, ExecStatusLaunching},
		{ExecStatusValidated, ExecStatusRunning},
		{ExecStatusRunning, ExecStatusCompleted},
		{ExecStatusLaunching, ExecStatusCompleting},
		{ExecStatusStopping, ExecStatusCompleted},
		{ExecStatusFailing, ExecStatusStopped},
	}

	for _, c := range cases {
		if c.from.CanTransitionTo(c.to) {
			t.Errorf("%s -> %s should be rejected", c.from, c.to)
		}
	}
}

func TestNodeState_IsTerminal(t *testing.T) {
	terminal := []NodeState{NodeStateCompleted, NodeStateFailed, NodeStateStopped}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	live := []NodeState{NodeStatePending, NodeStateReady, NodeStateRunning, NodeStateUnresponsive}
	for _, s := range live {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
