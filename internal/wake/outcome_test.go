package wake

import "testing"

func TestOutcome_ZeroValueContinues(t *testing.T) {
	var o Outcome
	if o.IsShutdown() {
		t.Error("zero Outcome should continue")
	}
	if o != Continue {
		t.Error("zero Outcome should equal Continue")
	}
	if got := o.String(); got != "continue" {
		t.Errorf("String() = %q, want %q", got, "continue")
	}
}

func TestOutcome_Shutdown(t *testing.T) {
	o := Shutdown(ReasonBrokerExhausted)
	if !o.IsShutdown() {
		t.Fatal("Shutdown outcome should report IsShutdown")
	}
	if o.Reason() != ReasonBrokerExhausted {
		t.Errorf("Reason() = %v, want %v", o.Reason(), ReasonBrokerExhausted)
	}
	if got := o.String(); got != "shutdown(broker_exhausted)" {
		t.Errorf("String() = %q", got)
	}
}

func TestReason_Fatal(t *testing.T) {
	tests := []struct {
		reason Reason
		fatal  bool
	}{
		{ReasonNone, false},
		{ReasonIdleTimeout, false},
		{ReasonNetworkExhausted, true},
		{ReasonBrokerExhausted, true},
		{ReasonPublishExhausted, true},
		{ReasonInterrupted, true},
	}
	for _, tt := range tests {
		t.Run(tt.reason.String(), func(t *testing.T) {
			if got := tt.reason.Fatal(); got != tt.fatal {
				t.Errorf("Fatal() = %v, want %v", got, tt.fatal)
			}
		})
	}
}

func TestBudget(t *testing.T) {
	b := NewBudget(2)
	if b.Exhausted() || b.Exceeded() {
		t.Fatal("new budget should be neither exhausted nor exceeded")
	}

	b.Strike()
	b.Strike()
	if !b.Exhausted() {
		t.Error("2/2 should be exhausted")
	}
	if b.Exceeded() {
		t.Error("2/2 should not be exceeded")
	}

	b.Strike()
	if !b.Exceeded() {
		t.Error("3/2 should be exceeded")
	}

	b.Reset()
	if b.Used() != 0 || b.Max() != 2 {
		t.Errorf("after Reset: used=%d max=%d, want 0 and 2", b.Used(), b.Max())
	}
}
