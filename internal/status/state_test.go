package status

import "testing"

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, AuthRequired},
		{Booting, Connecting},
		{AuthRequired, Connecting},
		{Connecting, Syncing},
		{Syncing, Ready},
		{Ready, Reconnecting},
		{Reconnecting, Connecting},
		{Error, Booting},
	}

	for _, tt := range tests {
		m := NewMachine(nil)
		m.current = tt.from
		if err := m.Transition(tt.to); err != nil {
			t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
		}
		if m.Current() != tt.to {
			t.Errorf("state = %s, want %s", m.Current(), tt.to)
		}
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Ready); err == nil {
		t.Error("Booting -> Ready should be rejected")
	}
	if m.Current() != Booting {
		t.Errorf("state changed on rejected transition: %s", m.Current())
	}
}

func TestAvailable(t *testing.T) {
	m := NewMachine(nil)
	if m.Available() {
		t.Error("Booting should not be available")
	}
	m.current = Ready
	if !m.Available() {
		t.Error("Ready should be available")
	}
	m.current = Syncing
	if !m.Available() {
		t.Error("Syncing should be available")
	}
	m.current = Reconnecting
	if m.Available() {
		t.Error("Reconnecting should not be available")
	}
}
