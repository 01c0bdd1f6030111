package storage

import "testing"

func TestValidTransition(t *testing.T) {
	allowed := []struct{ from, to string }{
		{StatusQueued, StatusRunning},
		{StatusRunning, StatusReporting},
		{StatusRunning, StatusCompleted},
		{StatusReporting, StatusCompleted},
		{StatusQueued, StatusFailed},
		{StatusRunning, StatusFailed},
		{StatusReporting, StatusFailed},
	}
	for _, tc := range allowed {
		if !ValidTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to string }{
		{StatusQueued, StatusReporting},
		{StatusQueued, StatusCompleted},
		{StatusReporting, StatusRunning},
		{StatusCompleted, StatusRunning},
		{StatusCompleted, StatusFailed},
		{StatusFailed, StatusQueued},
		{StatusFailed, StatusFailed},
	}
	for _, tc := range denied {
		if ValidTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}

func TestIsTerminalStatus(t *testing.T) {
	for _, status := range []string{StatusCompleted, StatusFailed} {
		if !IsTerminalStatus(status) {
			t.Errorf("%s should be terminal", status)
		}
	}
	for _, status := range StaleStatuses() {
		if IsTerminalStatus(status) {
			t.Errorf("%s should not be terminal", status)
		}
	}
}

func TestCheckID(t *testing.T) {
	if err := CheckID("run-1"); err != nil {
		t.Fatalf("valid id rejected: %v", err)
	}
	for _, id := range []string{"", "   ", "\t"} {
		if err := CheckID(id); err != ErrInvalidID {
			t.Errorf("blank id %q: expected ErrInvalidID, got %v", id, err)
		}
	}
}
