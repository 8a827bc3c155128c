package device

import (
	"errors"
	"testing"
)

func TestAdminTransition_Apply(t *testing.T) {
	tests := []struct {
		name    string
		from    RelayStatus
		to      RelayStatus
		want    RelayStatus
		wantErr bool
	}{
		{"on to off", RelayOn, RelayOff, RelayOff, false},
		{"off to on", RelayOff, RelayOn, RelayOn, false},
		{"clear trip", RelayTripped, RelayOn, RelayOn, false},
		{"admin may trip", RelayOn, RelayTripped, RelayTripped, false},
		{"invalid target", RelayOn, "melted", "", true},
		{"empty target", RelayOn, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AdminTransition{To: tt.to}.Apply(tt.from)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Apply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidRelayStatus) {
				t.Errorf("Apply() error = %v, want ErrInvalidRelayStatus", err)
			}
			if got != tt.want {
				t.Errorf("Apply() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTripTransition_Apply(t *testing.T) {
	for _, from := range []RelayStatus{RelayOn, RelayOff, RelayTripped} {
		got, err := TripTransition{}.Apply(from)
		if err != nil {
			t.Fatalf("Apply() from %q error = %v", from, err)
		}
		if got != RelayTripped {
			t.Errorf("Apply() from %q = %q, want %q", from, got, RelayTripped)
		}
	}
}

func TestIsValidRelayStatus(t *testing.T) {
	for _, s := range []RelayStatus{RelayOn, RelayOff, RelayTripped} {
		if !IsValidRelayStatus(s) {
			t.Errorf("IsValidRelayStatus(%q) = false, want true", s)
		}
	}
	for _, s := range []RelayStatus{"", "ON", "standby"} {
		if IsValidRelayStatus(s) {
			t.Errorf("IsValidRelayStatus(%q) = true, want false", s)
		}
	}
}
