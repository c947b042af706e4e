package display

import (
	"strings"
	"testing"

	"github.com/chaz8081/sensorprov/internal/provision"
)

func TestForStatusKnownStates(t *testing.T) {
	tests := []struct {
		status provision.Status
		want   Kind
	}{
		{provision.StatusIdle, KindIdle},
		{provision.StatusConnecting, KindConnecting},
		{provision.StatusSuccess, KindSuccess},
		{provision.StatusFailed, KindFailed},
		{provision.StatusSSIDNotFound, KindSSIDNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			p := ForStatus(tt.status, provision.ErrorKeyNone)
			if p.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", p.Kind, tt.want)
			}
			if p.Icon == "" || p.Title == "" || p.Description == "" {
				t.Errorf("incomplete presentation: %+v", p)
			}
		})
	}
}

func TestFailedRefinedByErrorKey(t *testing.T) {
	generic := ForStatus(provision.StatusFailed, provision.ErrorKeyNone)
	wrong := ForStatus(provision.StatusFailed, provision.ErrorKeyWrongPassword)
	weak := ForStatus(provision.StatusFailed, provision.ErrorKeyWeakSignal)

	if wrong.Description == generic.Description {
		t.Error("wrong_password should refine the Failed description")
	}
	if !strings.Contains(wrong.Description, "password") {
		t.Errorf("wrong_password description = %q", wrong.Description)
	}
	if !strings.Contains(weak.Description, "weak") {
		t.Errorf("weak_signal description = %q", weak.Description)
	}
	if wrong.Title != generic.Title {
		t.Errorf("refinement should not change the title: %q vs %q", wrong.Title, generic.Title)
	}
}

func TestRefinementOnlyAppliesToFailed(t *testing.T) {
	p := ForStatus(provision.StatusSuccess, provision.ErrorKeyWrongPassword)
	if strings.Contains(p.Description, "password") {
		t.Errorf("Success should ignore error key, got %q", p.Description)
	}
}

func TestUnknownStatus(t *testing.T) {
	p := ForStatus(provision.Status(0x6E), provision.ErrorKeyNone)
	if p.Kind != KindUnknown {
		t.Fatalf("Kind = %v, want KindUnknown", p.Kind)
	}
	if p.Title != "Unknown status 0x6E" {
		t.Errorf("Title = %q, want %q", p.Title, "Unknown status 0x6E")
	}
}

func TestForEventUnknown(t *testing.T) {
	ev := provision.Event{Status: provision.StatusConnecting, Unknown: true, Code: 0x07}
	p := ForEvent(ev)
	if p.Kind != KindUnknown || p.Title != "Unknown status 0x07" {
		t.Errorf("ForEvent(unknown) = %+v", p)
	}

	ev = provision.Event{Status: provision.StatusSSIDNotFound, ErrorKey: provision.ErrorKeySSIDNotFound}
	if got := ForEvent(ev).Kind; got != KindSSIDNotFound {
		t.Errorf("ForEvent(ssid) Kind = %v", got)
	}
}

func TestTimeoutIsDistinctFromFailed(t *testing.T) {
	timeout := Timeout()
	failed := ForStatus(provision.StatusFailed, provision.ErrorKeyNone)
	if timeout.Kind != KindTimeout {
		t.Errorf("Kind = %v, want KindTimeout", timeout.Kind)
	}
	if timeout.Title == failed.Title {
		t.Error("timeout should not render as a failure")
	}
}

func TestUnreachable(t *testing.T) {
	p := Unreachable()
	if p.Kind != KindUnreachable {
		t.Errorf("Kind = %v, want KindUnreachable", p.Kind)
	}
	if p.Title == Timeout().Title || p.Title == ForStatus(provision.StatusFailed, provision.ErrorKeyNone).Title {
		t.Errorf("Title = %q, want its own title", p.Title)
	}
}

func TestPlain(t *testing.T) {
	got := ForStatus(provision.StatusSuccess, provision.ErrorKeyNone).Plain()
	if !strings.HasPrefix(got, "✓ Connected: ") {
		t.Errorf("Plain() = %q", got)
	}
}
