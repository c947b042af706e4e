package provision

import (
	"strings"
	"testing"
)

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr bool
	}{
		{"valid", Credentials{SSID: "home", Password: "12345678"}, false},
		{"open network", Credentials{SSID: "cafe"}, false},
		{"empty ssid", Credentials{Password: "12345678"}, true},
		{"long ssid", Credentials{SSID: strings.Repeat("x", 33), Password: "12345678"}, true},
		{"short password", Credentials{SSID: "home", Password: "1234"}, true},
		{"long password", Credentials{SSID: "home", Password: strings.Repeat("p", 65)}, true},
		{"hex psk", Credentials{SSID: "home", Password: strings.Repeat("a", 64)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCredentialsMarshal(t *testing.T) {
	got, err := Credentials{SSID: "home", Password: "12345678"}.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"ssid":"home","password":"12345678"}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestCredentialsStringHidesPassword(t *testing.T) {
	s := Credentials{SSID: "home", Password: "supersecret"}.String()
	if strings.Contains(s, "supersecret") {
		t.Errorf("String() = %q leaks the password", s)
	}
}
