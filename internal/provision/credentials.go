package provision

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Credentials are the WiFi settings written to the device.
type Credentials struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// Validate checks the credentials against 802.11 limits: a 1-32 byte SSID
// and either an open network or an 8-64 character passphrase.
func (c Credentials) Validate() error {
	if c.SSID == "" {
		return errors.New("provision: ssid must not be empty")
	}
	if len(c.SSID) > 32 {
		return fmt.Errorf("provision: ssid must be at most 32 bytes, got %d", len(c.SSID))
	}
	if n := len(c.Password); n != 0 && (n < 8 || n > 64) {
		return fmt.Errorf("provision: password must be 8-64 characters, got %d", n)
	}
	return nil
}

// Marshal encodes the credentials in the JSON form the firmware expects.
func (c Credentials) Marshal() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(c)
}

// String never includes the password.
func (c Credentials) String() string {
	return fmt.Sprintf("ssid=%q password=%d chars", c.SSID, len(c.Password))
}
