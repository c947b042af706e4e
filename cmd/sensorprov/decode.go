package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chaz8081/sensorprov/internal/display"
	"github.com/chaz8081/sensorprov/internal/provision"
)

// DecodeCmd explains a captured status characteristic value.
type DecodeCmd struct {
	Value  string `arg:"" help:"Characteristic value as hex (\"02\", \"0x03 7b...\") or base64 with --base64."`
	Base64 bool   `name:"base64" help:"Value is base64-encoded."`
}

func (c *DecodeCmd) Run() error {
	return c.run(os.Stdout)
}

func (c *DecodeCmd) run(w io.Writer) error {
	var n provision.Notification
	if c.Base64 {
		var err error
		n, err = provision.DecodeBase64(c.Value)
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
	} else {
		buf, err := parseHex(c.Value)
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		n = provision.Decode(buf)
	}

	fmt.Fprintf(w, "Frame:   %s\n", n.Kind)
	if n.HasCode {
		fmt.Fprintf(w, "Code:    0x%02X (%s)\n", uint8(n.Code), n.Code)
	}
	if n.RawText != "" {
		fmt.Fprintf(w, "Payload: %s\n", n.RawText)
	}

	out := provision.Interpret(n)
	switch {
	case !out.Matched:
		fmt.Fprintln(w, "Status:  no status change")
	case !out.Status.Known():
		fmt.Fprintf(w, "Status:  %s\n", display.ForUnknown(uint8(out.Status)).Plain())
	default:
		if out.ErrorKey != provision.ErrorKeyNone {
			fmt.Fprintf(w, "Error:   %s\n", out.ErrorKey)
		}
		fmt.Fprintf(w, "Status:  %s\n", display.ForStatus(out.Status, out.ErrorKey).Plain())
	}
	return nil
}

// parseHex accepts hex with optional 0x prefixes and whitespace or colon
// separators.
func parseHex(s string) ([]byte, error) {
	var b strings.Builder
	for _, field := range strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ':' || r == ',' }) {
		field = strings.TrimPrefix(strings.TrimPrefix(field, "0x"), "0X")
		b.WriteString(field)
	}
	return hex.DecodeString(b.String())
}
