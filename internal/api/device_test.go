package api

import "testing"

func TestNormalizeDevice(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Device
		wantErr bool
	}{
		{
			name: "device envelope",
			body: `{"device":{"id":"d1","name":"Bedroom","mac":"AA:BB","status":"online"}}`,
			want: Device{ID: "d1", Name: "Bedroom", MAC: "AA:BB", Status: "online"},
		},
		{
			name: "data.device envelope",
			body: `{"data":{"device":{"_id":"d2","device_name":"Kitchen"}}}`,
			want: Device{ID: "d2", Name: "Kitchen"},
		},
		{
			name: "data envelope",
			body: `{"data":{"device_id":"d3","mac_address":"CC:DD","state":"provisioned"}}`,
			want: Device{ID: "d3", MAC: "CC:DD", Status: "provisioned"},
		},
		{
			name: "bare object",
			body: `{"deviceId":"d4","macAddress":"EE:FF","firmware_version":"1.2.0"}`,
			want: Device{ID: "d4", MAC: "EE:FF", Firmware: "1.2.0"},
		},
		{
			name: "numeric id",
			body: `{"data":{"id":42}}`,
			want: Device{ID: "42"},
		},
		{
			name: "data that is not an object falls back to root",
			body: `{"id":"d5","data":[1,2]}`,
			want: Device{ID: "d5"},
		},
		{
			name:    "no id",
			body:    `{"device":{"name":"nameless"}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `<html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDevice([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeDevice() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeDevice() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
