package ncc

import (
	"context"
	"testing"
	"time"
)

func TestParseProbeOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    time.Duration
		wantErr bool
	}{
		{"duration", `{"format": {"filename": "a.mp3", "duration": "123.450000"}}`, 123450 * time.Millisecond, false},
		{"zero", `{"format": {"duration": "0.000000"}}`, 0, false},
		{"missing", `{"format": {"filename": "a.mp3"}}`, 0, true},
		{"not a number", `{"format": {"duration": "N/A"}}`, 0, true},
		{"negative", `{"format": {"duration": "-1"}}`, 0, true},
		{"garbage", `not json`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbeOutput([]byte(tt.output))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseProbeOutput() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseProbeOutput() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseProbeOutput() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFFProbeErrors(t *testing.T) {
	if _, err := (FFProbe{}).Duration(context.Background(), "  "); err == nil {
		t.Error("Duration() accepted empty path")
	}
	p := FFProbe{Binary: "/nonexistent/ffprobe-binary"}
	if _, err := p.Duration(context.Background(), "a.mp3"); err == nil {
		t.Error("Duration() succeeded with missing binary")
	}
}

func TestProberFunc(t *testing.T) {
	var p Prober = ProberFunc(func(context.Context, string) (time.Duration, error) {
		return time.Minute, nil
	})
	if d, err := p.Duration(context.Background(), "x"); err != nil || d != time.Minute {
		t.Errorf("Duration() = %v, %v", d, err)
	}
}
