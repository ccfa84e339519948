package main

import "testing"

func TestParsePortRange(t *testing.T) {
	tests := []struct {
		in       string
		from, to uint16
		wantErr  bool
	}{
		{"22", 22, 22, false},
		{"1-1024", 1, 1024, false},
		{" 80 - 90 ", 80, 90, false},
		{"0", 0, 0, true},
		{"90-80", 0, 0, true},
		{"70000", 0, 0, true},
		{"abc", 0, 0, true},
		{"10-", 0, 0, true},
	}
	for _, tt := range tests {
		from, to, err := parsePortRange(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePortRange(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (from != tt.from || to != tt.to) {
			t.Errorf("parsePortRange(%q) = %d-%d, want %d-%d", tt.in, from, to, tt.from, tt.to)
		}
	}
}
