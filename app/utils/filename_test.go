package utils

import "testing"

func TestOutputFilename(t *testing.T) {
	tests := []struct {
		jobID        string
		originalName string
		outputFormat string
		want         string
	}{
		{"abc123", "video.mov", "mp4", "abc123_video.mp4"},
		{"abc123", "my file.wav", "mp3", "abc123_my file.mp3"},
		{"abc123", "../../etc/passwd", "mp4", "abc123_passwd.mp4"},
		{"abc123", "a/b\\c:d.png", "webp", "abc123_b_c_d.webp"},
		{"abc123", ".mov", "mp4", "abc123_output.mp4"},
	}
	for _, tt := range tests {
		if got := OutputFilename(tt.jobID, tt.originalName, tt.outputFormat); got != tt.want {
			t.Errorf("OutputFilename(%q, %q, %q) = %q, 期望 %q", tt.jobID, tt.originalName, tt.outputFormat, got, tt.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"normal", "normal"},
		{"with/slash", "with_slash"},
		{`back\slash`, "back_slash"},
		{"que?stion*star", "que_stion_star"},
		{"tab\there", "tabhere"},
		{"  空格  ", "空格"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, 期望 %q", tt.in, got, tt.want)
		}
	}
}
