package converter

import (
	"testing"

	"media-forge/app/formats"
)

// 所有对外声明支持的音视频格式都必须有对应的编码参数，
// 否则提交校验会放行一个执行时必然失败的任务
func TestCodecArgsCoverSupportedFormats(t *testing.T) {
	for _, f := range formats.SupportedFormats(formats.MediaAudio) {
		if _, ok := audioCodecArgs[f]; !ok {
			t.Errorf("音频格式 %s 缺少编码参数", f)
		}
	}
	for _, f := range formats.SupportedFormats(formats.MediaVideo) {
		if _, ok := videoCodecArgs[f]; !ok {
			t.Errorf("视频格式 %s 缺少编码参数", f)
		}
	}
}

func TestNewFFmpegConverterDefaults(t *testing.T) {
	c := NewFFmpegConverter("", "")
	if c.FFmpegPath != "ffmpeg" || c.FFprobePath != "ffprobe" {
		t.Errorf("默认路径 = %s/%s, 期望 ffmpeg/ffprobe", c.FFmpegPath, c.FFprobePath)
	}

	c = NewFFmpegConverter("/opt/bin/ffmpeg", "/opt/bin/ffprobe")
	if c.FFmpegPath != "/opt/bin/ffmpeg" || c.FFprobePath != "/opt/bin/ffprobe" {
		t.Error("自定义路径未生效")
	}
}

func TestLastLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"single", "single"},
		{"first\nsecond\nthird\n", "third"},
		{"line\n  padded  \n", "padded"},
	}
	for _, tt := range tests {
		if got := lastLine(tt.in); got != tt.want {
			t.Errorf("lastLine(%q) = %q, 期望 %q", tt.in, got, tt.want)
		}
	}
}
