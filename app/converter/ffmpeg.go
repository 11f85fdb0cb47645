package converter

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"media-forge/app/formats"
)

// 各音频输出格式对应的编码参数
var audioCodecArgs = map[string][]string{
	"mp3":  {"-c:a", "libmp3lame", "-q:a", "4"},
	"wav":  {"-c:a", "pcm_s16le"},
	"aac":  {"-c:a", "aac", "-b:a", "192k"},
	"flac": {"-c:a", "flac"},
	"ogg":  {"-c:a", "libvorbis", "-q:a", "6"},
	"m4a":  {"-c:a", "aac", "-b:a", "192k"},
	"wma":  {"-c:a", "wmav2", "-b:a", "192k"},
	"opus": {"-c:a", "libopus", "-b:a", "128k"},
	"amr":  {"-c:a", "libopencore_amrnb", "-b:a", "12.2k"},
	"aiff": {"-c:a", "pcm_s16be"},
}

// 各视频输出格式对应的编码参数
var videoCodecArgs = map[string][]string{
	"mp4":  {"-c:v", "libx264", "-preset", "medium", "-crf", "18", "-c:a", "aac", "-b:a", "192k"},
	"webm": {"-c:v", "libvpx-vp9", "-crf", "30", "-b:v", "0", "-c:a", "libopus", "-b:a", "128k"},
	"mov":  {"-c:v", "prores_ks", "-profile:v", "3", "-c:a", "pcm_s16le"},
	"avi":  {"-c:v", "mpeg4", "-q:v", "3", "-c:a", "libmp3lame", "-q:a", "4"},
	"mkv":  {"-c:v", "libx264", "-preset", "medium", "-crf", "18", "-c:a", "aac", "-b:a", "192k"},
	"flv":  {"-c:v", "libx264", "-preset", "medium", "-crf", "22", "-c:a", "aac", "-b:a", "128k"},
	"wmv":  {"-c:v", "wmv2", "-q:v", "3", "-c:a", "wmav2", "-b:a", "192k"},
	"mpg":  {"-c:v", "mpeg2video", "-q:v", "5", "-c:a", "mp2", "-b:a", "192k"},
	"mpeg": {"-c:v", "mpeg2video", "-q:v", "5", "-c:a", "mp2", "-b:a", "192k"},
	"3gp":  {"-c:v", "libx264", "-preset", "medium", "-crf", "28", "-b:v", "256k", "-c:a", "aac", "-b:a", "64k", "-ar", "22050"},
	"m4v":  {"-c:v", "libx264", "-preset", "medium", "-crf", "18", "-c:a", "aac", "-b:a", "192k"},
	"ts":   {"-c:v", "libx264", "-preset", "medium", "-crf", "20", "-c:a", "aac", "-b:a", "192k"},
	"mts":  {"-c:v", "libx264", "-preset", "medium", "-crf", "20", "-c:a", "aac", "-b:a", "192k"},
	"ogg":  {"-c:v", "libtheora", "-q:v", "7", "-c:a", "libvorbis", "-q:a", "5"},
}

// FFmpegConverter 音视频转换后端，通过外部 ffmpeg/ffprobe 进程完成转码
type FFmpegConverter struct {
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpegConverter 创建音视频转换后端
func NewFFmpegConverter(ffmpegPath, ffprobePath string) *FFmpegConverter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegConverter{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

// Probe 探测输入文件包含的流类型
func (c *FFmpegConverter) Probe(ctx context.Context, inputPath string) (hasVideo, hasAudio bool, err error) {
	cmd := exec.CommandContext(ctx, c.FFprobePath,
		"-v", "error",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0",
		inputPath)
	output, err := cmd.Output()
	if err != nil {
		return false, false, fmt.Errorf("探测文件失败: %w", err)
	}

	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		switch strings.TrimSpace(line) {
		case "video":
			hasVideo = true
		case "audio":
			hasAudio = true
		}
	}
	return hasVideo, hasAudio, nil
}

// Duration 读取文件时长（秒），读取失败时返回 0 而不是错误
func (c *FFmpegConverter) Duration(ctx context.Context, path string) float64 {
	cmd := exec.CommandContext(ctx, c.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	output, err := cmd.Output()
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0
	}
	return d
}

// Convert 将输入文件转码为目标格式。
// 目标为音频格式或源文件没有视频流时走纯音频转码（丢弃视频），
// 否则保留视频流和已有的音频流做完整转码。
func (c *FFmpegConverter) Convert(ctx context.Context, inputPath, outputPath, outputFormat string) error {
	outputFormat = formats.Normalize(outputFormat)

	hasVideo, _, err := c.Probe(ctx, inputPath)
	if err != nil {
		return err
	}

	var args []string
	if formats.IsAudioFormat(outputFormat) || !hasVideo {
		codec, ok := audioCodecArgs[outputFormat]
		if !ok {
			return fmt.Errorf("输出格式 %s 没有对应的音频编码配置", outputFormat)
		}
		args = append(args, "-y", "-i", inputPath, "-vn", "-map_metadata", "0")
		args = append(args, codec...)
	} else {
		codec, ok := videoCodecArgs[outputFormat]
		if !ok {
			return fmt.Errorf("输出格式 %s 没有对应的视频编码配置", outputFormat)
		}
		args = append(args, "-y", "-i", inputPath, "-map", "0", "-map_metadata", "0", "-sn")
		args = append(args, codec...)
	}
	args = append(args, outputPath)

	cmd := exec.CommandContext(ctx, c.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("转码失败: %v: %s", err, lastLine(stderr.String()))
	}
	return nil
}

// lastLine 取 ffmpeg 输出的最后一行作为错误摘要
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
