package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"media-forge/app/converter"
	"media-forge/app/formats"
	"media-forge/app/model"
	"media-forge/app/utils"
)

// ImageBackend 图片队列的转换后端适配器。
// 转换结果内联为 base64 DataURL；超过大小上限时改存占位图并打 tooLarge 标记。
type ImageBackend struct {
	conv        *converter.ImageConverter
	inlineLimit int64
}

// NewImageBackend 创建图片后端
func NewImageBackend(conv *converter.ImageConverter, inlineLimit int64) *ImageBackend {
	return &ImageBackend{conv: conv, inlineLimit: inlineLimit}
}

func (b *ImageBackend) Convert(_ context.Context, job *model.Job) (*model.JobResult, error) {
	data, err := b.conv.Convert(job.InputData, job.InputFormat, job.OutputFormat)
	if err != nil {
		return nil, err
	}

	result := &model.JobResult{
		Filename: utils.OutputFilename(job.ID, job.OriginalName, job.OutputFormat),
		Size:     int64(len(data)),
	}

	if int64(len(data)) > b.inlineLimit {
		// 过大的结果不内联原始数据，改用占位图
		result.TooLarge = true
		result.DataURL = dataURL("image/png", converter.PlaceholderImage())
	} else {
		result.DataURL = dataURL(formats.MimeType(job.OutputFormat), data)
	}
	return result, nil
}

// MediaBackend 音视频队列的转换后端适配器。
// 输出写入磁盘，结果携带下载地址、大小和时长。
type MediaBackend struct {
	ff        *converter.FFmpegConverter
	outputDir string
}

// NewMediaBackend 创建音视频后端
func NewMediaBackend(ff *converter.FFmpegConverter, outputDir string) *MediaBackend {
	return &MediaBackend{ff: ff, outputDir: outputDir}
}

func (b *MediaBackend) Convert(ctx context.Context, job *model.Job) (*model.JobResult, error) {
	if err := os.MkdirAll(b.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	filename := utils.OutputFilename(job.ID, job.OriginalName, job.OutputFormat)
	outputPath := filepath.Join(b.outputDir, filename)

	if err := b.ff.Convert(ctx, job.InputPath, outputPath, job.OutputFormat); err != nil {
		// 失败时不留半成品文件
		_ = os.Remove(outputPath)
		return nil, err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("读取输出文件信息失败: %w", err)
	}

	return &model.JobResult{
		URL:       "/api/convert/download?id=" + job.ID + "&filename=" + url.QueryEscape(filename),
		Filename:  filename,
		Size:      info.Size(),
		Duration:  b.ff.Duration(ctx, outputPath),
		LocalPath: outputPath,
	}, nil
}

// dataURL 将字节编码为 base64 DataURL
func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
