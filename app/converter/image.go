// Package converter 实现图片与音视频的实际格式转换。
// 队列只负责调度，字节层面的变换都在这里完成。
package converter

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"media-forge/app/formats"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// 超过该宽度的输入图片先等比缩小，避免输出体积失控
const maxImageWidth = 1500

// ImageConverter 图片转换后端：解码、按需缩小、按目标格式重新编码
type ImageConverter struct{}

// NewImageConverter 创建图片转换后端
func NewImageConverter() *ImageConverter {
	return &ImageConverter{}
}

// Convert 将图片数据转换为目标格式，返回转换后的字节
func (c *ImageConverter) Convert(data []byte, inputFormat, outputFormat string) ([]byte, error) {
	img, err := c.decode(data, inputFormat)
	if err != nil {
		return nil, fmt.Errorf("解码图片失败: %w", err)
	}

	// 过宽的输入先等比缩小
	if img.Bounds().Dx() > maxImageWidth {
		img = imaging.Resize(img, maxImageWidth, 0, imaging.Lanczos)
	}

	return c.encode(img, outputFormat)
}

// decode 解码输入图片。webp 走独立解码器，其余格式交给 imaging。
func (c *ImageConverter) decode(data []byte, inputFormat string) (image.Image, error) {
	if formats.Normalize(inputFormat) == "webp" {
		return webp.Decode(bytes.NewReader(data))
	}
	return imaging.Decode(bytes.NewReader(data))
}

// encode 按目标格式编码
func (c *ImageConverter) encode(img image.Image, outputFormat string) ([]byte, error) {
	var buf bytes.Buffer

	switch formats.Normalize(outputFormat) {
	case "jpg", "jpeg":
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
			return nil, fmt.Errorf("编码 JPEG 失败: %w", err)
		}
	case "png":
		if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return nil, fmt.Errorf("编码 PNG 失败: %w", err)
		}
	case "gif":
		if err := imaging.Encode(&buf, img, imaging.GIF); err != nil {
			return nil, fmt.Errorf("编码 GIF 失败: %w", err)
		}
	case "webp":
		if err := webp.Encode(&buf, img, &webp.Options{Quality: 80}); err != nil {
			return nil, fmt.Errorf("编码 WebP 失败: %w", err)
		}
	case "bmp":
		if err := imaging.Encode(&buf, img, imaging.BMP); err != nil {
			return nil, fmt.Errorf("编码 BMP 失败: %w", err)
		}
	case "tiff":
		if err := imaging.Encode(&buf, img, imaging.TIFF); err != nil {
			return nil, fmt.Errorf("编码 TIFF 失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的输出格式: %s", outputFormat)
	}

	return buf.Bytes(), nil
}
