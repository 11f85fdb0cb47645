package converter

import (
	"bytes"
	"image/png"
	"sync"

	"github.com/fogleman/gg"
)

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
)

// PlaceholderImage 返回"结果过大"占位图的 PNG 数据。
// 内联结果超过大小上限时，状态接口返回该占位图而不是原始数据。
func PlaceholderImage() []byte {
	placeholderOnce.Do(func() {
		dc := gg.NewContext(480, 320)

		dc.SetRGB(0.93, 0.93, 0.95)
		dc.Clear()

		dc.SetRGB(0.6, 0.6, 0.65)
		dc.SetLineWidth(2)
		dc.DrawRectangle(8, 8, 464, 304)
		dc.Stroke()

		dc.SetRGB(0.3, 0.3, 0.35)
		dc.DrawStringAnchored("IMAGE TOO LARGE", 240, 148, 0.5, 0.5)
		dc.DrawStringAnchored("Use the download endpoint instead", 240, 172, 0.5, 0.5)

		var buf bytes.Buffer
		if err := png.Encode(&buf, dc.Image()); err != nil {
			// 画布编码只依赖内存，失败意味着程序状态已不可信
			panic("编码占位图失败: " + err.Error())
		}
		placeholderPNG = buf.Bytes()
	})
	return placeholderPNG
}
