package utils

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// OutputFilename 生成转换结果的文件名：<任务ID>_<净化后的原名>.<输出格式>。
// 以任务 ID 作为命名空间，避免并发任务的输出互相覆盖。
func OutputFilename(jobID, originalName, outputFormat string) string {
	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	base = SanitizeFilename(base)
	if base == "" {
		base = "output"
	}
	return jobID + "_" + base + "." + outputFormat
}

// SanitizeFilename 净化文件名：统一 Unicode 规范形式，剔除路径分隔符和控制字符
func SanitizeFilename(name string) string {
	name = norm.NFC.String(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		case r < 0x20:
			// 丢弃控制字符
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
