// Package formats 维护各媒体类型支持的格式集合与合法转换表。
// 提交校验和格式发现接口共用同一份数据，保证两处判断一致。
package formats

import "strings"

// MediaType 媒体类型
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaAudio    MediaType = "audio"
	MediaDocument MediaType = "document"
)

// 各媒体类型可识别的格式（闭合集合）
var supportedFormats = map[MediaType][]string{
	MediaImage: {"jpg", "jpeg", "png", "gif", "webp", "bmp", "tiff", "svg", "ico"},
	MediaVideo: {"mp4", "webm", "mov", "avi", "mkv", "flv", "wmv", "mpg", "mpeg", "3gp", "m4v", "ts", "mts", "ogg"},
	MediaAudio: {"mp3", "wav", "aac", "flac", "ogg", "m4a", "wma", "opus", "amr", "aiff"},
	// 文档转换由外部服务处理，这里只提供格式发现
	MediaDocument: {"pdf", "doc", "docx", "txt", "rtf", "odt", "html", "md"},
}

// 合法的输入格式到输出格式转换表
var conversionTables = map[MediaType]map[string][]string{
	MediaImage: {
		"jpg":  {"png", "webp", "bmp", "tiff"},
		"jpeg": {"png", "webp", "bmp", "tiff"},
		"png":  {"jpg", "webp", "bmp", "tiff"},
		"gif":  {"jpg", "png", "webp"},
		"webp": {"jpg", "png", "gif"},
		"bmp":  {"jpg", "png", "webp"},
		"tiff": {"jpg", "png", "webp"},
		"svg":  {"png", "jpg"},
		"ico":  {"png", "jpg"},
	},
	MediaVideo: {
		"mp4":  {"webm", "mov", "avi"},
		"mov":  {"mp4", "webm", "avi"},
		"avi":  {"mp4", "webm", "mov"},
		"webm": {"mp4", "mov", "avi"},
		"mkv":  {"mp4", "webm", "avi"},
		"flv":  {"mp4", "webm", "avi"},
	},
	MediaAudio: {
		"mp3":  {"wav", "ogg", "aac", "flac"},
		"wav":  {"mp3", "ogg", "aac", "flac"},
		"ogg":  {"mp3", "wav", "aac", "flac"},
		"aac":  {"mp3", "wav", "ogg", "flac"},
		"flac": {"mp3", "wav", "ogg", "aac"},
		"m4a":  {"mp3", "wav", "ogg", "aac"},
	},
	MediaDocument: {
		"pdf":  {"doc", "docx", "txt", "html"},
		"doc":  {"pdf", "docx", "txt", "html"},
		"docx": {"pdf", "doc", "txt", "html"},
		"txt":  {"pdf", "html", "md"},
		"rtf":  {"pdf", "doc", "docx", "txt"},
		"odt":  {"pdf", "doc", "docx", "txt"},
		"html": {"pdf", "txt", "md"},
		"md":   {"html", "txt", "pdf"},
	},
}

// 下载时根据输出格式扩展名确定 Content-Type
var mimeTypes = map[string]string{
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"mkv":  "video/x-matroska",
	"flv":  "video/x-flv",
	"wmv":  "video/x-ms-wmv",
	"mpg":  "video/mpeg",
	"mpeg": "video/mpeg",
	"3gp":  "video/3gpp",
	"m4v":  "video/x-m4v",
	"ts":   "video/mp2t",
	"mts":  "video/mp2t",
	"ogg":  "video/ogg",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"aac":  "audio/aac",
	"flac": "audio/flac",
	"m4a":  "audio/mp4",
	"wma":  "audio/x-ms-wma",
	"opus": "audio/opus",
	"amr":  "audio/amr",
	"aiff": "audio/aiff",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// MIME 类型反查表。同一 MIME 对应多个扩展名时取格式列表中靠前的那个，
// 例如 video/mpeg 取 mpg 而不是 mpeg。
var extByMime = map[string]string{}

func init() {
	for _, mt := range []MediaType{MediaVideo, MediaAudio, MediaImage} {
		for _, f := range supportedFormats[mt] {
			mime, ok := mimeTypes[f]
			if !ok {
				continue
			}
			if _, exists := extByMime[mime]; !exists {
				extByMime[mime] = f
			}
		}
	}
}

// ExtensionByMime 将 Content-Type 反查为规范扩展名。
// quicktime、x-matroska 这类子类型不是扩展名，必须经过反查表归一。
func ExtensionByMime(contentType string) (string, bool) {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	ext, ok := extByMime[strings.ToLower(strings.TrimSpace(contentType))]
	return ext, ok
}

// Normalize 统一格式写法：转小写并去掉前导点
func Normalize(format string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
}

// SupportedFormats 返回指定媒体类型可识别的格式列表，未知类型返回 nil
func SupportedFormats(mediaType MediaType) []string {
	list, ok := supportedFormats[mediaType]
	if !ok {
		return nil
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// IsSupported 判断格式是否属于指定媒体类型的可识别集合
func IsSupported(mediaType MediaType, format string) bool {
	format = Normalize(format)
	for _, f := range supportedFormats[mediaType] {
		if f == format {
			return true
		}
	}
	return false
}

// IsMediaSupported 判断格式是否为视频或音频队列可接受的输出格式。
// 音视频队列共用一个转换后端，输出格式取两者的并集。
func IsMediaSupported(format string) bool {
	return IsSupported(MediaVideo, format) || IsSupported(MediaAudio, format)
}

// IsAudioFormat 判断是否为音频格式
func IsAudioFormat(format string) bool {
	return IsSupported(MediaAudio, format)
}

// LegalOutputs 返回指定输入格式的合法输出格式列表，未知输入返回 nil
func LegalOutputs(mediaType MediaType, inputFormat string) []string {
	table, ok := conversionTables[mediaType]
	if !ok {
		return nil
	}
	outputs, ok := table[Normalize(inputFormat)]
	if !ok {
		return nil
	}
	out := make([]string, len(outputs))
	copy(out, outputs)
	return out
}

// ConversionTable 返回指定媒体类型的完整转换表（拷贝），供格式发现接口使用
func ConversionTable(mediaType MediaType) map[string][]string {
	table, ok := conversionTables[mediaType]
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(table))
	for in, outs := range table {
		cp := make([]string, len(outs))
		copy(cp, outs)
		out[in] = cp
	}
	return out
}

// MimeType 根据格式扩展名返回 Content-Type，未知格式返回二进制流类型
func MimeType(format string) string {
	if mt, ok := mimeTypes[Normalize(format)]; ok {
		return mt
	}
	return "application/octet-stream"
}
