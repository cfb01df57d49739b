package metadata

import (
	"strings"
)

// PointerKind 元数据指针类型
type PointerKind int

const (
	KindUnknown    PointerKind = iota // 无法识别
	KindDataURI                       // data:application/json;base64,...
	KindIPFS                          // ipfs://<cid>
	KindHTTP                          // http(s)://...
	KindInlineJSON                    // 直接存储的 JSON 文本
)

func (k PointerKind) String() string {
	switch k {
	case KindDataURI:
		return "data-uri"
	case KindIPFS:
		return "ipfs"
	case KindHTTP:
		return "http"
	case KindInlineJSON:
		return "inline-json"
	default:
		return "unknown"
	}
}

// Classify 按固定优先级识别指针类型
func Classify(uri string) PointerKind {
	switch {
	case strings.HasPrefix(uri, "data:application/json"):
		return KindDataURI
	case strings.HasPrefix(uri, "ipfs://"):
		return KindIPFS
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return KindHTTP
	case strings.HasPrefix(uri, "{"), strings.HasPrefix(uri, "["):
		return KindInlineJSON
	default:
		return KindUnknown
	}
}
