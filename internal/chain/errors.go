package chain

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// 部分 RPC 服务商以 JSON-RPC 错误码返回限流
const limitExceededCode = -32005

// IsRateLimited 判断错误是否为 RPC 限流
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return true
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == limitExceededCode {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "Too Many Requests")
}
