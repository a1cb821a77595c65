package util

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// IsTransientError 判断错误是否属于"存储暂不可用"一类（连接、超时）
// 返回: (isTransient, errorType)
func IsTransientError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	// Context - 调用方取消不算存储故障
	if errors.Is(err, context.Canceled) {
		return false, "context_canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true, "connection_error"
	}

	// Network errors
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "database is locked"), strings.Contains(errStr, "busy"):
		return true, "db_busy"
	case strings.Contains(errStr, "connection"), strings.Contains(errStr, "timeout"):
		return true, "db_connection_error"
	case strings.Contains(errStr, "closed pool"), strings.Contains(errStr, "database is closed"):
		return true, "db_closed"
	}

	// 默认：未知错误，不视为暂时性故障
	return false, "unknown_error"
}
