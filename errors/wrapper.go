package errors

import (
	"context"
	"fmt"
	"runtime"

	"gobank/logging"
)

// Wrap 包装错误并附加错误码，在 Debug 级别记录调用位置
func Wrap(ctx context.Context, err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	logging.GetLogger().Debug(ctx, "wrap error",
		logging.String("message", msg),
		logging.String("location", fmt.Sprintf("%s:%d", file, line)),
	)
	return WrapError(err, code, msg)
}

// WrapWithLog 包装错误并立即以 Warn 级别记录
func WrapWithLog(ctx context.Context, err error, code ErrorCode, msg string, fields ...logging.Field) error {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	all := append([]logging.Field{
		logging.Error(err),
		logging.String("error_code", string(code)),
		logging.String("location", fmt.Sprintf("%s:%d", file, line)),
	}, fields...)
	logging.GetLogger().Warn(ctx, msg, all...)
	return WrapError(err, code, msg)
}

// WrapDatabaseError 包装数据库错误，已是 NotFound 的错误保留其错误码
func WrapDatabaseError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) {
		return WrapError(err, ErrCodeNotFound, operation)
	}
	return WrapWithLog(ctx, err, ErrCodeDatabase,
		fmt.Sprintf("database operation failed: %s", operation),
		logging.String("operation", operation),
	)
}
