package ledger

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"waterledger/internal/model"
)

// RetryPolicy 保存重试策略
// 台账常被人在查看器里开着，保存会撞上文件锁；固定次数、固定间隔
// 重试，耗尽后以 ErrLedgerLocked 失败而不是丢弃本次结果。
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// SaveWithRetry 保存台账工作簿
// 仅文件占用类错误触发重试；其他 I/O 错误直接返回。
func SaveWithRetry(wb *excelize.File, path string, policy RetryPolicy) error {
	return saveWithRetry(func() error {
		return wb.SaveAs(path)
	}, path, policy)
}

func saveWithRetry(save func() error, path string, policy RetryPolicy) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(policy.Delay)
		}
		lastErr = save()
		if lastErr == nil {
			return nil
		}
		if !isLockError(lastErr) {
			return lastErr
		}
	}
	return &model.LedgerLockedError{Path: path, Attempts: attempts, Err: lastErr}
}

// isLockError 识别“文件被其他进程占用”类错误
// Windows 上表现为 sharing violation / used by another process，
// 网络盘上偶见 permission denied。
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && os.IsPermission(pathErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"being used by another process",
		"used by another process",
		"sharing violation",
		"permission denied",
		"resource temporarily unavailable",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
