package model

import (
	"errors"
	"fmt"
	"time"
)

// 错误分类：调用方用 errors.Is 区分处理
var (
	// ErrInsufficientData 数据源最新完整读数早于周期起始日，本次运行中止
	ErrInsufficientData = errors.New("insufficient source data")
	// ErrPartialPeriod 严格模式下周期数据不完整
	ErrPartialPeriod = errors.New("partial billing period")
	// ErrDuplicatePeriod 台账中已存在该周期的块
	ErrDuplicatePeriod = errors.New("period already appended")
	// ErrLedgerLocked 台账文件被其他进程占用且重试耗尽
	ErrLedgerLocked = errors.New("ledger workbook locked")
)

// InsufficientDataError 携带周期与数据源游标上下文
type InsufficientDataError struct {
	PeriodTitle string
	IdealStart  time.Time
	LastDate    time.Time
	HasAnyData  bool
}

func (e *InsufficientDataError) Error() string {
	if !e.HasAnyData {
		return fmt.Sprintf("%s: 数据源无任何完整读数", e.PeriodTitle)
	}
	return fmt.Sprintf("%s: 数据源最新完整读数 %s 早于周期起始日 %s",
		e.PeriodTitle, e.LastDate.Format("2006-01-02"), e.IdealStart.Format("2006-01-02"))
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// PartialPeriodError 严格模式下拒绝写入不完整周期
type PartialPeriodError struct {
	PeriodTitle string
	IdealEnd    time.Time
	ActualEnd   time.Time
	MissingDays int
}

func (e *PartialPeriodError) Error() string {
	return fmt.Sprintf("%s: 周期数据不完整，截至 %s（缺 %d 天，应至 %s）",
		e.PeriodTitle, e.ActualEnd.Format("2006-01-02"), e.MissingDays, e.IdealEnd.Format("2006-01-02"))
}

func (e *PartialPeriodError) Unwrap() error { return ErrPartialPeriod }

// DuplicatePeriodError 携带已存在块所在行号
type DuplicatePeriodError struct {
	PeriodTitle string
	ExistingRow int
}

func (e *DuplicatePeriodError) Error() string {
	return fmt.Sprintf("%s: 台账第 %d 行已存在该周期", e.PeriodTitle, e.ExistingRow)
}

func (e *DuplicatePeriodError) Unwrap() error { return ErrDuplicatePeriod }

// LedgerLockedError 保存重试耗尽
type LedgerLockedError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *LedgerLockedError) Error() string {
	return fmt.Sprintf("台账 %s 被其他进程占用，重试 %d 次后放弃: %v", e.Path, e.Attempts, e.Err)
}

func (e *LedgerLockedError) Unwrap() error { return ErrLedgerLocked }
