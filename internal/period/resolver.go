// Package period 结算周期解析：上月25日～本月24日的滚动计费周期。
package period

import (
	"time"

	"waterledger/internal/model"
)

// SourceCursor 数据源游标：报告最近一条完整读数的日期
// “完整”由数据源侧定义（行存在且任一探测监控点读数非零）。
type SourceCursor interface {
	LatestComplete() (date time.Time, ok bool, err error)
}

// Resolve 计算目标年月的结算周期并依据数据源确定实际截止日
//
// 理想起始日为上月 25 日，理想截止日为本月 24 日（1 月周期跨年）。
// 数据源最新完整读数早于理想截止日时，周期标记为不完整并以该日期
// 为实际截止日；早于理想起始日则返回 ErrInsufficientData。
func Resolve(year, month int, cursor SourceCursor) (*model.BillingPeriod, error) {
	idealStart := time.Date(year, time.Month(month-1), 25, 0, 0, 0, 0, time.UTC)
	idealEnd := time.Date(year, time.Month(month), 24, 0, 0, 0, 0, time.UTC)
	expected := dayCount(idealStart, idealEnd)

	p := &model.BillingPeriod{
		Year:             year,
		Month:            month,
		IdealStart:       idealStart,
		IdealEnd:         idealEnd,
		ExpectedDayCount: expected,
	}

	last, ok, err := cursor.LatestComplete()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &model.InsufficientDataError{
			PeriodTitle: p.Title(),
			IdealStart:  idealStart,
		}
	}
	last = truncateDay(last)

	switch {
	case !last.Before(idealEnd):
		p.ActualEnd = idealEnd
	case !last.Before(idealStart):
		p.ActualEnd = last
		p.IsPartial = true
	default:
		return nil, &model.InsufficientDataError{
			PeriodTitle: p.Title(),
			IdealStart:  idealStart,
			LastDate:    last,
			HasAnyData:  true,
		}
	}

	p.ActualDayCount = dayCount(idealStart, p.ActualEnd)
	return p, nil
}

func dayCount(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
