package store

import (
	"time"

	"github.com/google/uuid"
)

// 运行状态
const (
	RunStatusAppended = "appended"
	RunStatusSkipped  = "skipped_duplicate"
	RunStatusFailed   = "failed"
)

// RunRecord 一次运行的归档记录
type RunRecord struct {
	ID           string
	Year         int
	Month        int
	PeriodTitle  string
	IsPartial    bool
	ExpectedDays int
	ActualDays   int
	Status       string
	WarningCount int
	Message      string
	CreatedAt    time.Time
}

// SaveRun 写入一条运行记录，返回生成的运行 ID
func (s *Store) SaveRun(r *RunRecord) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, year, month, period_title, is_partial, expected_days, actual_days, status, warning_count, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Year, r.Month, r.PeriodTitle, boolToInt(r.IsPartial),
		r.ExpectedDays, r.ActualDays, r.Status, r.WarningCount, r.Message, r.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// RecentRuns 返回最近的运行记录（新在前）
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, year, month, period_title, is_partial, expected_days, actual_days, status, warning_count, message, created_at
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var partial int
		if err := rows.Scan(&r.ID, &r.Year, &r.Month, &r.PeriodTitle, &partial,
			&r.ExpectedDays, &r.ActualDays, &r.Status, &r.WarningCount, &r.Message, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.IsPartial = partial != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
