package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateNextBarTime(t *testing.T) {
	loc := time.UTC

	// 10:07 → 下一个5分钟对齐点是10:10
	now := time.Date(2024, 6, 1, 10, 7, 30, 0, loc)
	next := calculateNextBarTime(now, 5*time.Minute)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 10, 0, 0, loc), next)

	// 正好在对齐点上也推进到下一个周期
	now = time.Date(2024, 6, 1, 10, 10, 0, 0, loc)
	next = calculateNextBarTime(now, 5*time.Minute)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 15, 0, 0, loc), next)

	// 跨小时：10:58的下一个15分钟对齐点是11:00
	now = time.Date(2024, 6, 1, 10, 58, 0, 0, loc)
	next = calculateNextBarTime(now, 15*time.Minute)
	assert.Equal(t, time.Date(2024, 6, 1, 11, 0, 0, 0, loc), next)

	// 跨天
	now = time.Date(2024, 6, 1, 23, 59, 0, 0, loc)
	next = calculateNextBarTime(now, 5*time.Minute)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, loc), next)

	// 1小时周期
	now = time.Date(2024, 6, 1, 10, 20, 0, 0, loc)
	next = calculateNextBarTime(now, time.Hour)
	assert.Equal(t, time.Date(2024, 6, 1, 11, 0, 0, 0, loc), next)
}

func TestCalculateNextBarTimeOddPeriods(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 6, 1, 10, 7, 0, 0, loc)

	// 秒级周期无法按分钟对齐，退化为简单加周期
	next := calculateNextBarTime(now, 30*time.Second)
	assert.Equal(t, now.Add(30*time.Second), next)

	// 超过1小时同理
	next = calculateNextBarTime(now, 4*time.Hour)
	assert.Equal(t, now.Add(4*time.Hour), next)
}
