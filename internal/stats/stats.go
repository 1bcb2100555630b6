// Package stats aggregates completion statistics over the stored reminders.
package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jmhodges/clock"

	"github.com/conorfennell/wristreminder/internal/domain"
	"github.com/conorfennell/wristreminder/internal/storage"
)

// Days is how many days of history a summary covers, today included.
const Days = 7

// Querier is the storage the summary is computed from. *storage.DB satisfies it.
type Querier interface {
	CountByCompletion(ctx context.Context) (completed, pending int, err error)
	CountOnDate(ctx context.Context, date string) (total, completed int, err error)
	CompletedPerDate(ctx context.Context, from, to string) ([]storage.DateCount, error)
	CompletedPerPriority(ctx context.Context) ([]storage.PriorityCount, error)
}

// Day is the completion count for one date.
type Day struct {
	Date    string `json:"date"`
	Label   string `json:"label"`
	Weekday string `json:"weekday"`
	Count   int    `json:"count"`
}

// PriorityStat is the completion count for one priority.
type PriorityStat struct {
	Priority int    `json:"priority"`
	Label    string `json:"label"`
	Count    int    `json:"count"`
}

// Summary is the aggregate view shown on the statistics screen.
type Summary struct {
	Total          int            `json:"total"`
	Completed      int            `json:"completed"`
	Pending        int            `json:"pending"`
	CompletionRate float64        `json:"completion_rate"`
	Daily          []Day          `json:"daily"`
	ByPriority     []PriorityStat `json:"by_priority"`
	TodayTotal     int            `json:"today_total"`
	TodayRate      float64        `json:"today_rate"`
}

type Service struct {
	q   Querier
	clk clock.Clock
	loc *time.Location
}

func NewService(q Querier, clk clock.Clock, loc *time.Location) *Service {
	if clk == nil {
		clk = clock.New()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{q: q, clk: clk, loc: loc}
}

// Summary computes the statistics as of now. The daily series always has
// Days entries, oldest first, with zero for days without completions. Every
// priority level appears in ByPriority; unknown priorities count as Normal.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	var err error

	sum.Completed, sum.Pending, err = s.q.CountByCompletion(ctx)
	if err != nil {
		return Summary{}, err
	}
	sum.Total = sum.Completed + sum.Pending
	sum.CompletionRate = rate(sum.Completed, sum.Total)

	now := s.clk.Now().In(s.loc)
	today := now.Format(domain.DateLayout)
	first := now.AddDate(0, 0, -(Days - 1))

	perDate, err := s.q.CompletedPerDate(ctx, first.Format(domain.DateLayout), today)
	if err != nil {
		return Summary{}, err
	}
	counts := make(map[string]int, len(perDate))
	for _, dc := range perDate {
		counts[dc.Date] = dc.Count
	}
	for i := 0; i < Days; i++ {
		d := first.AddDate(0, 0, i)
		date := d.Format(domain.DateLayout)
		sum.Daily = append(sum.Daily, Day{
			Date:    date,
			Label:   d.Format("01/02"),
			Weekday: d.Format("Mon"),
			Count:   counts[date],
		})
	}

	perPriority, err := s.q.CompletedPerPriority(ctx)
	if err != nil {
		return Summary{}, err
	}
	byPriority := make(map[int]int, len(perPriority))
	for _, pc := range perPriority {
		p := pc.Priority
		if p < domain.PriorityLow || p > domain.PriorityUrgent {
			p = domain.PriorityNormal
		}
		byPriority[p] += pc.Count
	}
	for _, p := range []int{domain.PriorityLow, domain.PriorityNormal, domain.PriorityUrgent} {
		sum.ByPriority = append(sum.ByPriority, PriorityStat{
			Priority: p,
			Label:    domain.DescribePriority(p),
			Count:    byPriority[p],
		})
	}

	var todayCompleted int
	sum.TodayTotal, todayCompleted, err = s.q.CountOnDate(ctx, today)
	if err != nil {
		return Summary{}, err
	}
	sum.TodayRate = rate(todayCompleted, sum.TodayTotal)

	return sum, nil
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// FormatRate renders a rate in [0, 1] as a whole percentage.
func FormatRate(r float64) string {
	return fmt.Sprintf("%.0f%%", math.Round(r*100))
}
