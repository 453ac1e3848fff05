package model

import (
	"fmt"
	"time"
)

// Subscription is an active-access record created once a pending payment is confirmed.
// Days/hours remaining may be computed by the upstream; when they are absent they are
// derived from the dates.
type Subscription struct {
	ID             int64     `json:"id,omitempty"`
	OfferName      string    `json:"offer_name"`
	OfferType      OfferType `json:"offer_type"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	DaysRemaining  *int      `json:"days_remaining,omitempty"`
	HoursRemaining *int      `json:"hours_remaining,omitempty"`
	TelegramAdded  bool      `json:"telegram_added"`
	DiscordAdded   bool      `json:"discord_added"`
	IsActiveNow    bool      `json:"is_active_now"`
}

// ProgressElapsedPercent returns how much of [start, end] has elapsed at now, clamped to [0, 100].
func ProgressElapsedPercent(start, end, now time.Time) float64 {
	if !now.After(start) {
		return 0
	}
	if !now.Before(end) {
		return 100
	}
	total := end.Sub(start)
	if total <= 0 {
		return 100
	}
	pct := float64(now.Sub(start)) / float64(total) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func (s *Subscription) ElapsedPercent(now time.Time) float64 {
	return ProgressElapsedPercent(s.StartDate, s.EndDate, now)
}

// RemainingPercent is what the "time remaining" bar shows.
func (s *Subscription) RemainingPercent(now time.Time) float64 {
	return 100 - s.ElapsedPercent(now)
}

// Remaining returns the days and hours left, preferring the upstream values.
func (s *Subscription) Remaining(now time.Time) (days, hours int) {
	left := s.EndDate.Sub(now)
	if left < 0 {
		left = 0
	}
	days = int(left.Hours() / 24)
	hours = int(left.Hours())
	if s.DaysRemaining != nil {
		days = *s.DaysRemaining
	}
	if s.HoursRemaining != nil {
		hours = *s.HoursRemaining
	}
	return days, hours
}

// TimeRemainingLabel renders days when at least one day is left, hours otherwise.
func (s *Subscription) TimeRemainingLabel(now time.Time) string {
	days, hours := s.Remaining(now)
	if days > 0 {
		if days == 1 {
			return "1 day left"
		}
		return fmt.Sprintf("%d days left", days)
	}
	if hours == 1 {
		return "1 hour left"
	}
	return fmt.Sprintf("%d hours left", hours)
}
