package views

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/geocoder89/teamflow/internal/domain/task"
)

const (
	dateLayout = "2006-01-02"
	day        = 24 * time.Hour

	leadDays  = 2
	trailDays = 5
)

var ErrInvalidDate = errors.New("invalid date")

type Day struct {
	Date       string `json:"date"`
	Day        int    `json:"day"`
	Sunday     bool   `json:"sunday"`
	MonthStart bool   `json:"monthStart"`
}

type Bar struct {
	TaskID      string      `json:"taskId"`
	Title       string      `json:"title"`
	ProjectName string      `json:"projectName"`
	StartDate   string      `json:"startDate"`
	EndDate     string      `json:"endDate"`
	Status      task.Status `json:"status"`
	Label       string      `json:"label"`
	Color       string      `json:"color"`
	LeftPct     float64     `json:"leftPct"`
	WidthPct    float64     `json:"widthPct"`
}

type TimelineView struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Days    int    `json:"days"`
	Columns []Day  `json:"columns"`
	Bars    []Bar  `json:"bars"`
}

// Timeline lays tasks out on a day grid running from two days before the
// earliest start to five days after the latest end. With no tasks the grid
// is anchored on now's date.
func Timeline(tasks []task.Task, now time.Time) (TimelineView, error) {
	type span struct{ start, end time.Time }

	spans := make([]span, len(tasks))
	for i, t := range tasks {
		s, err := parseDate(t.StartDate)
		if err != nil {
			return TimelineView{}, fmt.Errorf("task %s start: %w", t.ID, err)
		}
		e, err := parseDate(t.EndDate)
		if err != nil {
			return TimelineView{}, fmt.Errorf("task %s end: %w", t.ID, err)
		}
		spans[i] = span{start: s, end: e}
	}

	var minDate, maxDate time.Time
	if len(spans) == 0 {
		today := now.UTC().Truncate(day)
		minDate, maxDate = today, today
	} else {
		minDate, maxDate = spans[0].start, spans[0].end
		for _, sp := range spans[1:] {
			if sp.start.Before(minDate) {
				minDate = sp.start
			}
			if sp.end.After(maxDate) {
				maxDate = sp.end
			}
		}
	}

	minDate = minDate.AddDate(0, 0, -leadDays)
	maxDate = maxDate.AddDate(0, 0, trailDays)

	days := int(ceilDays(absDuration(maxDate.Sub(minDate)))) + 1

	view := TimelineView{
		Start:   minDate.Format(dateLayout),
		End:     maxDate.Format(dateLayout),
		Days:    days,
		Columns: make([]Day, 0, days),
		Bars:    make([]Bar, 0, len(tasks)),
	}

	for i := 0; i < days; i++ {
		d := minDate.AddDate(0, 0, i)
		view.Columns = append(view.Columns, Day{
			Date:       d.Format(dateLayout),
			Day:        d.Day(),
			Sunday:     d.Weekday() == time.Sunday,
			MonthStart: d.Day() == 1,
		})
	}

	for i, t := range tasks {
		sp := spans[i]
		offset := ceilDays(sp.start.Sub(minDate))
		// an end before the start would otherwise draw backwards
		duration := math.Max(ceilDays(sp.end.Sub(sp.start))+1, 0)

		view.Bars = append(view.Bars, Bar{
			TaskID:      t.ID,
			Title:       t.Title,
			ProjectName: t.ProjectName,
			StartDate:   t.StartDate,
			EndDate:     t.EndDate,
			Status:      t.Status,
			Label:       t.Status.Label(),
			Color:       t.Status.Color(),
			LeftPct:     offset / float64(days) * 100,
			WidthPct:    duration / float64(days) * 100,
		})
	}

	return view, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

func ceilDays(d time.Duration) float64 {
	return math.Ceil(float64(d) / float64(day))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
