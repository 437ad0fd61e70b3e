package listing

import (
	"fmt"
	"strings"
)

// Sort is the feed ordering.
type Sort string

const (
	SortHot           Sort = "hot"
	SortNew           Sort = "new"
	SortRising        Sort = "rising"
	SortControversial Sort = "controversial"
	SortTop           Sort = "top"
	SortBest          Sort = "best"
)

// Sorts lists every valid Sort.
var Sorts = []Sort{SortHot, SortNew, SortRising, SortControversial, SortTop, SortBest}

// Timeframe restricts top/controversial feeds to a period.
type Timeframe string

const (
	TimeframeAll   Timeframe = "all"
	TimeframeDay   Timeframe = "day"
	TimeframeHour  Timeframe = "hour"
	TimeframeMonth Timeframe = "month"
	TimeframeWeek  Timeframe = "week"
	TimeframeYear  Timeframe = "year"
)

// Timeframes lists every valid Timeframe.
var Timeframes = []Timeframe{TimeframeAll, TimeframeDay, TimeframeHour, TimeframeMonth, TimeframeWeek, TimeframeYear}

// ParseSort validates s.
func ParseSort(s string) (Sort, error) {
	for _, v := range Sorts {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid sort: %s (must be one of %s)", s, joinSorts())
}

// ParseTimeframe validates s.
func ParseTimeframe(s string) (Timeframe, error) {
	for _, v := range Timeframes {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid timeframe: %s (must be one of %s)", s, joinTimeframes())
}

// Query selects a page of a community feed.
type Query struct {
	Community string
	Sort      Sort
	Timeframe Timeframe
	Limit     int
}

// Validate checks every field of q.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Community) == "" {
		return fmt.Errorf("community is required")
	}
	if strings.ContainsAny(q.Community, "/?#") {
		return fmt.Errorf("invalid community: %q", q.Community)
	}
	if _, err := ParseSort(string(q.Sort)); err != nil {
		return err
	}
	if _, err := ParseTimeframe(string(q.Timeframe)); err != nil {
		return err
	}
	if q.Limit <= 0 {
		return fmt.Errorf("limit must be a positive integer, got %d", q.Limit)
	}
	return nil
}

func joinSorts() string {
	names := make([]string, len(Sorts))
	for i, s := range Sorts {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func joinTimeframes() string {
	names := make([]string, len(Timeframes))
	for i, t := range Timeframes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
