package analytics

import (
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/sandwichproject/coordinator/internal/collections"
)

const (
	topHostLimit          = 10
	distributionLimit     = 8
	distributionNameRunes = 15
	noDataPeriod          = "No data"
	collectionDateLayout  = "2006-01-02"
)

// Palette assigns chart colours to distribution slices by rank.
var Palette = []string{
	"#0088FE", "#00C49F", "#FFBB28", "#FF8042", "#8884D8",
	"#82CA9D", "#FFC658", "#FF7C7C", "#8DD1E1", "#D084D0",
}

var (
	weekdays = [7]time.Weekday{
		time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
		time.Thursday, time.Friday, time.Saturday,
	}
	numberedGroupPattern = regexp.MustCompile(`^group \d+$`)
)

// Report is the complete dashboard view of a filtered collection log.
type Report struct {
	Summary          Summary         `json:"summary"`
	TopHosts         []HostTotal     `json:"topHosts"`
	MonthlyTrend     []MonthTotal    `json:"monthlyTrend"`
	WeeklyPattern    []WeekdayTotal  `json:"weeklyPattern"`
	HostDistribution []HostShare     `json:"hostDistribution"`
	QualityMetrics   QualityMetrics  `json:"qualityMetrics"`
	HistoricalSplit  HistoricalSplit `json:"historicalSplit"`
}

// DateRange is the earliest and latest collectionDate; empty when there are no records.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Summary struct {
	TotalCollections int       `json:"totalCollections"`
	TotalSandwiches  int       `json:"totalSandwiches"`
	UniqueHosts      int       `json:"uniqueHosts"`
	DateRange        DateRange `json:"dateRange"`
	AvgPerCollection int       `json:"avgPerCollection"`
}

type HostTotal struct {
	Host  string `json:"host"`
	Count int    `json:"count"`
	Total int    `json:"total"`
}

type MonthTotal struct {
	Month       string `json:"month"`
	Collections int    `json:"collections"`
	Sandwiches  int    `json:"sandwiches"`
}

type WeekdayTotal struct {
	Day         string `json:"day"`
	Collections int    `json:"collections"`
	Total       int    `json:"total"`
	Avg         int    `json:"avg"`
}

type HostShare struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

type QualityMetrics struct {
	WithGroups        int `json:"withGroups"`
	WithoutGroups     int `json:"withoutGroups"`
	MissingData       int `json:"missingData"`
	SuspiciousEntries int `json:"suspiciousEntries"`
}

// SplitSide describes one side of the historical split.
type SplitSide struct {
	Count  int    `json:"count"`
	Total  int    `json:"total"`
	Period string `json:"period"`
}

// HistoricalSplit separates legacy bulk-imported records from per-location ones.
type HistoricalSplit struct {
	OG       SplitSide `json:"og"`
	Location SplitSide `json:"location"`
}

// Compute filters records and aggregates the result. It is a pure function.
func Compute(records []collections.Collection, filter Filter) Report {
	return Aggregate(ApplyFilter(records, filter))
}

// Aggregate builds a Report from an already filtered list.
func Aggregate(records []collections.Collection) Report {
	topHosts := topHostTotals(records)
	return Report{
		Summary:          summarize(records),
		TopHosts:         topHosts,
		MonthlyTrend:     monthlyTrend(records),
		WeeklyPattern:    weeklyPattern(records),
		HostDistribution: hostDistribution(topHosts),
		QualityMetrics:   qualityMetrics(records),
		HistoricalSplit:  historicalSplit(records),
	}
}

func summarize(records []collections.Collection) Summary {
	summary := Summary{TotalCollections: len(records)}
	hosts := make(map[string]struct{}, len(records))
	var span dateSpan
	for _, record := range records {
		summary.TotalSandwiches += record.EffectiveTotal()
		hosts[record.HostName] = struct{}{}
		span.include(record.CollectionDate)
	}
	summary.UniqueHosts = len(hosts)
	summary.DateRange = DateRange{Start: span.start, End: span.end}
	summary.AvgPerCollection = roundedAverage(summary.TotalSandwiches, summary.TotalCollections)
	return summary
}

func topHostTotals(records []collections.Collection) []HostTotal {
	index := make(map[string]int)
	totals := make([]HostTotal, 0)
	for _, record := range records {
		position, seen := index[record.HostName]
		if !seen {
			position = len(totals)
			index[record.HostName] = position
			totals = append(totals, HostTotal{Host: record.HostName})
		}
		totals[position].Count++
		totals[position].Total += record.EffectiveTotal()
	}
	slices.SortStableFunc(totals, func(a, b HostTotal) int {
		return b.Total - a.Total
	})
	if len(totals) > topHostLimit {
		totals = totals[:topHostLimit]
	}
	return totals
}

func monthlyTrend(records []collections.Collection) []MonthTotal {
	index := make(map[string]int)
	months := make([]MonthTotal, 0)
	for _, record := range records {
		key := monthKey(record.CollectionDate)
		position, seen := index[key]
		if !seen {
			position = len(months)
			index[key] = position
			months = append(months, MonthTotal{Month: key})
		}
		months[position].Collections++
		months[position].Sandwiches += record.EffectiveTotal()
	}
	slices.SortStableFunc(months, func(a, b MonthTotal) int {
		return strings.Compare(a.Month, b.Month)
	})
	return months
}

func monthKey(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// weeklyPattern always yields seven buckets, Sunday first. Records whose
// date does not parse are left out.
func weeklyPattern(records []collections.Collection) []WeekdayTotal {
	var buckets [7]WeekdayTotal
	for _, record := range records {
		date, err := time.Parse(collectionDateLayout, strings.TrimSpace(record.CollectionDate))
		if err != nil {
			continue
		}
		bucket := &buckets[date.Weekday()]
		bucket.Collections++
		bucket.Total += record.EffectiveTotal()
	}
	pattern := make([]WeekdayTotal, 0, len(weekdays))
	for _, day := range weekdays {
		bucket := buckets[day]
		bucket.Day = day.String()
		bucket.Avg = roundedAverage(bucket.Total, bucket.Collections)
		pattern = append(pattern, bucket)
	}
	return pattern
}

func hostDistribution(topHosts []HostTotal) []HostShare {
	limit := min(len(topHosts), distributionLimit)
	shares := make([]HostShare, 0, limit)
	for rank, host := range topHosts[:limit] {
		shares = append(shares, HostShare{
			Name:  truncateName(host.Host),
			Value: host.Total,
			Color: Palette[rank%len(Palette)],
		})
	}
	return shares
}

func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= distributionNameRunes {
		return name
	}
	return string(runes[:distributionNameRunes]) + "..."
}

func qualityMetrics(records []collections.Collection) QualityMetrics {
	var metrics QualityMetrics
	for _, record := range records {
		if record.GroupTotal() > 0 {
			metrics.WithGroups++
		}
		if strings.TrimSpace(record.HostName) == "" || record.IndividualSandwiches == 0 {
			metrics.MissingData++
		}
		if suspiciousHost(record.HostName) {
			metrics.SuspiciousEntries++
		}
	}
	metrics.WithoutGroups = len(records) - metrics.WithGroups
	return metrics
}

func suspiciousHost(name string) bool {
	lowered := strings.ToLower(name)
	return strings.Contains(lowered, "test") ||
		strings.Contains(lowered, "duplicate") ||
		numberedGroupPattern.MatchString(lowered) ||
		strings.HasPrefix(lowered, "loc ")
}

func historicalSplit(records []collections.Collection) HistoricalSplit {
	var og, location splitAccumulator
	for _, record := range records {
		if record.IsReservedHost() {
			og.add(record)
			continue
		}
		location.add(record)
	}
	return HistoricalSplit{OG: og.side(), Location: location.side()}
}

type splitAccumulator struct {
	count int
	total int
	span  dateSpan
}

func (a *splitAccumulator) add(record collections.Collection) {
	a.count++
	a.total += record.EffectiveTotal()
	a.span.include(record.CollectionDate)
}

func (a splitAccumulator) side() SplitSide {
	period := noDataPeriod
	if a.count > 0 {
		period = a.span.start + " to " + a.span.end
	}
	return SplitSide{Count: a.count, Total: a.total, Period: period}
}

type dateSpan struct {
	start string
	end   string
	seen  bool
}

func (s *dateSpan) include(date string) {
	if !s.seen {
		s.start, s.end, s.seen = date, date, true
		return
	}
	if date < s.start {
		s.start = date
	}
	if date > s.end {
		s.end = date
	}
}

// roundedAverage rounds half up, and is 0 for an empty group.
func roundedAverage(total, count int) int {
	if count == 0 {
		return 0
	}
	return int(math.Floor(float64(total)/float64(count) + 0.5))
}
