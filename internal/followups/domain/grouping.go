package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Dedupe drops repeated ids keeping the last occurrence of each. The result is
// ordered by the position of each id's last occurrence. removed counts the
// dropped records.
func Dedupe(items []FollowUp) (unique []FollowUp, removed int) {
	lastIndex := make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		lastIndex[item.ID] = i
	}

	unique = make([]FollowUp, 0, len(lastIndex))
	for i, item := range items {
		if lastIndex[item.ID] == i {
			unique = append(unique, item)
		}
	}
	return unique, len(items) - len(unique)
}

// Item is a follow-up with its display status at grouping time.
type Item struct {
	FollowUp
	Display DisplayStatus
}

// Counts aggregates the items of a group or a whole listing.
type Counts struct {
	Total      int `json:"total"`
	Scheduled  int `json:"scheduled"`
	InProgress int `json:"inProgress"`
	Overdue    int `json:"overdue"`
	Missed     int `json:"missed"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
}

func (c *Counts) add(d DisplayStatus) {
	c.Total++
	switch d {
	case DisplayScheduled:
		c.Scheduled++
	case DisplayInProgress:
		c.InProgress++
	case DisplayOverdue:
		c.Overdue++
	case DisplayMissed:
		c.Missed++
	case DisplayCompleted:
		c.Completed++
	case DisplayCancelled:
		c.Cancelled++
	}
}

// Summarize counts items by display status at now.
func Summarize(items []FollowUp, now time.Time) Counts {
	var c Counts
	for _, item := range items {
		c.add(item.DisplayStatus(now))
	}
	return c
}

// Group is the follow-ups of one subject. Name and Phone are filled in by the
// caller from the directory.
type Group struct {
	Key     string
	Subject SubjectRef
	Name    string
	Phone   string
	Items   []Item
	Counts  Counts

	hasScheduled bool
	nextDue      *time.Time
}

// HasScheduled reports whether any item in the group is persisted as scheduled.
func (g Group) HasScheduled() bool {
	return g.hasScheduled
}

// NextDue is the earliest scheduled date across the group's open items.
func (g Group) NextDue() (time.Time, bool) {
	if g.nextDue == nil {
		return time.Time{}, false
	}
	return *g.nextDue, true
}

// GroupBySubject groups items by subject and orders both the groups and their
// items. Items sort by display status rank, then date, then id, so completed
// work always trails open work. Groups with scheduled work come first, then
// by their earliest open date; groups with nothing open come last.
func GroupBySubject(items []FollowUp, now time.Time) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)

	for _, f := range items {
		key := f.Subject.Key()
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, Group{Key: key, Subject: f.Subject.Clone()})
		}
		g := &groups[pos]

		display := f.DisplayStatus(now)
		g.Items = append(g.Items, Item{FollowUp: f, Display: display})
		g.Counts.add(display)

		if f.Status == StatusScheduled {
			g.hasScheduled = true
		}
		if f.IsOpen() && (g.nextDue == nil || f.ScheduledDate.Before(*g.nextDue)) {
			due := f.ScheduledDate
			g.nextDue = &due
		}
	}

	for i := range groups {
		sortItems(groups[i].Items)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groupLess(groups[i], groups[j])
	})
	return groups
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if ra, rb := a.Display.Rank(), b.Display.Rank(); ra != rb {
			return ra < rb
		}
		if !a.ScheduledDate.Equal(b.ScheduledDate) {
			return a.ScheduledDate.Before(b.ScheduledDate)
		}
		return a.ID.String() < b.ID.String()
	})
}

func groupLess(a, b Group) bool {
	if a.hasScheduled != b.hasScheduled {
		return a.hasScheduled
	}
	switch {
	case a.nextDue != nil && b.nextDue == nil:
		return true
	case a.nextDue == nil && b.nextDue != nil:
		return false
	case a.nextDue != nil && b.nextDue != nil && !a.nextDue.Equal(*b.nextDue):
		return a.nextDue.Before(*b.nextDue)
	}
	return a.Key < b.Key
}

// Pagination describes one page of groups.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// Default and maximum page sizes for grouped listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Paginate returns page (1-based) of groups. Out-of-range pages are empty.
func Paginate(groups []Group, page, pageSize int) ([]Group, Pagination) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	total := len(groups)
	totalPages := (total + pageSize - 1) / pageSize
	meta := Pagination{Page: page, PageSize: pageSize, TotalItems: total, TotalPages: totalPages}

	// Compare pages before multiplying so huge page numbers cannot overflow.
	if page > totalPages {
		return []Group{}, meta
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}
	return groups[start:end], meta
}
