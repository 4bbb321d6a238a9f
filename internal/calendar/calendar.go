package calendar

import (
	"sort"
	"sync"
	"time"

	"github.com/ucsindex/ucs/internal/domain"
)

// DefaultLookback bounds PreviousBusinessDay when the caller passes a non-positive limit.
const DefaultLookback = 14

// Holiday is a named non-business date.
type Holiday struct {
	Date time.Time `json:"date"`
	Name string    `json:"name"`
}

type fixedHoliday struct {
	month     time.Month
	day       int
	name      string
	sinceYear int
}

var fixedHolidays = []fixedHoliday{
	{time.January, 1, "Confraternização Universal", 0},
	{time.April, 21, "Tiradentes", 0},
	{time.May, 1, "Dia do Trabalho", 0},
	{time.September, 7, "Independência do Brasil", 0},
	{time.October, 12, "Nossa Senhora Aparecida", 0},
	{time.November, 2, "Finados", 0},
	{time.November, 15, "Proclamação da República", 0},
	{time.November, 20, "Consciência Negra", 2024},
	{time.December, 25, "Natal", 0},
}

// Offsets from Easter Sunday, in days.
var movingHolidays = []struct {
	offset int
	name   string
}{
	{-48, "Carnaval (segunda-feira)"},
	{-47, "Carnaval (terça-feira)"},
	{-2, "Sexta-feira Santa"},
	{60, "Corpus Christi"},
}

// Calendar decides which dates are eligible for authoritative writes.
// Holiday sets are computed once per year and memoized.
type Calendar struct {
	extra map[time.Time]string

	mu     sync.RWMutex
	byYear map[int]map[time.Time]string
}

// New creates a calendar with the Brazilian national holidays plus any extra dates.
func New(extra ...time.Time) *Calendar {
	c := &Calendar{
		extra:  make(map[time.Time]string, len(extra)),
		byYear: make(map[int]map[time.Time]string),
	}
	for _, d := range extra {
		c.extra[domain.DateOf(d)] = "Feriado adicional"
	}
	return c
}

// Easter returns Easter Sunday of the given year (Meeus/Jones/Butcher algorithm).
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func (c *Calendar) holidaysFor(year int) map[time.Time]string {
	c.mu.RLock()
	set, ok := c.byYear[year]
	c.mu.RUnlock()
	if ok {
		return set
	}

	set = make(map[time.Time]string)
	for _, h := range fixedHolidays {
		if year < h.sinceYear {
			continue
		}
		set[time.Date(year, h.month, h.day, 0, 0, 0, 0, time.UTC)] = h.name
	}
	easter := Easter(year)
	for _, h := range movingHolidays {
		set[easter.AddDate(0, 0, h.offset)] = h.name
	}
	for d, name := range c.extra {
		if d.Year() == year {
			set[d] = name
		}
	}

	c.mu.Lock()
	c.byYear[year] = set
	c.mu.Unlock()
	return set
}

// Holidays lists the holidays of a year in date order.
func (c *Calendar) Holidays(year int) []Holiday {
	set := c.holidaysFor(year)
	out := make([]Holiday, 0, len(set))
	for d, name := range set {
		out = append(out, Holiday{Date: d, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// HolidayName returns the holiday name for date, if it is one.
func (c *Calendar) HolidayName(date time.Time) (string, bool) {
	d := domain.DateOf(date)
	name, ok := c.holidaysFor(d.Year())[d]
	return name, ok
}

// IsBusinessDay reports whether date is a weekday that is not a holiday.
func (c *Calendar) IsBusinessDay(date time.Time) bool {
	d := domain.DateOf(date)
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	_, holiday := c.HolidayName(d)
	return !holiday
}

// PreviousBusinessDay returns the closest business day strictly before date,
// looking back at most maxLookback days.
func (c *Calendar) PreviousBusinessDay(date time.Time, maxLookback int) (time.Time, bool) {
	if maxLookback <= 0 {
		maxLookback = DefaultLookback
	}
	d := domain.DateOf(date)
	for i := 1; i <= maxLookback; i++ {
		candidate := d.AddDate(0, 0, -i)
		if c.IsBusinessDay(candidate) {
			return candidate, true
		}
	}
	return time.Time{}, false
}
