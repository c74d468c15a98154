// Package fixture holds the built-in admin and demo members. They live in an
// in-memory store that Router consults ahead of the real backend, so the
// decision engine treats them like any other member.
package fixture

import (
	"strings"
	"time"

	"github.com/gymgate/server/internal/gymgate/access"
	"github.com/gymgate/server/internal/gymgate/clock"
	"github.com/gymgate/server/internal/gymgate/store/memory"
)

// Demo identifiers.
const (
	DemoActive           = "12345678"
	DemoBirthday         = "23456789"
	DemoThreeDay         = "34567890"
	DemoExpired          = "45678901"
	DemoSuspended        = "56789012"
	DemoExpiringIn5Days  = "67890123"
	DemoExpiringTomorrow = "78901234"
	DemoNoAccessesLeft   = "90123456"
)

type Options struct {
	// AdminKey is an identifier that always gets in. Empty disables it.
	AdminKey string

	// Demo adds the demo roster.
	Demo bool
}

// Roster builds the fixture members as of now. Enrollment windows are civil
// dates in loc, relative to today; weekly counters start in the current week.
func Roster(now time.Time, loc *time.Location, opt Options) []memory.Member {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	today := clock.StartOfDay(now, loc)
	weekStart := clock.StartOfISOWeek(now, loc)

	var out []memory.Member

	if key := strings.TrimSpace(opt.AdminKey); key != "" {
		out = append(out, memory.Member{
			Member: access.Member{ID: "admin", Identifier: key, Name: "Admin", LastName: "System", Active: true},
			Enrollment: &access.Enrollment{
				ID:                "admin",
				Modality:          access.ModalityFree,
				StartDate:         ptr(time.Date(1970, 1, 1, 0, 0, 0, 0, loc)),
				EndDate:           ptr(time.Date(9999, 12, 31, 0, 0, 0, 0, loc)),
				LastAccessResetAt: weekStart,
			},
		})
	}

	if !opt.Demo {
		return out
	}

	type demo struct {
		identifier, slug, name, lastName string
		active                           bool
		modality                         access.Modality
		start, end                       time.Time
		weekly                           int
		birth                            time.Time
	}
	monthAgo := today.AddDate(0, -1, 0)
	monthAhead := today.AddDate(0, 1, 0)
	born := func(years int) time.Time { return today.AddDate(-years, 1, 0) }

	demos := []demo{
		{DemoActive, "active", "Valentina", "González", true, access.ModalityFree, monthAgo, monthAhead, 0, born(25)},
		{DemoBirthday, "birthday", "Martina", "Rodríguez", true, access.ModalityTwo, monthAgo, monthAhead, 1, today.AddDate(-24, 0, 0)},
		{DemoThreeDay, "three", "Nicolás", "Pereyra", true, access.ModalityThree, monthAgo, monthAhead, 1, born(28)},
		{DemoExpired, "expired", "Florencia", "Aguirre", true, access.ModalityTwo, today.AddDate(0, -2, 0), monthAgo, 0, born(35)},
		{DemoSuspended, "suspended", "Luciano", "Sosa", false, access.ModalityTwo, monthAgo, monthAhead, 0, born(40)},
		{DemoExpiringIn5Days, "expiring-soon-5", "Camila", "Fernández", true, access.ModalityTwo, monthAgo, today.AddDate(0, 0, 5), 1, born(27)},
		{DemoExpiringTomorrow, "expiring-tomorrow", "Sebastián", "Giménez", true, access.ModalityTwo, monthAgo, today.AddDate(0, 0, 1), 0, born(32)},
		{DemoNoAccessesLeft, "no-access", "Antonella", "Acosta", true, access.ModalityTwo, monthAgo, monthAhead, 2, born(30)},
	}

	for _, d := range demos {
		id := "demo-" + d.slug
		out = append(out, memory.Member{
			Member: access.Member{
				ID:         id,
				Identifier: d.identifier,
				Name:       d.name,
				LastName:   d.lastName,
				BirthDate:  ptr(d.birth),
				Active:     d.active,
			},
			Enrollment: &access.Enrollment{
				ID:                id,
				Modality:          d.modality,
				StartDate:         ptr(d.start),
				EndDate:           ptr(d.end),
				WeeklyAccesses:    d.weekly,
				LastAccessResetAt: weekStart,
			},
		})
	}
	return out
}

func ptr(t time.Time) *time.Time { return &t }
