// Package ical renders calendar entries as an iCalendar feed.
package ical

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	goical "github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/dukerupert/sitecal/internal/model"
)

const (
	prodID  = "-//dukerupert//sitecal//EN"
	version = "2.0"

	propCalName = "X-WR-CALNAME"
)

// uidSpace namespaces the name-based VEVENT UIDs.
var uidSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://sitecal/events"))

// Encode writes events as a VCALENDAR named name. now stamps every VEVENT.
// An empty list still produces a valid calendar.
func Encode(w io.Writer, name string, events []model.EventSummary, now time.Time) error {
	cal := goical.NewCalendar()
	cal.Props = calendarProps(name)
	if len(events) == 0 {
		_, err := io.WriteString(w, emptyCalendar(cal.Props))
		return err
	}

	stamp := goical.NewProp(goical.PropDateTimeStamp)
	stamp.SetDateTime(now.UTC())

	for _, ev := range events {
		vevent := goical.NewEvent()
		vevent.Props.SetText(goical.PropUID, UID(ev))
		vevent.Props.Set(stamp)
		vevent.Props.SetText(goical.PropSummary, ev.Title)

		start := goical.NewProp(goical.PropDateTimeStart)
		end := goical.NewProp(goical.PropDateTimeEnd)
		if ev.AllDay {
			start.SetDate(ev.Start)
			end.SetDate(allDayEnd(ev))
		} else {
			start.SetDateTime(ev.Start.UTC())
			end.SetDateTime(ev.End.UTC())
		}
		vevent.Props.Set(start)
		vevent.Props.Set(end)

		if ev.Location != "" {
			vevent.Props.SetText(goical.PropLocation, ev.Location)
		}
		if ev.Description != "" {
			vevent.Props.SetText(goical.PropDescription, ev.Description)
		}
		if len(ev.Tags) > 0 {
			// CATEGORIES is a list; SetText would escape the separators.
			cats := goical.NewProp(goical.PropCategories)
			escaped := make([]string, len(ev.Tags))
			for i, tag := range ev.Tags {
				escaped[i] = escapeText(tag)
			}
			cats.Value = strings.Join(escaped, ",")
			vevent.Props.Set(cats)
		}

		cal.Children = append(cal.Children, vevent.Component)
	}

	if err := goical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

// UID is stable for a given event, materialized occurrence and start day so
// clients can track an occurrence across feed refreshes.
func UID(ev model.EventSummary) string {
	key := strconv.FormatInt(ev.EventID, 10)
	if ev.OccurrenceID != nil {
		key += "/o" + strconv.FormatInt(*ev.OccurrenceID, 10)
	}
	key += "/" + ev.Start.UTC().Format("20060102")
	return uuid.NewSHA1(uidSpace, []byte(key)).String()
}

// allDayEnd returns the exclusive DTEND day of an all-day entry.
func allDayEnd(ev model.EventSummary) time.Time {
	end := ev.End
	if !end.After(ev.Start) {
		return ev.Start.AddDate(0, 0, 1)
	}
	y, m, d := end.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, end.Location())
	if day.Equal(end) {
		return day
	}
	return day.AddDate(0, 0, 1)
}

func escapeText(s string) string {
	r := strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\n", `\n`)
	return r.Replace(s)
}

func calendarProps(name string) goical.Props {
	props := make(goical.Props)
	props.SetText(goical.PropVersion, version)
	props.SetText(goical.PropProductID, prodID)
	props.SetText(goical.PropCalendarScale, "GREGORIAN")
	if name != "" {
		props.SetText(goical.PropName, name)
		// SetText would tag the extension property with VALUE=TEXT.
		calName := goical.NewProp(propCalName)
		calName.Value = escapeText(name)
		props.Set(calName)
	}
	return props
}

// emptyCalendar serializes a calendar with no components, which the go-ical
// encoder refuses. Properties are written in the encoder's sorted order.
func emptyCalendar(props goical.Props) string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("BEGIN:" + goical.CompCalendar + "\r\n")
	for _, name := range names {
		for _, prop := range props[name] {
			b.WriteString(prop.Name)
			for _, param := range sortedKeys(prop.Params) {
				b.WriteString(";" + param + "=" + strings.Join(prop.Params[param], ","))
			}
			b.WriteString(":" + prop.Value + "\r\n")
		}
	}
	b.WriteString("END:" + goical.CompCalendar + "\r\n")
	return b.String()
}

func sortedKeys(params goical.Params) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
