package calendar

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

// maxOccurrences caps how many instances one recurring event may expand to.
const maxOccurrences = 1000

type parsedEvent struct {
	uid          string
	summary      string
	start        time.Time
	allDay       bool
	lastModified time.Time
	rrule        string
	exDates      []time.Time
	recurrenceID *time.Time
}

// Parse reads an ICS payload and returns its events in w. Recurring events
// are expanded into one Event per occurrence with an ExternalID of
// "<UID>/<RFC3339 start>". VEVENTs whose start cannot be read are skipped and
// counted; floating times are interpreted in loc.
func Parse(body []byte, w Window, loc *time.Location) (Result, error) {
	if len(body) == 0 {
		return Result{}, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse calendar: %w", err)
	}

	var res Result
	var parsed []parsedEvent
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(ve, loc)
		if err != nil {
			slog.Warn("Skipping malformed event", "error", err)
			res.Skipped++
			continue
		}
		parsed = append(parsed, ev)
	}

	// RECURRENCE-ID overrides replace the generated occurrence with the same id.
	overrides := make(map[string]Event)
	for _, ev := range parsed {
		if ev.recurrenceID != nil {
			overrides[occurrenceID(ev.uid, *ev.recurrenceID)] = ev.event(occurrenceID(ev.uid, *ev.recurrenceID), ev.start)
		}
	}

	for _, ev := range parsed {
		if ev.recurrenceID != nil {
			continue
		}
		if ev.rrule == "" {
			if ev.start.Before(w.Since) {
				continue
			}
			res.Events = append(res.Events, ev.event(ev.uid, ev.start))
			continue
		}

		occurrences, err := expand(ev, w)
		if err != nil {
			slog.Warn("Skipping event with bad recurrence rule", "uid", ev.uid, "rrule", ev.rrule, "error", err)
			res.Skipped++
			continue
		}
		for _, at := range occurrences {
			id := occurrenceID(ev.uid, at)
			if o, ok := overrides[id]; ok {
				res.Events = append(res.Events, o)
				continue
			}
			res.Events = append(res.Events, ev.event(id, at))
		}
	}

	return res, nil
}

func (p parsedEvent) event(id string, start time.Time) Event {
	return Event{
		ExternalID:   id,
		Title:        p.summary,
		Start:        start,
		AllDay:       p.allDay,
		LastModified: p.lastModified,
	}
}

func occurrenceID(uid string, at time.Time) string {
	return uid + "/" + at.UTC().Format(time.RFC3339)
}

func expand(ev parsedEvent, w Window) ([]time.Time, error) {
	r, err := rrule.StrToRRule(ev.rrule)
	if err != nil {
		return nil, err
	}
	r.DTStart(ev.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.exDates {
		set.ExDate(ex.In(ev.start.Location()))
	}

	until := w.Until
	if until.IsZero() {
		until = w.Since.AddDate(2, 0, 0)
	}
	occ := set.Between(w.Since.In(ev.start.Location()), until.In(ev.start.Location()), true)
	if len(occ) > maxOccurrences {
		slog.Warn("Truncating recurring event", "uid", ev.uid, "occurrences", len(occ), "cap", maxOccurrences)
		occ = occ[:maxOccurrences]
	}
	return occ, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (parsedEvent, error) {
	var out parsedEvent

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.summary = strings.TrimSpace(p.Value)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	out.allDay = isDateValue(dtStart)

	var err error
	if out.allDay {
		out.start, err = time.ParseInLocation("20060102", strings.TrimSpace(dtStart.Value), loc)
	} else {
		out.start, err = ve.GetStartAt()
		if err == nil && isFloating(dtStart) {
			out.start = inLocation(out.start, loc)
		}
	}
	if err != nil {
		return out, fmt.Errorf("bad DTSTART %q: %w", dtStart.Value, err)
	}

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil && strings.TrimSpace(p.Value) != "" {
		out.uid = strings.TrimSpace(p.Value)
	} else {
		out.uid = Fingerprint(out.summary, out.start)
	}

	// DTSTAMP is often the export time of the whole feed, so it says nothing
	// about when the event changed. Without LAST-MODIFIED the timestamp stays
	// zero and the local copy wins.
	if t, err := ve.GetLastModifiedAt(); err == nil {
		out.lastModified = t
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.rrule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, tzOf(p, loc)); err == nil {
				out.exDates = append(out.exDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		if t, err := parseICSTime(p.Value, tzOf(p, loc)); err == nil {
			out.recurrenceID = &t
		}
	}

	return out, nil
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func isFloating(p *ical.IANAProperty) bool {
	_, hasTZ := p.ICalParameters["TZID"]
	return !hasTZ && !strings.HasSuffix(strings.TrimSpace(p.Value), "Z")
}

func tzOf(p *ical.IANAProperty, fallback *time.Location) *time.Location {
	if tz, ok := p.ICalParameters["TZID"]; ok && len(tz) == 1 {
		if l, err := time.LoadLocation(tz[0]); err == nil {
			return l
		}
	}
	return fallback
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
}

// parseICSTime parses a bare ICS date or date-time value.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
