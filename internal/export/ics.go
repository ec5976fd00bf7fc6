// Package export renders starred events for external calendar apps.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/timeutil"
)

// ICSProductID identifies generated calendars.
const ICSProductID = "-//Chizu//Campus Calendar//EN"

// DefaultDuration is the length given to timed events, which carry no end.
const DefaultDuration = time.Hour

// Options controls calendar generation.
type Options struct {
	Name string
	// LocationName resolves an event's location relation for the LOCATION
	// property. Optional.
	LocationName func(id int64) (string, bool)
	Now          func() time.Time
}

// WriteICS writes events as an iCalendar feed and returns how many events
// were emitted. Events without a parseable date are skipped.
func WriteICS(w io.Writer, events []model.Event, opts Options) (int, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	name := opts.Name
	if name == "" {
		name = "Starred events"
	}
	stamp := now().UTC().Format("20060102T150405Z")

	cw := &crlfWriter{w: w}
	cw.line("BEGIN:VCALENDAR")
	cw.line("VERSION:2.0")
	cw.linef("PRODID:%s", ICSProductID)
	cw.linef("X-WR-CALNAME:%s", escapeText(name))
	cw.line("CALSCALE:GREGORIAN")
	cw.line("METHOD:PUBLISH")

	written := 0
	for _, ev := range events {
		start, timed, err := timeutil.EventStart(ev.EventDate, ev.EventTime)
		if err != nil {
			continue
		}

		cw.line("BEGIN:VEVENT")
		cw.linef("UID:event-%d@chizu", ev.ID)
		cw.linef("DTSTAMP:%s", stamp)
		if timed {
			cw.linef("DTSTART:%s", start.Format("20060102T150405"))
			cw.linef("DTEND:%s", start.Add(DefaultDuration).Format("20060102T150405"))
		} else {
			cw.linef("DTSTART;VALUE=DATE:%s", start.Format("20060102"))
			cw.linef("DTEND;VALUE=DATE:%s", start.AddDate(0, 0, 1).Format("20060102"))
		}
		cw.linef("SUMMARY:%s", escapeText(ev.Title))
		if ev.Description != "" {
			cw.linef("DESCRIPTION:%s", escapeText(ev.Description))
		}
		if ev.EventType != "" {
			cw.linef("CATEGORIES:%s", escapeText(string(ev.EventType)))
		}
		if ev.LocationID != nil && opts.LocationName != nil {
			if loc, ok := opts.LocationName(*ev.LocationID); ok && loc != "" {
				cw.linef("LOCATION:%s", escapeText(loc))
			}
		}
		cw.line("END:VEVENT")
		written++
	}

	cw.line("END:VCALENDAR")
	if cw.err != nil {
		return written, fmt.Errorf("write ics: %w", cw.err)
	}
	return written, nil
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// crlfWriter keeps the first write error and skips later writes.
type crlfWriter struct {
	w   io.Writer
	err error
}

func (c *crlfWriter) line(s string) {
	if c.err != nil {
		return
	}
	_, c.err = io.WriteString(c.w, s+"\r\n")
}

func (c *crlfWriter) linef(format string, args ...any) {
	c.line(fmt.Sprintf(format, args...))
}
