// Package ics renders the active calendar as an iCalendar (RFC 5545) feed
// so calendar clients can subscribe to it.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"booking/internal/domain"
)

const ContentType = "text/calendar; charset=utf-8"

type Options struct {
	// Domain qualifies event UIDs, e.g. appointment-42@booking.local.
	Domain  string
	ProdID  string
	CalName string
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.Domain) == "" {
		o.Domain = "booking.local"
	}
	if o.ProdID == "" {
		o.ProdID = "-//booking//appointments//EN"
	}
	if o.CalName == "" {
		o.CalName = "Appointments"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Build returns a METHOD:PUBLISH calendar with one VEVENT per appointment.
// Canceled appointments are skipped.
func Build(appts []domain.Appointment, opts Options) *ical.Calendar {
	opts = opts.withDefaults()

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(opts.ProdID)
	cal.SetName(opts.CalName)

	for _, a := range appts {
		if !a.Active() {
			continue
		}
		ev := cal.AddEvent(UID(a.ID, opts.Domain))

		stamp := a.CreatedAt
		if stamp.IsZero() {
			stamp = opts.Now()
		}
		ev.SetCreatedTime(stamp.UTC())
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(a.StartTime.UTC())
		ev.SetEndAt(a.EndTime.UTC())
		ev.SetSummary(fmt.Sprintf("%s (%s)", a.ServiceName, a.ClientName))
		ev.SetDescription(fmt.Sprintf("%s booked by %s <%s>", a.ServiceName, a.ClientName, a.ClientEmail))
		ev.SetStatus(ical.ObjectStatusConfirmed)
		if a.ClientEmail != "" {
			ev.AddAttendee("mailto:"+a.ClientEmail, ical.WithCN(a.ClientName))
		}
	}
	return cal
}

func Encode(w io.Writer, appts []domain.Appointment, opts Options) error {
	_, err := io.WriteString(w, Build(appts, opts).Serialize())
	return err
}

func UID(id int64, domain string) string {
	return fmt.Sprintf("appointment-%d@%s", id, domain)
}
