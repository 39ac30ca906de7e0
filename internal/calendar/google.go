package calendar

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"booking-service/internal/timeslot"
)

const maxBusyResults = 250

// GoogleConfig carries the OAuth2 client credentials and the offline refresh
// token the service acts with.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	CalendarID   string
}

// GoogleGateway implements Gateway against the Google Calendar v3 API.
type GoogleGateway struct {
	svc        *calendar.Service
	calendarID string
}

// NewGoogle builds the calendar client once at process start. Extra client
// options are appended after the defaults, so tests can redirect the endpoint.
func NewGoogle(ctx context.Context, cfg GoogleConfig, extra ...option.ClientOption) (*GoogleGateway, error) {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{calendar.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, extra...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleGateway{svc: svc, calendarID: calendarID}, nil
}

// ListBusy returns the owner's busy intervals between timeMin and timeMax.
// All-day events block the whole local day.
func (g *GoogleGateway) ListBusy(ctx context.Context, ownerID string, timeMin, timeMax time.Time) ([]timeslot.Interval, error) {
	events, err := g.svc.Events.List(g.calendarID).
		Context(ctx).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		MaxResults(maxBusyResults).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var busy []timeslot.Interval
	for _, item := range events.Items {
		if item.Status == "cancelled" || item.Transparency == "transparent" {
			continue
		}
		iv, ok := eventInterval(item)
		if !ok {
			continue
		}
		busy = append(busy, iv)
	}
	return busy, nil
}

func eventInterval(item *calendar.Event) (timeslot.Interval, bool) {
	if item.Start == nil || item.End == nil {
		return timeslot.Interval{}, false
	}
	if item.Start.DateTime != "" && item.End.DateTime != "" {
		start, err1 := time.Parse(time.RFC3339, item.Start.DateTime)
		end, err2 := time.Parse(time.RFC3339, item.End.DateTime)
		if err1 != nil || err2 != nil {
			return timeslot.Interval{}, false
		}
		return timeslot.Interval{Start: start, End: end}, true
	}
	if item.Start.Date != "" && item.End.Date != "" {
		start, err1 := time.Parse("2006-01-02", item.Start.Date)
		end, err2 := time.Parse("2006-01-02", item.End.Date)
		if err1 != nil || err2 != nil {
			return timeslot.Interval{}, false
		}
		// The end date of an all-day event is already exclusive.
		return timeslot.Interval{Start: start, End: end}, true
	}
	return timeslot.Interval{}, false
}

// CreateEvent inserts the booking's event and returns its external id.
func (g *GoogleGateway) CreateEvent(ctx context.Context, ownerID string, ev EventInput) (string, error) {
	attendees := make([]*calendar.EventAttendee, 0, len(ev.Attendees))
	for _, a := range ev.Attendees {
		attendees = append(attendees, &calendar.EventAttendee{Email: a.Email, DisplayName: a.Name})
	}
	created, err := g.svc.Events.Insert(g.calendarID, &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
		Attendees:   attendees,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

// DeleteEvent removes a previously created event.
func (g *GoogleGateway) DeleteEvent(ctx context.Context, ownerID, eventID string) error {
	if err := g.svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}
