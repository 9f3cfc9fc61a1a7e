package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type GoogleConfig struct {
	CalendarID      string
	CredentialsFile string
	Location        *time.Location
}

// Google talks to a Google Calendar through a service account.
type Google struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
}

func NewGoogle(ctx context.Context, cfg GoogleConfig, extra ...option.ClientOption) (*Google, error) {
	if strings.TrimSpace(cfg.CalendarID) == "" {
		return nil, errors.New("google calendar id not configured")
	}
	opts := extra
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, option.WithScopes(gcal.CalendarScope))
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google calendar client: %w", err)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Google{svc: svc, calendarID: cfg.CalendarID, loc: loc}, nil
}

func (g *Google) ListEvents(ctx context.Context, w Window) ([]Event, error) {
	var out []Event
	pageToken := ""
	for {
		call := g.svc.Events.List(g.calendarID).
			TimeMin(w.Start.Format(time.RFC3339)).
			TimeMax(w.End.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		for _, item := range res.Items {
			start, err := g.parseTime(item.Start)
			if err != nil {
				return nil, fmt.Errorf("list events: event %s start: %w", item.Id, err)
			}
			end, err := g.parseTime(item.End)
			if err != nil {
				end = start
			}
			out = append(out, Event{
				ID:          item.Id,
				Summary:     item.Summary,
				Description: item.Description,
				Start:       start,
				End:         end,
			})
		}
		if res.NextPageToken == "" {
			return out, nil
		}
		pageToken = res.NextPageToken
	}
}

func (g *Google) CreateEvent(ctx context.Context, summary string, start, end time.Time, attendee Attendee) (string, error) {
	ev := &gcal.Event{
		Summary:     summary,
		Description: Description(attendee),
		Start:       &gcal.EventDateTime{DateTime: start.In(g.loc).Format(time.RFC3339), TimeZone: g.loc.String()},
		End:         &gcal.EventDateTime{DateTime: end.In(g.loc).Format(time.RFC3339), TimeZone: g.loc.String()},
	}
	created, err := g.svc.Events.Insert(g.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

func (g *Google) DeleteEvent(ctx context.Context, id string) error {
	err := g.svc.Events.Delete(g.calendarID, id).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// parseTime accepts timed and all-day events; all-day events start at local midnight.
func (g *Google) parseTime(dt *gcal.EventDateTime) (time.Time, error) {
	if dt == nil {
		return time.Time{}, errors.New("missing event time")
	}
	if dt.DateTime != "" {
		return time.Parse(time.RFC3339, dt.DateTime)
	}
	return time.ParseInLocation("2006-01-02", dt.Date, g.loc)
}

// Ping lists a single event; used as a readiness check.
func (g *Google) Ping(ctx context.Context) error {
	_, err := g.svc.Events.List(g.calendarID).MaxResults(1).Context(ctx).Do()
	return err
}
