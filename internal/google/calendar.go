package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrCalendarNotFound is returned when the configured target calendar no
// longer exists or is no longer accessible.
var ErrCalendarNotFound = errors.New("google calendar not found")

// GatewayError wraps a remote Calendar API failure with the operation that
// produced it. Confirmed-absence outcomes never surface as a GatewayError:
// get returns nil and update failures answer IsEventGone instead.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("google calendar %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Event is the gateway's calendar-neutral event representation. All-day
// events carry date-only boundaries; timed events carry full timestamps.
type Event struct {
	ID          string
	Summary     string
	Description string
	Location    string
	ColorID     string
	ETag        string
	AllDay      bool
	Start       time.Time
	End         time.Time
	Updated     time.Time
}

// CalendarInfo describes a calendar the user can write events into.
type CalendarInfo struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Primary  bool   `json:"primary"`
	TimeZone string `json:"time_zone"`
}

// Gateway performs Google Calendar API operations on behalf of users,
// resolving each user's token through the TokenStore.
type Gateway struct {
	tokens   *TokenStore
	timeZone string

	// extra client options, set by tests to point at a local server
	opts []option.ClientOption
}

// NewGateway creates a Gateway backed by the given token store. timeZone
// is the IANA zone stamped on timed events sent to Google; empty means UTC.
func NewGateway(tokens *TokenStore, timeZone string) *Gateway {
	if timeZone == "" {
		timeZone = "UTC"
	}
	return &Gateway{tokens: tokens, timeZone: timeZone}
}

// service builds a Calendar API client for the user. The token is
// resolved fresh per call so long sync passes never run on a stale token.
func (g *Gateway) service(ctx context.Context, userID string) (*calendar.Service, error) {
	token, err := g.tokens.GetValid(ctx, userID)
	if err != nil {
		return nil, err
	}

	opts := append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(token)),
	}, g.opts...)

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return svc, nil
}

// ListCalendars returns the calendars the user can write events into.
func (g *Gateway) ListCalendars(ctx context.Context, userID string) ([]CalendarInfo, error) {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp, err := svc.CalendarList.List().MinAccessRole("writer").Context(ctx).Do()
	if err != nil {
		return nil, &GatewayError{Op: "list calendars", Err: err}
	}

	calendars := make([]CalendarInfo, 0, len(resp.Items))
	for _, item := range resp.Items {
		calendars = append(calendars, CalendarInfo{
			ID:       item.Id,
			Summary:  item.Summary,
			Primary:  item.Primary,
			TimeZone: item.TimeZone,
		})
	}

	return calendars, nil
}

// PrimaryCalendar returns the user's primary calendar.
func (g *Gateway) PrimaryCalendar(ctx context.Context, userID string) (*CalendarInfo, error) {
	calendars, err := g.ListCalendars(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, c := range calendars {
		if c.Primary {
			return &c, nil
		}
	}

	return nil, ErrCalendarNotFound
}

// CreateEvent inserts an event and returns it with the remote id and etag.
func (g *Gateway) CreateEvent(ctx context.Context, userID, calendarID string, event *Event) (*Event, error) {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	created, err := svc.Events.Insert(calendarID, g.toAPIEvent(event)).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil, ErrCalendarNotFound
		}
		return nil, &GatewayError{Op: "create event", Err: err}
	}

	return fromAPIEvent(created)
}

// UpdateEvent replaces the remote event's content. A 404 surfaces via
// IsEventGone so the caller can fall back to create-and-remap.
func (g *Gateway) UpdateEvent(ctx context.Context, userID, calendarID, eventID string, event *Event) (*Event, error) {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	updated, err := svc.Events.Update(calendarID, eventID, g.toAPIEvent(event)).Context(ctx).Do()
	if err != nil {
		return nil, &GatewayError{Op: "update event " + eventID, Err: err}
	}

	return fromAPIEvent(updated)
}

// DeleteEvent removes a remote event. Already-deleted events are not an
// error; the desired end state is absence either way.
func (g *Gateway) DeleteEvent(ctx context.Context, userID, calendarID, eventID string) error {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return err
	}

	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		if isNotFound(err) || isGone(err) {
			return nil
		}
		return &GatewayError{Op: "delete event " + eventID, Err: err}
	}

	return nil
}

// GetEvent fetches a single remote event. It returns (nil, nil) when the
// event does not exist or has been cancelled, so callers can distinguish
// confirmed absence from transient failure.
func (g *Gateway) GetEvent(ctx context.Context, userID, calendarID, eventID string) (*Event, error) {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	found, err := svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) || isGone(err) {
			return nil, nil
		}
		return nil, &GatewayError{Op: "get event " + eventID, Err: err}
	}

	if found.Status == "cancelled" {
		return nil, nil
	}

	return fromAPIEvent(found)
}

// ListEvents returns the non-cancelled events in the given window,
// expanded to single instances and ordered by start time.
func (g *Gateway) ListEvents(ctx context.Context, userID, calendarID string, from, to time.Time) ([]*Event, error) {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	call := svc.Events.List(calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(2500).
		Context(ctx)

	var events []*Event
	pageToken := ""
	for {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			if isNotFound(err) {
				return nil, ErrCalendarNotFound
			}
			return nil, &GatewayError{Op: "list events", Err: err}
		}

		for _, item := range resp.Items {
			if item.Status == "cancelled" {
				continue
			}
			ev, err := fromAPIEvent(item)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return events, nil
}

// NotificationChannel identifies a registered push-notification channel.
type NotificationChannel struct {
	ID         string
	ResourceID string
	Expiration time.Time
}

// WatchCalendar registers a push-notification channel for event changes on
// the calendar. address must be an HTTPS endpoint Google can reach.
func (g *Gateway) WatchCalendar(ctx context.Context, userID, calendarID, channelID, address string) (*NotificationChannel, error) {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	ch, err := svc.Events.Watch(calendarID, &calendar.Channel{
		Id:      channelID,
		Type:    "web_hook",
		Address: address,
	}).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil, ErrCalendarNotFound
		}
		return nil, &GatewayError{Op: "watch calendar", Err: err}
	}

	return &NotificationChannel{
		ID:         ch.Id,
		ResourceID: ch.ResourceId,
		Expiration: time.UnixMilli(ch.Expiration),
	}, nil
}

// StopChannel unregisters a push-notification channel. Stopping a channel
// that already expired is not an error.
func (g *Gateway) StopChannel(ctx context.Context, userID string, ch *NotificationChannel) error {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return err
	}

	err = svc.Channels.Stop(&calendar.Channel{
		Id:         ch.ID,
		ResourceId: ch.ResourceID,
	}).Context(ctx).Do()
	if err != nil && !isNotFound(err) {
		return &GatewayError{Op: "stop channel", Err: err}
	}
	return nil
}

// toAPIEvent converts a gateway event into the wire representation.
// All-day events use date-only boundaries; timed events use RFC3339 with
// the gateway's configured timezone.
func (g *Gateway) toAPIEvent(event *Event) *calendar.Event {
	apiEvent := &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		ColorId:     event.ColorID,
	}

	if event.AllDay {
		apiEvent.Start = &calendar.EventDateTime{Date: event.Start.Format("2006-01-02")}
		apiEvent.End = &calendar.EventDateTime{Date: event.End.Format("2006-01-02")}
	} else {
		apiEvent.Start = &calendar.EventDateTime{DateTime: event.Start.Format(time.RFC3339), TimeZone: g.timeZone}
		apiEvent.End = &calendar.EventDateTime{DateTime: event.End.Format(time.RFC3339), TimeZone: g.timeZone}
	}

	return apiEvent
}

// fromAPIEvent converts a wire event into the gateway representation.
func fromAPIEvent(apiEvent *calendar.Event) (*Event, error) {
	event := &Event{
		ID:          apiEvent.Id,
		Summary:     apiEvent.Summary,
		Description: apiEvent.Description,
		Location:    apiEvent.Location,
		ColorID:     apiEvent.ColorId,
		ETag:        apiEvent.Etag,
	}

	if apiEvent.Updated != "" {
		updated, err := time.Parse(time.RFC3339, apiEvent.Updated)
		if err == nil {
			event.Updated = updated
		}
	}

	start, allDay, err := parseEventTime(apiEvent.Start)
	if err != nil {
		return nil, fmt.Errorf("event %s has invalid start: %w", apiEvent.Id, err)
	}
	end, _, err := parseEventTime(apiEvent.End)
	if err != nil {
		return nil, fmt.Errorf("event %s has invalid end: %w", apiEvent.Id, err)
	}

	event.Start = start
	event.End = end
	event.AllDay = allDay

	return event, nil
}

// parseEventTime decodes an event boundary. A date-only boundary marks
// the event as all-day.
func parseEventTime(edt *calendar.EventDateTime) (time.Time, bool, error) {
	if edt == nil {
		return time.Time{}, false, errors.New("missing event time")
	}

	if edt.Date != "" {
		t, err := time.Parse("2006-01-02", edt.Date)
		return t, true, err
	}

	t, err := time.Parse(time.RFC3339, edt.DateTime)
	return t, false, err
}

// IsEventGone reports whether an API error means the remote event no
// longer exists, as opposed to a transient failure.
func IsEventGone(err error) bool {
	return isNotFound(err) || isGone(err)
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 404
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 410
}
