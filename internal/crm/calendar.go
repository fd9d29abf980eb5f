package crm

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// EventsQuery selects calendar entries between Start and End.
type EventsQuery struct {
	LocationID string
	CalendarID string
	Start      time.Time
	End        time.Time
}

func (q EventsQuery) values() url.Values {
	v := url.Values{}
	v.Set("locationId", q.LocationID)
	v.Set("calendarId", q.CalendarID)
	v.Set("startTime", strconv.FormatInt(q.Start.UnixMilli(), 10))
	v.Set("endTime", strconv.FormatInt(q.End.UnixMilli(), 10))
	return v
}

func (c *Client) GetCalendar(ctx context.Context, accessToken, calendarID string) Result {
	return c.do(ctx, call{
		operation: "get_calendar",
		method:    http.MethodGet,
		path:      "/calendars/" + url.PathEscape(calendarID),
		version:   CalendarsVersion,
		expect:    http.StatusOK,
		token:     accessToken,
	})
}

func (c *Client) GetCalendarEvents(ctx context.Context, accessToken string, q EventsQuery) Result {
	return c.do(ctx, call{
		operation: "get_calendar_events",
		method:    http.MethodGet,
		path:      "/calendars/events",
		query:     q.values(),
		version:   CalendarsVersion,
		expect:    http.StatusOK,
		token:     accessToken,
	})
}

func (c *Client) GetBlockedSlots(ctx context.Context, accessToken string, q EventsQuery) Result {
	return c.do(ctx, call{
		operation: "get_blocked_slots",
		method:    http.MethodGet,
		path:      "/calendars/blocked-slots",
		query:     q.values(),
		version:   CalendarsVersion,
		expect:    http.StatusOK,
		token:     accessToken,
	})
}
