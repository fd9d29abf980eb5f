package crm

import (
	"context"
	"net/http"
)

// AppointmentPayload books a slot without the CRM's free-slot and date-range
// checks; callers pick the slot from the events read first.
type AppointmentPayload struct {
	CalendarID               string `json:"calendarId"`
	LocationID               string `json:"locationId"`
	ContactID                string `json:"contactId"`
	StartTime                string `json:"startTime"`
	AssignedUserID           string `json:"assignedUserId,omitempty"`
	IgnoreFreeSlotValidation bool   `json:"ignoreFreeSlotValidation"`
	IgnoreDateRange          bool   `json:"ignoreDateRange"`
}

func NewAppointmentPayload(locationID, calendarID, userID, contactID, startTime string) AppointmentPayload {
	return AppointmentPayload{
		CalendarID:               calendarID,
		LocationID:               locationID,
		ContactID:                contactID,
		StartTime:                startTime,
		AssignedUserID:           userID,
		IgnoreFreeSlotValidation: true,
		IgnoreDateRange:          true,
	}
}

// CreateAppointment expects 201.
func (c *Client) CreateAppointment(ctx context.Context, accessToken string, payload AppointmentPayload) Result {
	return c.do(ctx, call{
		operation: "create_appointment",
		method:    http.MethodPost,
		path:      "/calendars/events/appointments",
		body:      payload,
		version:   ContactsVersion,
		expect:    http.StatusCreated,
		token:     accessToken,
	})
}
