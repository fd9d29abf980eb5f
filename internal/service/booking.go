package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aman-churiwal/crm-relay/internal/config"
	"github.com/aman-churiwal/crm-relay/internal/crm"
	"github.com/aman-churiwal/crm-relay/internal/models"
	"github.com/aman-churiwal/crm-relay/internal/repository"
)

var (
	ErrValidation = errors.New("invalid request")
	ErrUpstream   = errors.New("crm request failed")
)

// CRM is the subset of crm.Client the booking flow calls.
type CRM interface {
	UpsertContact(ctx context.Context, accessToken string, payload crm.ContactPayload) crm.Result
	GetCalendar(ctx context.Context, accessToken, calendarID string) crm.Result
	GetCalendarEvents(ctx context.Context, accessToken string, q crm.EventsQuery) crm.Result
	GetBlockedSlots(ctx context.Context, accessToken string, q crm.EventsQuery) crm.Result
	CreateAppointment(ctx context.Context, accessToken string, payload crm.AppointmentPayload) crm.Result
}

// calendarSettingKeys are the only calendar fields exposed to the booking widget.
var calendarSettingKeys = []string{
	"slotDuration",
	"slotDurationUnit",
	"slotInterval",
	"slotIntervalUnit",
	"openHours",
	"allowBookingAfter",
	"allowBookingAfterUnit",
	"allowBookingFor",
	"allowBookingForUnit",
}

type CalendarSettings map[string]json.RawMessage

type EventTime struct {
	StartTime string `json:"startTime"`
}

type AppointmentRequest struct {
	ContactID string `json:"contactId"`
	StartTime string `json:"startTime"`
}

type BookingService struct {
	store        repository.AccountStore
	crm          CRM
	locationID   string
	leadSource   string
	customFields config.CustomFields
	now          func() time.Time
}

func NewBookingService(store repository.AccountStore, client CRM, cfg config.CRMConfig) *BookingService {
	return &BookingService{
		store:        store,
		crm:          client,
		locationID:   cfg.LocationID,
		leadSource:   cfg.LeadSource,
		customFields: cfg.CustomFields,
		now:          time.Now,
	}
}

// account is read fresh on every call so a rotated token is picked up at once.
func (s *BookingService) account(ctx context.Context) (*models.Account, error) {
	account, err := s.store.Load(ctx, s.locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

func (s *BookingService) UpsertContact(ctx context.Context, form crm.ContactForm) (string, error) {
	payload := crm.BuildContactPayload(form, "", s.leadSource, s.customFields)
	if payload.FirstName == "" && payload.LastName == "" && payload.Email == "" && payload.Phone == "" {
		return "", fmt.Errorf("%w: contact needs a name, email or phone", ErrValidation)
	}

	account, err := s.account(ctx)
	if err != nil {
		return "", err
	}
	payload.LocationID = account.LocationID

	result := s.crm.UpsertContact(ctx, account.AccessToken, payload)
	if !result.Success {
		return "", upstreamError(result)
	}

	var body struct {
		Contact struct {
			ID string `json:"id"`
		} `json:"contact"`
	}
	if err := json.Unmarshal(result.Data, &body); err != nil || body.Contact.ID == "" {
		return "", fmt.Errorf("%w: upsert response has no contact id", ErrUpstream)
	}

	return body.Contact.ID, nil
}

func (s *BookingService) GetCalendar(ctx context.Context) (CalendarSettings, error) {
	account, err := s.account(ctx)
	if err != nil {
		return nil, err
	}

	result := s.crm.GetCalendar(ctx, account.AccessToken, account.CalendarID)
	if !result.Success {
		return nil, upstreamError(result)
	}

	var body struct {
		Calendar map[string]json.RawMessage `json:"calendar"`
	}
	if err := json.Unmarshal(result.Data, &body); err != nil || body.Calendar == nil {
		return nil, fmt.Errorf("%w: calendar response has no calendar", ErrUpstream)
	}

	settings := make(CalendarSettings, len(calendarSettingKeys))
	for _, key := range calendarSettingKeys {
		if v, ok := body.Calendar[key]; ok {
			settings[key] = v
		}
	}

	return settings, nil
}

func (s *BookingService) GetCalendarEvents(ctx context.Context, q BookingWindowQuery) ([]EventTime, error) {
	return s.eventTimes(ctx, q, s.crm.GetCalendarEvents)
}

func (s *BookingService) GetBlockedSlots(ctx context.Context, q BookingWindowQuery) ([]EventTime, error) {
	return s.eventTimes(ctx, q, s.crm.GetBlockedSlots)
}

func (s *BookingService) eventTimes(
	ctx context.Context,
	q BookingWindowQuery,
	fetch func(context.Context, string, crm.EventsQuery) crm.Result,
) ([]EventTime, error) {
	start, end, err := q.Window(s.now())
	if err != nil {
		return nil, err
	}

	account, err := s.account(ctx)
	if err != nil {
		return nil, err
	}

	result := fetch(ctx, account.AccessToken, crm.EventsQuery{
		LocationID: account.LocationID,
		CalendarID: account.CalendarID,
		Start:      start,
		End:        end,
	})
	if !result.Success {
		return nil, upstreamError(result)
	}

	var body struct {
		Events []EventTime `json:"events"`
	}
	if err := json.Unmarshal(result.Data, &body); err != nil {
		return nil, fmt.Errorf("%w: events response: %v", ErrUpstream, err)
	}

	times := make([]EventTime, 0, len(body.Events))
	for _, e := range body.Events {
		times = append(times, EventTime{StartTime: e.StartTime})
	}

	return times, nil
}

func (s *BookingService) MakeAppointment(ctx context.Context, req AppointmentRequest) (string, error) {
	contactID := strings.TrimSpace(req.ContactID)
	startTime := strings.TrimSpace(req.StartTime)
	if contactID == "" || startTime == "" {
		return "", fmt.Errorf("%w: contactId and startTime are required", ErrValidation)
	}

	account, err := s.account(ctx)
	if err != nil {
		return "", err
	}

	payload := crm.NewAppointmentPayload(account.LocationID, account.CalendarID, account.UserID, contactID, startTime)
	result := s.crm.CreateAppointment(ctx, account.AccessToken, payload)
	if !result.Success {
		return "", upstreamError(result)
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(result.Data, &body); err != nil || body.ID == "" {
		return "", fmt.Errorf("%w: appointment response has no id", ErrUpstream)
	}

	return body.ID, nil
}

func upstreamError(result crm.Result) error {
	if result.Err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, result.Err)
	}
	return fmt.Errorf("%w: status %d", ErrUpstream, result.StatusCode)
}
