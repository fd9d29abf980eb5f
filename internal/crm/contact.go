package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/aman-churiwal/crm-relay/internal/config"
)

// FieldValue is a form value that arrives either as a single string or as a
// list of strings (checkbox groups).
type FieldValue struct {
	values []string
	list   bool
}

func StringValue(s string) FieldValue {
	return FieldValue{values: []string{s}}
}

func ListValue(items ...string) FieldValue {
	return FieldValue{values: items, list: true}
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*v = FieldValue{}

	switch {
	case bytes.Equal(data, []byte("null")):
		return nil
	case len(data) > 0 && data[0] == '[':
		var items []interface{}
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		v.list = true
		for _, item := range items {
			v.values = append(v.values, scalarString(item))
		}
		return nil
	default:
		var item interface{}
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		if _, ok := item.(map[string]interface{}); ok {
			return fmt.Errorf("unsupported object value")
		}
		v.values = []string{scalarString(item)}
		return nil
	}
}

func scalarString(item interface{}) string {
	switch t := item.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// cleaned returns the trimmed, non-blank values.
func (v FieldValue) cleaned() []string {
	out := make([]string, 0, len(v.values))
	for _, s := range v.values {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (v FieldValue) IsEmpty() bool {
	return len(v.cleaned()) == 0
}

// Value is the outbound representation: a string, or a list for list input.
func (v FieldValue) Value() interface{} {
	items := v.cleaned()
	if v.list {
		return items
	}
	if len(items) == 0 {
		return ""
	}
	return items[0]
}

// ContactForm is the public web form submission.
type ContactForm struct {
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	AgeRange    FieldValue `json:"ageRange"`
	Conditions  FieldValue `json:"conditions"`
	Preferences FieldValue `json:"preferences"`
	Notes       FieldValue `json:"notes"`
}

type CustomField struct {
	ID         string      `json:"id"`
	FieldValue interface{} `json:"field_value"`
}

type ContactPayload struct {
	LocationID   string        `json:"locationId"`
	FirstName    string        `json:"firstName,omitempty"`
	LastName     string        `json:"lastName,omitempty"`
	Email        string        `json:"email,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	Source       string        `json:"source,omitempty"`
	CustomFields []CustomField `json:"customFields,omitempty"`
}

// BuildContactPayload reshapes a form into the CRM upsert body. Custom fields
// that are absent, blank, or have no configured id are left out entirely.
func BuildContactPayload(form ContactForm, locationID, source string, fields config.CustomFields) ContactPayload {
	payload := ContactPayload{
		LocationID: locationID,
		FirstName:  strings.TrimSpace(form.FirstName),
		LastName:   strings.TrimSpace(form.LastName),
		Email:      strings.TrimSpace(form.Email),
		Phone:      strings.TrimSpace(form.Phone),
		Source:     source,
	}

	mapping := []struct {
		id    string
		value FieldValue
	}{
		{fields.AgeRange, form.AgeRange},
		{fields.Conditions, form.Conditions},
		{fields.Preferences, form.Preferences},
		{fields.Notes, form.Notes},
	}

	for _, m := range mapping {
		if m.id == "" || m.value.IsEmpty() {
			continue
		}
		payload.CustomFields = append(payload.CustomFields, CustomField{ID: m.id, FieldValue: m.value.Value()})
	}

	return payload
}

// UpsertContact creates or updates a contact. Expects 201.
func (c *Client) UpsertContact(ctx context.Context, accessToken string, payload ContactPayload) Result {
	return c.do(ctx, call{
		operation: "upsert_contact",
		method:    http.MethodPost,
		path:      "/contacts/upsert",
		body:      payload,
		version:   ContactsVersion,
		expect:    http.StatusCreated,
		token:     accessToken,
	})
}
