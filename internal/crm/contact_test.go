package crm

import (
	"encoding/json"
	"testing"

	"github.com/aman-churiwal/crm-relay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFields = config.CustomFields{
	AgeRange:    "cf_age",
	Conditions:  "cf_conditions",
	Preferences: "cf_preferences",
	Notes:       "cf_notes",
}

func TestBuildContactPayload_OmitsEmptyCustomFields(t *testing.T) {
	tests := []struct {
		name    string
		form    ContactForm
		fields  config.CustomFields
		wantIDs []string
	}{
		{
			name:    "all present",
			form:    ContactForm{AgeRange: StringValue("30-39"), Conditions: ListValue("a"), Preferences: StringValue("mornings"), Notes: StringValue("hi")},
			fields:  testFields,
			wantIDs: []string{"cf_age", "cf_conditions", "cf_preferences", "cf_notes"},
		},
		{
			name:    "absent fields",
			form:    ContactForm{Notes: StringValue("hi")},
			fields:  testFields,
			wantIDs: []string{"cf_notes"},
		},
		{
			name:    "blank string and empty list",
			form:    ContactForm{AgeRange: StringValue("   "), Conditions: ListValue(), Preferences: ListValue("", " "), Notes: StringValue("x")},
			fields:  testFields,
			wantIDs: []string{"cf_notes"},
		},
		{
			name:    "unconfigured field id",
			form:    ContactForm{AgeRange: StringValue("30-39"), Notes: StringValue("x")},
			fields:  config.CustomFields{Notes: "cf_notes"},
			wantIDs: []string{"cf_notes"},
		},
		{
			name:    "nothing to send",
			form:    ContactForm{},
			fields:  testFields,
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := BuildContactPayload(tt.form, "loc-1", "web form", tt.fields)

			var ids []string
			for _, cf := range payload.CustomFields {
				ids = append(ids, cf.ID)
				assert.NotEmpty(t, cf.FieldValue)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestBuildContactPayload_Shape(t *testing.T) {
	form := ContactForm{
		FirstName:  " Ada ",
		Email:      "ada@example.com",
		Conditions: ListValue("back pain", "", "stress"),
	}

	payload := BuildContactPayload(form, "loc-1", "web form", testFields)
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"locationId": "loc-1",
		"firstName": "Ada",
		"email": "ada@example.com",
		"source": "web form",
		"customFields": [{"id": "cf_conditions", "field_value": ["back pain", "stress"]}]
	}`, string(raw))
}

func TestBuildContactPayload_NoCustomFieldsKey(t *testing.T) {
	raw, err := json.Marshal(BuildContactPayload(ContactForm{FirstName: "Ada"}, "loc-1", "", testFields))
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "customFields")
	assert.NotContains(t, string(raw), "email")
}

func TestFieldValue_Unmarshal(t *testing.T) {
	var form ContactForm
	err := json.Unmarshal([]byte(`{
		"ageRange": "40-49",
		"conditions": ["a", "b"],
		"preferences": null,
		"notes": 42
	}`), &form)
	require.NoError(t, err)

	assert.Equal(t, "40-49", form.AgeRange.Value())
	assert.Equal(t, []string{"a", "b"}, form.Conditions.Value())
	assert.True(t, form.Preferences.IsEmpty())
	assert.Equal(t, "42", form.Notes.Value())

	err = json.Unmarshal([]byte(`{"notes": {"nested": true}}`), &form)
	assert.Error(t, err)
}
