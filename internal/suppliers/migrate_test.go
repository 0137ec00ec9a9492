package suppliers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateRecordsUpgradesOldShape(t *testing.T) {
	submitted := time.Date(2023, 5, 4, 0, 0, 0, 0, time.UTC)
	raw := `[{
		"id": "1717000000000",
		"companyName": "Legacy Builders",
		"email": "Info@Legacy.example",
		"contactPerson": "Pat",
		"country": "France",
		"industry": "Construction",
		"certifications": ["ISO 9001", " ", "ISO 9001"],
		"yearsInBusiness": "3",
		"turnoverTime": 45,
		"riskScore": 72,
		"riskCategory": "Low",
		"submittedAt": "2023-05-04T00:00:00Z",
		"delayHistory": "occasional"
	}]`
	var in []Supplier
	require.NoError(t, json.Unmarshal([]byte(raw), &in))

	out, changed := MigrateRecords(in)
	require.True(t, changed)
	require.Len(t, out, 1)

	rec := out[0]
	assert.Equal(t, CurrentSchemaVersion, rec.SchemaVersion)
	assert.Equal(t, RegistrationSelf, rec.RegistrationType)
	assert.Equal(t, "info@legacy.example", rec.Email)
	assert.Equal(t, []string{"ISO 9001"}, rec.Certifications)
	assert.Equal(t, Count(3), rec.YearsInBusiness)
	assert.Equal(t, Count(45), rec.TurnoverTime)
	assert.Equal(t, submitted, rec.UpdatedAt)
	assert.Equal(t, RiskMedium, rec.RiskCategory)
	assert.Equal(t, 72, rec.RiskScore)

	// input untouched
	assert.Equal(t, 0, in[0].SchemaVersion)
}

func TestMigrateRecordsIsIdempotent(t *testing.T) {
	rec := Supplier{
		SchemaVersion:    CurrentSchemaVersion,
		ID:               "a",
		Certifications:   []string{},
		RiskScore:        50,
		RiskCategory:     RiskHigh,
		RegistrationType: RegistrationInvite,
	}
	out, changed := MigrateRecords([]Supplier{rec})
	assert.False(t, changed)
	assert.Equal(t, rec, out[0])
}

func TestCountDecodesStringsAndNumbers(t *testing.T) {
	var v struct {
		A Count `json:"a"`
		B Count `json:"b"`
		C Count `json:"c"`
		D Count `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 7, "b": " 12 ", "c": "", "d": null}`), &v))
	assert.Equal(t, Count(7), v.A)
	assert.Equal(t, Count(12), v.B)
	assert.Equal(t, Count(0), v.C)
	assert.Equal(t, Count(0), v.D)

	assert.Error(t, json.Unmarshal([]byte(`{"a": "seven"}`), &v))
}
