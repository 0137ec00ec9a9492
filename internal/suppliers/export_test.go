package suppliers

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSVQuotesEveryCell(t *testing.T) {
	records := []Supplier{{
		ID:               "sup-1",
		CompanyName:      `Acme "Best" Parts, Inc`,
		ContactPerson:    "Jo",
		Email:            "jo@acme.example",
		Country:          "Germany",
		Industry:         "Manufacturing",
		Certifications:   []string{"ISO 9001", "SOC 2"},
		CompanySize:      "large",
		YearsInBusiness:  12,
		RiskScore:        95,
		RiskCategory:     RiskLow,
		RegistrationType: RegistrationInvite,
		SubmittedAt:      time.Date(2024, 2, 29, 23, 30, 0, 0, time.UTC),
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], `"id","companyName","contactPerson"`))
	assert.Equal(t,
		`"sup-1","Acme ""Best"" Parts, Inc","Jo","jo@acme.example","","Germany","Manufacturing","ISO 9001; SOC 2","large","12","95","Low","invite","2024-02-29"`,
		lines[1])

	// standard readers get the original values back
	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, `Acme "Best" Parts, Inc`, rows[1][1])
}

func TestWriteCSVHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}
