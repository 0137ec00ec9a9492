package suppliers

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// CSVHeader names the exported columns.
var CSVHeader = []string{
	"id",
	"companyName",
	"contactPerson",
	"email",
	"phone",
	"country",
	"industry",
	"certifications",
	"companySize",
	"yearsInBusiness",
	"riskScore",
	"riskCategory",
	"registrationType",
	"submittedAt",
}

const csvDateLayout = "2006-01-02"

// WriteCSV writes one header row and one row per record. Every cell is quoted,
// embedded quotes are doubled and certifications are joined with "; ".
func WriteCSV(w io.Writer, records []Supplier) error {
	bw := bufio.NewWriter(w)
	if err := writeQuotedRow(bw, CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.ID,
			r.CompanyName,
			r.ContactPerson,
			r.Email,
			r.Phone,
			r.Country,
			r.Industry,
			strings.Join(r.Certifications, "; "),
			r.CompanySize,
			strconv.Itoa(int(r.YearsInBusiness)),
			strconv.Itoa(r.RiskScore),
			string(r.RiskCategory),
			string(r.RegistrationType),
			r.SubmittedAt.UTC().Format(csvDateLayout),
		}
		if err := writeQuotedRow(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeQuotedRow(w *bufio.Writer, cells []string) error {
	for i, cell := range cells {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(cell, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}
