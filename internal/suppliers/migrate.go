package suppliers

import "strings"

// MigrateRecords upgrades records written by older versions of the
// registration flows. It reports whether anything changed.
func MigrateRecords(in []Supplier) ([]Supplier, bool) {
	out := make([]Supplier, len(in))
	changed := false
	for i, r := range in {
		m, c := migrateRecord(r.Clone())
		out[i] = m
		changed = changed || c
	}
	return out, changed
}

func migrateRecord(r Supplier) (Supplier, bool) {
	changed := false
	if r.SchemaVersion < CurrentSchemaVersion {
		if r.RegistrationType == "" {
			r.RegistrationType = RegistrationSelf
		}
		r.Email = strings.ToLower(strings.TrimSpace(r.Email))
		cleaned := make([]string, 0, len(r.Certifications))
		for _, c := range r.Certifications {
			if c = strings.TrimSpace(c); c != "" {
				cleaned = append(cleaned, c)
			}
		}
		r.Certifications = dedupe(cleaned)
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = r.SubmittedAt
		}
		r.SchemaVersion = CurrentSchemaVersion
		changed = true
	}
	if r.Certifications == nil {
		r.Certifications = []string{}
		changed = true
	}
	if score := clamp(r.RiskScore, MinScore, MaxScore); score != r.RiskScore {
		r.RiskScore = score
		changed = true
	}
	// category must always agree with the score
	if want := CategoryFor(r.RiskScore); r.RiskCategory != want {
		r.RiskCategory = want
		changed = true
	}
	return r, changed
}
