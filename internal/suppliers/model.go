package suppliers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CurrentSchemaVersion is written on every record the store persists.
const CurrentSchemaVersion = 1

// RegistrationMode selects the validation and scoring ruleset.
type RegistrationMode string

const (
	ModeStrict  RegistrationMode = "strict"
	ModeInvite  RegistrationMode = "invite"
	ModeMinimal RegistrationMode = "minimal"
)

// ParseRegistrationMode accepts the canonical names plus the route aliases
// used by the registration pages.
func ParseRegistrationMode(raw string) (RegistrationMode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict", "self":
		return ModeStrict, true
	case "invite":
		return ModeInvite, true
	case "minimal", "legacy":
		return ModeMinimal, true
	default:
		return "", false
	}
}

// RegistrationType records which flow created a supplier.
type RegistrationType string

const (
	RegistrationSelf   RegistrationType = "self"
	RegistrationInvite RegistrationType = "invite"
)

// Type maps a mode onto the persisted registration type.
func (m RegistrationMode) Type() RegistrationType {
	if m == ModeInvite {
		return RegistrationInvite
	}
	return RegistrationSelf
}

// RiskCategory is the coarse label derived from a risk score.
type RiskCategory string

const (
	RiskLow    RiskCategory = "Low"
	RiskMedium RiskCategory = "Medium"
	RiskHigh   RiskCategory = "High"
)

// ParseRiskCategory matches case-insensitively.
func ParseRiskCategory(raw string) (RiskCategory, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return RiskLow, true
	case "medium":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	default:
		return "", false
	}
}

// Message is the text shown to a supplier once their assessment completes.
func (c RiskCategory) Message() string {
	switch c {
	case RiskLow:
		return "Your company has been classified as low risk. You can expect expedited processing of your application."
	case RiskMedium:
		return "Your company has been classified as medium risk. Some additional documentation may be required."
	case RiskHigh:
		return "Your company has been classified as high risk. Our team will conduct a thorough review and may request additional information."
	default:
		return "Your risk assessment has been completed."
	}
}

// Delay history values accepted by the legacy flow.
const (
	DelayNone       = "none"
	DelayOccasional = "occasional"
	DelayFrequent   = "frequent"
)

// RegistrationInput is a validated submission. Free-text "other" values are
// already folded into Industry and Certifications.
type RegistrationInput struct {
	Mode            RegistrationMode
	CompanyName     string
	Email           string
	ContactPerson   string
	Phone           string
	Address         string
	Country         string
	Industry        string
	Certifications  []string
	CompanySize     string
	YearsInBusiness int
	TurnoverTime    int
	Description     string
	DelayHistory    string
	AgreeToTerms    bool
}

// Count is a non-negative integer that also decodes from numeric strings,
// which is how older records stored yearsInBusiness and turnoverTime.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*c = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("count %q: %w", s, err)
		}
		*c = Count(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = Count(n)
	return nil
}

// Supplier is the persisted supplier record.
type Supplier struct {
	SchemaVersion    int              `json:"schemaVersion"`
	ID               string           `json:"id"`
	CompanyName      string           `json:"companyName"`
	Email            string           `json:"email"`
	ContactPerson    string           `json:"contactPerson"`
	Phone            string           `json:"phone,omitempty"`
	Address          string           `json:"address,omitempty"`
	Country          string           `json:"country"`
	Industry         string           `json:"industry"`
	Certifications   []string         `json:"certifications"`
	CompanySize      string           `json:"companySize,omitempty"`
	YearsInBusiness  Count            `json:"yearsInBusiness"`
	TurnoverTime     Count            `json:"turnoverTime"`
	Description      string           `json:"description,omitempty"`
	DelayHistory     string           `json:"delayHistory,omitempty"`
	AgreeToTerms     bool             `json:"agreeToTerms"`
	RiskScore        int              `json:"riskScore"`
	RiskCategory     RiskCategory     `json:"riskCategory"`
	SubmittedAt      time.Time        `json:"submittedAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	RegistrationType RegistrationType `json:"registrationType"`
	RegistrationMode RegistrationMode `json:"registrationMode,omitempty"`
	Username         string           `json:"username,omitempty"`
	PasswordHash     string           `json:"passwordHash,omitempty"`
	ProfilePicture   string           `json:"profilePicture,omitempty"`
	InviteAccepted   bool             `json:"inviteAccepted"`
	InviteAcceptedAt *time.Time       `json:"inviteAcceptedAt,omitempty"`
}

// NewSupplier builds an unsaved record from a validated input and its assessment.
func NewSupplier(in RegistrationInput, a Assessment) Supplier {
	return Supplier{
		SchemaVersion:    CurrentSchemaVersion,
		CompanyName:      in.CompanyName,
		Email:            in.Email,
		ContactPerson:    in.ContactPerson,
		Phone:            in.Phone,
		Address:          in.Address,
		Country:          in.Country,
		Industry:         in.Industry,
		Certifications:   copyStrings(in.Certifications),
		CompanySize:      in.CompanySize,
		YearsInBusiness:  Count(in.YearsInBusiness),
		TurnoverTime:     Count(in.TurnoverTime),
		Description:      in.Description,
		DelayHistory:     in.DelayHistory,
		AgreeToTerms:     in.AgreeToTerms,
		RiskScore:        a.Score,
		RiskCategory:     a.Category,
		RegistrationType: in.Mode.Type(),
		RegistrationMode: in.Mode,
	}
}

// Mode returns the mode the record was registered under. Records written
// before the mode was stored fall back to what their fields imply.
func (s Supplier) Mode() RegistrationMode {
	if s.RegistrationMode != "" {
		return s.RegistrationMode
	}
	if s.RegistrationType == RegistrationInvite {
		return ModeInvite
	}
	if s.DelayHistory != "" {
		return ModeMinimal
	}
	return ModeStrict
}

// Input reconstructs the scoring input from the stored fields.
func (s Supplier) Input() RegistrationInput {
	return RegistrationInput{
		Mode:            s.Mode(),
		CompanyName:     s.CompanyName,
		Email:           s.Email,
		ContactPerson:   s.ContactPerson,
		Phone:           s.Phone,
		Address:         s.Address,
		Country:         s.Country,
		Industry:        s.Industry,
		Certifications:  copyStrings(s.Certifications),
		CompanySize:     s.CompanySize,
		YearsInBusiness: int(s.YearsInBusiness),
		TurnoverTime:    int(s.TurnoverTime),
		Description:     s.Description,
		DelayHistory:    s.DelayHistory,
		AgreeToTerms:    s.AgreeToTerms,
	}
}

// HasCredentials reports whether the create-login step already ran.
func (s Supplier) HasCredentials() bool {
	return s.Username != "" && s.PasswordHash != ""
}

// Clone returns a copy that shares no slices or pointers with s.
func (s Supplier) Clone() Supplier {
	out := s
	if s.Certifications != nil {
		out.Certifications = make([]string, len(s.Certifications))
		copy(out.Certifications, s.Certifications)
	}
	if s.InviteAcceptedAt != nil {
		at := *s.InviteAcceptedAt
		out.InviteAcceptedAt = &at
	}
	return out
}

// Patch holds the mutable fields of a supplier. Nil means unchanged.
// id, submittedAt and registrationType have no entry here and cannot be written.
type Patch struct {
	CompanyName      *string
	Email            *string
	ContactPerson    *string
	Phone            *string
	Address          *string
	Country          *string
	Industry         *string
	Certifications   *[]string
	CompanySize      *string
	YearsInBusiness  *int
	TurnoverTime     *int
	Description      *string
	Username         *string
	PasswordHash     *string
	ProfilePicture   *string
	InviteAccepted   *bool
	InviteAcceptedAt *time.Time
}

// IsEmpty reports whether the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

func (p Patch) apply(s *Supplier) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&s.CompanyName, p.CompanyName)
	setString(&s.Email, p.Email)
	setString(&s.ContactPerson, p.ContactPerson)
	setString(&s.Phone, p.Phone)
	setString(&s.Address, p.Address)
	setString(&s.Country, p.Country)
	setString(&s.Industry, p.Industry)
	setString(&s.CompanySize, p.CompanySize)
	setString(&s.Description, p.Description)
	setString(&s.Username, p.Username)
	setString(&s.PasswordHash, p.PasswordHash)
	setString(&s.ProfilePicture, p.ProfilePicture)
	if p.Certifications != nil {
		s.Certifications = copyStrings(*p.Certifications)
	}
	if p.YearsInBusiness != nil {
		s.YearsInBusiness = Count(*p.YearsInBusiness)
	}
	if p.TurnoverTime != nil {
		s.TurnoverTime = Count(*p.TurnoverTime)
	}
	if p.InviteAccepted != nil {
		s.InviteAccepted = *p.InviteAccepted
	}
	if p.InviteAcceptedAt != nil {
		at := *p.InviteAcceptedAt
		s.InviteAcceptedAt = &at
	}
}

// copyStrings never returns nil so records always serialise certifications as a list.
func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
