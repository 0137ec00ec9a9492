package suppliers

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// RegistrationForm is the raw submission as it arrives from the multi-step form.
type RegistrationForm struct {
	CompanyName        string   `json:"companyName"`
	Email              string   `json:"email"`
	ContactPerson      string   `json:"contactPerson"`
	Phone              string   `json:"phone"`
	Address            string   `json:"address"`
	Country            string   `json:"country"`
	Industry           string   `json:"industry"`
	OtherIndustry      string   `json:"otherIndustry"`
	OtherIndustryText  string   `json:"otherIndustryText"`
	Certifications     []string `json:"certifications"`
	OtherCertification string   `json:"otherCertification"`
	CompanySize        string   `json:"companySize"`
	YearsInBusiness    string   `json:"yearsInBusiness"`
	TurnoverTime       string   `json:"turnoverTime"`
	Description        string   `json:"description"`
	DelayHistory       string   `json:"delayHistory"`
	AgreeToTerms       bool     `json:"agreeToTerms"`
	InviteCode         string   `json:"inviteCode,omitempty"`
}

// Schema is a named strictness configuration of the validator.
type Schema struct {
	Name     string
	Required map[string]bool
	// AllowZeroCounts accepts "0" for yearsInBusiness and turnoverTime.
	AllowZeroCounts bool
	// AcceptDelayHistory enables the legacy delayHistory field.
	AcceptDelayHistory bool
}

var (
	StrictSchema = Schema{
		Name: "strict",
		Required: map[string]bool{
			"companyName":     true,
			"email":           true,
			"contactPerson":   true,
			"address":         true,
			"country":         true,
			"industry":        true,
			"companySize":     true,
			"yearsInBusiness": true,
			"turnoverTime":    true,
		},
	}
	MinimalSchema = Schema{
		Name: "minimal",
		Required: map[string]bool{
			"companyName":   true,
			"email":         true,
			"contactPerson": true,
			"country":       true,
			"industry":      true,
		},
		AllowZeroCounts:    true,
		AcceptDelayHistory: true,
	}
)

// SchemaFor returns the schema a registration mode validates against.
func SchemaFor(mode RegistrationMode) Schema {
	if mode == ModeMinimal {
		return MinimalSchema
	}
	return StrictSchema
}

// fieldRule describes the format constraint of a field. Whether the field is
// required comes from the active Schema.
type fieldRule struct {
	name   string
	label  string
	format string
	value  func(*RegistrationForm) string
}

var fieldRules = []fieldRule{
	{"companyName", "Company name", "singleline,min=2,max=200", func(f *RegistrationForm) string { return f.CompanyName }},
	{"email", "Email", "singleline,email,max=254", func(f *RegistrationForm) string { return f.Email }},
	{"contactPerson", "Contact person name", "singleline,min=2,max=200", func(f *RegistrationForm) string { return f.ContactPerson }},
	{"phone", "Phone number", "intlphone", func(f *RegistrationForm) string { return f.Phone }},
	{"address", "Address", "singleline,min=5,max=500", func(f *RegistrationForm) string { return f.Address }},
	{"country", "Country", "singleline,max=100", func(f *RegistrationForm) string { return f.Country }},
	{"industry", "Industry", "singleline,max=100", func(f *RegistrationForm) string { return f.Industry }},
	{"companySize", "Company size", "singleline,max=50", func(f *RegistrationForm) string { return f.CompanySize }},
	{"yearsInBusiness", "Years in business", "digits,max=4", func(f *RegistrationForm) string { return f.YearsInBusiness }},
	{"turnoverTime", "Turnover time", "digits,max=12", func(f *RegistrationForm) string { return f.TurnoverTime }},
	{"description", "Description", "max=2000", func(f *RegistrationForm) string { return f.Description }},
}

var (
	phoneShape = regexp.MustCompile(`^\+?[0-9\s\-().]{7,25}$`)
	digitsOnly = regexp.MustCompile(`^\d+$`)
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

const minPhoneDigits = 7

// Validator turns raw forms into RegistrationInput values.
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the custom tags used by the field rules.
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("intlphone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return digitsOnly.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("singleline", func(fl validator.FieldLevel) bool {
		return SingleLine(fl.Field().String())
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// SingleLine reports whether s is free of control characters. Values that end
// up in mail headers or log lines must pass it.
func SingleLine(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) < 0
}

// ValidPhone checks the loose international shape and the digit count.
func ValidPhone(phone string) bool {
	if !phoneShape.MatchString(phone) {
		return false
	}
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= minPhoneDigits
}

// Validate normalizes and checks a form under the schema of mode. On failure
// the error is a FieldErrors.
func (v *Validator) Validate(form RegistrationForm, mode RegistrationMode) (RegistrationInput, error) {
	schema := SchemaFor(mode)
	f := normalizeForm(form)
	errs := FieldErrors{}

	for _, rule := range fieldRules {
		value := rule.value(&f)
		tag := "omitempty," + rule.format
		if schema.Required[rule.name] {
			tag = "required," + rule.format
		}
		if err := v.v.Var(value, tag); err != nil {
			errs[rule.name] = fieldMessage(rule.label, err)
		}
	}

	years, yearsOK := parseCount(f.YearsInBusiness)
	turnover, turnoverOK := parseCount(f.TurnoverTime)
	if !schema.AllowZeroCounts {
		if _, failed := errs["yearsInBusiness"]; !failed && yearsOK && years == 0 && f.YearsInBusiness != "" {
			errs["yearsInBusiness"] = "Years in business must be greater than 0"
		}
		if _, failed := errs["turnoverTime"]; !failed && turnoverOK && turnover == 0 && f.TurnoverTime != "" {
			errs["turnoverTime"] = "Turnover time must be greater than 0"
		}
	}

	industry := f.Industry
	if strings.EqualFold(industry, "other") {
		other := f.OtherIndustryText
		if other == "" {
			other = f.OtherIndustry
		}
		if len(other) < 2 {
			errs["otherIndustryText"] = "Please specify your industry"
		} else if !SingleLine(other) {
			errs["otherIndustryText"] = "Industry must be a single line"
		} else {
			industry = other
		}
	}

	certs := make([]string, 0, len(f.Certifications))
	for _, c := range f.Certifications {
		if c == "Other" {
			if f.OtherCertification == "" {
				errs["otherCertification"] = "Please specify the other certification"
				continue
			}
			c = f.OtherCertification
		}
		if !SingleLine(c) {
			errs["certifications"] = "Certifications must be single lines"
			continue
		}
		certs = append(certs, c)
	}
	certs = dedupe(certs)

	delay := ""
	if schema.AcceptDelayHistory && f.DelayHistory != "" {
		delay = strings.ToLower(f.DelayHistory)
		if err := v.v.Var(delay, "oneof=none occasional frequent"); err != nil {
			errs["delayHistory"] = "Delay history must be one of none, occasional, frequent"
		}
	}

	if !f.AgreeToTerms {
		errs["agreeToTerms"] = "You must agree to the terms and conditions"
	}

	if len(errs) > 0 {
		return RegistrationInput{}, errs
	}

	return RegistrationInput{
		Mode:            mode,
		CompanyName:     f.CompanyName,
		Email:           f.Email,
		ContactPerson:   f.ContactPerson,
		Phone:           f.Phone,
		Address:         f.Address,
		Country:         f.Country,
		Industry:        industry,
		Certifications:  certs,
		CompanySize:     f.CompanySize,
		YearsInBusiness: years,
		TurnoverTime:    turnover,
		Description:     f.Description,
		DelayHistory:    delay,
		AgreeToTerms:    f.AgreeToTerms,
	}, nil
}

// ValidateCredentials checks the pair chosen in the create-login step.
// bcrypt only reads the first 72 bytes of a password, hence the upper bound.
func (v *Validator) ValidateCredentials(username, password string) error {
	errs := FieldErrors{}
	if err := v.v.Var(username, "required,min=3,max=64,username"); err != nil {
		errs["username"] = fieldMessage("Username", err)
	}
	if err := v.v.Var(password, "required,min=8,max=72"); err != nil {
		errs["password"] = fieldMessage("Password", err)
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ProfileUpdate is a profile edit request. Nil fields stay unchanged.
type ProfileUpdate struct {
	CompanyName     *string   `json:"companyName,omitempty"`
	Email           *string   `json:"email,omitempty"`
	ContactPerson   *string   `json:"contactPerson,omitempty"`
	Phone           *string   `json:"phone,omitempty"`
	Address         *string   `json:"address,omitempty"`
	Country         *string   `json:"country,omitempty"`
	Industry        *string   `json:"industry,omitempty"`
	Certifications  *[]string `json:"certifications,omitempty"`
	CompanySize     *string   `json:"companySize,omitempty"`
	YearsInBusiness *int      `json:"yearsInBusiness,omitempty"`
	TurnoverTime    *int      `json:"turnoverTime,omitempty"`
	Description     *string   `json:"description,omitempty"`
	ProfilePicture  *string   `json:"profilePicture,omitempty"`
}

// MaxProfilePictureBytes caps the encoded image stored on a record.
const MaxProfilePictureBytes = 2 << 20

// ValidateProfileUpdate normalizes an edit into a Patch. Identity fields may
// be changed but not cleared. Counts follow the schema of the mode the record
// was registered under.
func (v *Validator) ValidateProfileUpdate(u ProfileUpdate, mode RegistrationMode) (Patch, error) {
	schema := SchemaFor(mode)
	errs := FieldErrors{}
	var patch Patch

	str := func(name, label, tag string, src *string, dst **string, lower bool) {
		if src == nil {
			return
		}
		val := strings.TrimSpace(*src)
		if lower {
			val = strings.ToLower(val)
		}
		if err := v.v.Var(val, tag); err != nil {
			errs[name] = fieldMessage(label, err)
			return
		}
		*dst = &val
	}
	str("companyName", "Company name", "required,singleline,min=2,max=200", u.CompanyName, &patch.CompanyName, false)
	str("email", "Email", "required,singleline,email,max=254", u.Email, &patch.Email, true)
	str("contactPerson", "Contact person name", "required,singleline,min=2,max=200", u.ContactPerson, &patch.ContactPerson, false)
	str("phone", "Phone number", "omitempty,intlphone", u.Phone, &patch.Phone, false)
	str("address", "Address", "omitempty,singleline,min=5,max=500", u.Address, &patch.Address, false)
	str("country", "Country", "required,singleline,max=100", u.Country, &patch.Country, false)
	str("industry", "Industry", "required,singleline,max=100", u.Industry, &patch.Industry, false)
	str("companySize", "Company size", "omitempty,singleline,max=50", u.CompanySize, &patch.CompanySize, false)
	str("description", "Description", "omitempty,max=2000", u.Description, &patch.Description, false)

	if u.YearsInBusiness != nil {
		switch {
		case *u.YearsInBusiness < 0:
			errs["yearsInBusiness"] = "Years in business must not be negative"
		case *u.YearsInBusiness == 0 && !schema.AllowZeroCounts:
			errs["yearsInBusiness"] = "Years in business must be greater than 0"
		default:
			patch.YearsInBusiness = u.YearsInBusiness
		}
	}
	if u.TurnoverTime != nil {
		switch {
		case *u.TurnoverTime < 0:
			errs["turnoverTime"] = "Turnover time must not be negative"
		case *u.TurnoverTime == 0 && !schema.AllowZeroCounts:
			errs["turnoverTime"] = "Turnover time must be greater than 0"
		default:
			patch.TurnoverTime = u.TurnoverTime
		}
	}
	if u.Certifications != nil {
		cleaned := make([]string, 0, len(*u.Certifications))
		for _, c := range *u.Certifications {
			if c = strings.TrimSpace(c); c != "" {
				cleaned = append(cleaned, c)
			}
			if !SingleLine(c) {
				errs["certifications"] = "Certifications must be single lines"
			}
		}
		if _, failed := errs["certifications"]; !failed {
			cleaned = dedupe(cleaned)
			patch.Certifications = &cleaned
		}
	}
	if u.ProfilePicture != nil {
		pic := strings.TrimSpace(*u.ProfilePicture)
		switch {
		case pic != "" && !strings.HasPrefix(pic, "data:image/"):
			errs["profilePicture"] = "Profile picture must be an encoded image"
		case len(pic) > MaxProfilePictureBytes:
			errs["profilePicture"] = "Profile picture is too large"
		default:
			patch.ProfilePicture = &pic
		}
	}

	if len(errs) > 0 {
		return Patch{}, errs
	}
	return patch, nil
}

func normalizeForm(form RegistrationForm) RegistrationForm {
	f := form
	f.CompanyName = strings.TrimSpace(f.CompanyName)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.ContactPerson = strings.TrimSpace(f.ContactPerson)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = strings.TrimSpace(f.Address)
	f.Country = strings.TrimSpace(f.Country)
	f.Industry = strings.TrimSpace(f.Industry)
	f.OtherIndustry = strings.TrimSpace(f.OtherIndustry)
	f.OtherIndustryText = strings.TrimSpace(f.OtherIndustryText)
	f.OtherCertification = strings.TrimSpace(f.OtherCertification)
	f.CompanySize = strings.TrimSpace(f.CompanySize)
	f.YearsInBusiness = strings.TrimSpace(f.YearsInBusiness)
	f.TurnoverTime = strings.TrimSpace(f.TurnoverTime)
	f.Description = strings.TrimSpace(f.Description)
	f.DelayHistory = strings.TrimSpace(f.DelayHistory)
	f.Certifications = make([]string, 0, len(form.Certifications))
	for _, c := range form.Certifications {
		if c = strings.TrimSpace(c); c != "" {
			f.Certifications = append(f.Certifications, c)
		}
	}
	return f
}

func parseCount(s string) (int, bool) {
	if !digitsOnly.MatchString(s) {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func fieldMessage(label string, err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return label + " is invalid"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "email":
		return "Please enter a valid email address"
	case "intlphone":
		return "Please enter a valid phone number"
	case "digits":
		return label + " must be a whole number"
	case "singleline":
		return label + " must be a single line"
	default:
		return label + " is invalid"
	}
}
