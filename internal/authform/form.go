package authform

import (
	"errors"
	"fmt"
)

// Mode selects which view is rendered and which endpoint a submission targets.
type Mode int

const (
	Login Mode = iota
	Register
)

func (m Mode) String() string {
	if m == Register {
		return "register"
	}
	return "login"
}

// ParseMode is the inverse of Mode.String. Anything unrecognised is Login.
func ParseMode(s string) Mode {
	if s == Register.String() {
		return Register
	}
	return Login
}

// Field identifies one input of the form. The values double as the input
// names and the JSON keys of the submitted payload.
type Field string

const (
	FieldName     Field = "name"
	FieldEmail    Field = "email"
	FieldPassword Field = "password"
	FieldReferral Field = "referal"
)

// Fields lists every known field in payload order.
var Fields = []Field{FieldName, FieldEmail, FieldPassword, FieldReferral}

var ErrUnknownField = errors.New("unknown form field")

// ParseField validates a field identifier coming from the outside.
func ParseField(s string) (Field, error) {
	for _, f := range Fields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// State holds every field value. Inapplicable fields stay as empty strings
// and are still serialised.
type State struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Referral string `json:"referal" form:"referal"`
}

// Get returns the current value of f.
func (s State) Get(f Field) string {
	switch f {
	case FieldName:
		return s.Name
	case FieldEmail:
		return s.Email
	case FieldPassword:
		return s.Password
	case FieldReferral:
		return s.Referral
	}
	return ""
}

// With returns a copy of s with only f replaced.
func (s State) With(f Field, value string) (State, error) {
	switch f {
	case FieldName:
		s.Name = value
	case FieldEmail:
		s.Email = value
	case FieldPassword:
		s.Password = value
	case FieldReferral:
		s.Referral = value
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownField, string(f))
	}
	return s, nil
}

// Form is the per-session auth form. It is owned by a single request at a
// time and does no locking.
type Form struct {
	mode              Mode
	referralDisclosed bool
	state             State
}

// New returns a form in Login mode with empty fields.
func New() *Form {
	return &Form{}
}

// Restore rebuilds a form from previously captured values.
func Restore(mode Mode, referralDisclosed bool, state State) *Form {
	return &Form{
		mode:              mode,
		referralDisclosed: referralDisclosed,
		state:             state,
	}
}

func (f *Form) Mode() Mode {
	return f.mode
}

func (f *Form) ReferralDisclosed() bool {
	return f.referralDisclosed
}

func (f *Form) State() State {
	return f.state
}

// SetField replaces a single field value. Other fields are left as they are.
func (f *Form) SetField(field Field, value string) error {
	next, err := f.state.With(field, value)
	if err != nil {
		return err
	}
	f.state = next
	return nil
}

// ToggleMode flips between Login and Register without touching values.
func (f *Form) ToggleMode() {
	if f.mode == Register {
		f.mode = Login
	} else {
		f.mode = Register
	}
}

// ToggleReferral flips the referral code disclosure. The referral value is
// kept while hidden.
func (f *Form) ToggleReferral() {
	f.referralDisclosed = !f.referralDisclosed
}

// ShowsReferralToggle reports whether the "I have a referral code" control
// is rendered.
func (f *Form) ShowsReferralToggle() bool {
	return f.mode == Register
}

// Visible reports whether the input for field is rendered in the current view.
func (f *Form) Visible(field Field) bool {
	switch field {
	case FieldEmail, FieldPassword:
		return true
	case FieldName:
		return f.mode == Register
	case FieldReferral:
		return f.mode == Register && f.referralDisclosed
	}
	return false
}

// VisibleFields returns the rendered fields in payload order.
func (f *Form) VisibleFields() []Field {
	visible := make([]Field, 0, len(Fields))
	for _, field := range Fields {
		if f.Visible(field) {
			visible = append(visible, field)
		}
	}
	return visible
}
