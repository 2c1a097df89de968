package auth

import (
	"authpage/internal/authform"
	"strconv"
	"strings"
)

// TransitionMs is the enter/exit duration of the optional fields. It must
// match the animations in static/authform.css.
const TransitionMs = 300

// CardSwap is the hx-swap used by every request that re-renders the card.
var CardSwap = "outerHTML swap:" + strconv.Itoa(TransitionMs) + "ms"

type CardProps struct {
	Form *authform.Form
	// Entering lists fields that just became visible and should animate in.
	Entering []authform.Field
	// Appear fades the whole card in, used on the initial page load.
	Appear bool
}

func (p CardProps) Title() string {
	if p.Form.Mode() == authform.Register {
		return "Register"
	}
	return "Login"
}

func (p CardProps) withAppear() CardProps {
	p.Appear = true
	return p
}

func (p CardProps) entering(f authform.Field) bool {
	for _, e := range p.Entering {
		if e == f {
			return true
		}
	}
	return false
}

func (p CardProps) switchPrompt() string {
	if p.Form.Mode() == authform.Register {
		return "Already have an account?"
	}
	return "Don't have an account?"
}

func (p CardProps) switchLabel() string {
	if p.Form.Mode() == authform.Register {
		return "Login"
	}
	return "Register"
}

func (p CardProps) referralLabel() string {
	if p.Form.ReferralDisclosed() {
		return "I don’t have a referral code"
	}
	return "I have a referral code"
}

// modeCollapses returns the selectors of the fields hidden by toggling mode.
func (p CardProps) modeCollapses() string {
	if p.Form.Mode() != authform.Register {
		return ""
	}
	sel := []string{fieldID(authform.FieldName)}
	if p.Form.Visible(authform.FieldReferral) {
		sel = append(sel, fieldID(authform.FieldReferral))
	}
	return "#" + strings.Join(sel, ", #")
}

func (p CardProps) referralCollapses() string {
	if p.Form.ReferralDisclosed() {
		return "#" + fieldID(authform.FieldReferral)
	}
	return ""
}

func fieldID(f authform.Field) string {
	return "field-" + string(f)
}

func fieldPath(f authform.Field) string {
	return "/auth/fields/" + string(f)
}
