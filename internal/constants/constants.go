package constants

const (
	EnvDevelopment      = "development"
	EnvProduction       = "production"
	EnvTest             = "test"
	CsrfInputName       = "_csrf"
	CsrfHeaderName      = "X-CSRF-Token"
	CsrfTokenContextKey = "csrf.token"
	FormContextKey      = "authform.form"
	NotifyEvent         = "authform:notify"

	SessionModeKey     = "authform.mode"
	SessionReferralKey = "authform.referral"
	SessionFieldPrefix = "authform.field."
)
