package app

import (
	"authpage/internal/authform"
	"authpage/internal/constants"
	"errors"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/session"
	"strconv"
)

var errNoForm = errors.New("no auth form in request context")

// formSession is the auth form of one request together with the session
// values it was loaded from. Only values the request changed are written
// back, so concurrent requests of the same page do not undo each other.
type formSession struct {
	store    *session.Store
	form     *authform.Form
	baseline map[string]string
	fresh    bool
}

// WithForm loads the auth form of the current session into c.Locals and
// writes its changes back once the handler returns without error.
func WithForm(sessionStore *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := sessionStore.Get(c)
		if err != nil {
			return err
		}

		form := loadForm(sess)
		fs := &formSession{
			store:    sessionStore,
			form:     form,
			baseline: formValues(form),
			fresh:    sess.Fresh(),
		}
		c.Locals(constants.FormContextKey, fs)

		if err := c.Next(); err != nil {
			return err
		}
		return fs.save(c)
	}
}

// save writes the values changed since the last save into the latest stored
// session.
func (fs *formSession) save(c *fiber.Ctx) error {
	current := formValues(fs.form)
	changed := make(map[string]string)
	for key, value := range current {
		if fs.baseline[key] != value {
			changed[key] = value
		}
	}
	if len(changed) == 0 && !fs.fresh {
		return nil
	}

	sess, err := fs.store.Get(c)
	if err != nil {
		return err
	}
	for key, value := range changed {
		sess.Set(key, value)
	}
	if err := sess.Save(); err != nil {
		fiberlog.Error("failed to save session: ", err)
		return err
	}

	fs.baseline = current
	fs.fresh = false
	return nil
}

func sessionFrom(c *fiber.Ctx) (*formSession, error) {
	fs, ok := c.Locals(constants.FormContextKey).(*formSession)
	if !ok || fs == nil {
		return nil, errNoForm
	}
	return fs, nil
}

func formFrom(c *fiber.Ctx) (*authform.Form, error) {
	fs, err := sessionFrom(c)
	if err != nil {
		return nil, err
	}
	return fs.form, nil
}

// mount replaces the session form with a fresh one.
func mount(c *fiber.Ctx) (*authform.Form, error) {
	fs, err := sessionFrom(c)
	if err != nil {
		return nil, err
	}
	fs.form = authform.New()
	return fs.form, nil
}

// loadForm restores everything but the password, which stays in the browser.
func loadForm(sess *session.Session) *authform.Form {
	mode := authform.ParseMode(sessionString(sess, constants.SessionModeKey))
	disclosed := sessionString(sess, constants.SessionReferralKey) == "true"

	var state authform.State
	for _, f := range storedFields() {
		// With only fails for unknown fields
		state, _ = state.With(f, sessionString(sess, constants.SessionFieldPrefix+string(f)))
	}
	return authform.Restore(mode, disclosed, state)
}

// formValues flattens the stored part of form into session keys.
func formValues(form *authform.Form) map[string]string {
	values := map[string]string{
		constants.SessionModeKey:     form.Mode().String(),
		constants.SessionReferralKey: strconv.FormatBool(form.ReferralDisclosed()),
	}
	state := form.State()
	for _, f := range storedFields() {
		values[constants.SessionFieldPrefix+string(f)] = state.Get(f)
	}
	return values
}

func storedFields() []authform.Field {
	fields := make([]authform.Field, 0, len(authform.Fields))
	for _, f := range authform.Fields {
		if f != authform.FieldPassword {
			fields = append(fields, f)
		}
	}
	return fields
}

func sessionString(sess *session.Session, key string) string {
	if v, ok := sess.Get(key).(string); ok {
		return v
	}
	return ""
}
