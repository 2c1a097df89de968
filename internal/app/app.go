package app

import (
	"authpage/internal/authform"
	"authpage/internal/config"
	"authpage/internal/constants"
	"authpage/internal/view"
	authviews "authpage/views/auth"
	errorviews "authpage/views/errors"
	"context"
	"errors"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"net/http"
	"time"
)

func New(config *config.Config) *fiber.App {
	fiberlog.Debug("Starting app with config:", config)

	app := fiber.New(fiber.Config{
		AppName:      "AuthPage 0.1.0",
		ErrorHandler: errorHandler,
		JSONEncoder:  sonic.Marshal,
		JSONDecoder:  sonic.Unmarshal,
	})

	// Memory storage: form state never outlives the process.
	sessionStore := session.New(session.Config{
		Expiration:     time.Hour,
		KeyLookup:      "cookie:authpage_session_id",
		CookieSecure:   config.CookieSecure,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
	})

	app.Use(logger.New(logger.Config{
		DisableColors: config.DisableLogColors,
	}))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: config.EnableStackTrace,
	}))
	app.Use(compress.New())
	app.Use(helmet.New(helmet.Config{
		// htmx is loaded from unpkg
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'",
	}))
	app.Use(favicon.New())
	if config.StaticFS != nil {
		app.Use("/static", filesystem.New(filesystem.Config{
			Root:       http.FS(config.StaticFS),
			PathPrefix: "static",
		}))
	}

	// Combine two CSRF extractors: use form field as default
	// so forms work without JS, with header as fallback.
	csrfFromForm := csrf.CsrfFromForm(constants.CsrfInputName)
	csrfFromHeader := csrf.CsrfFromHeader(constants.CsrfHeaderName)

	app.Use(csrf.New(csrf.Config{
		CookieSecure:   config.CookieSecure,
		CookieSameSite: "Lax",
		Expiration:     time.Hour,
		Extractor: func(c *fiber.Ctx) (string, error) {
			token, err := csrfFromForm(c)
			if err == nil {
				return token, nil
			}

			if errors.Is(err, csrf.ErrMissingForm) {
				return csrfFromHeader(c)
			}

			// unexpected programmer error
			panic(err)
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			fiberlog.Error("CSRF error: ", err.Error())
			return view.RenderComponent(c, fiber.StatusForbidden,
				errorviews.GenericError(fiber.StatusForbidden, "Forbidden"))
		},
		ContextKey: constants.CsrfTokenContextKey,
		CookieName: "authpage_csrf",
	}))

	auth := AuthHandlers{
		submitter: authform.NewSubmitter(
			authform.WithBaseURL(config.BackendUrl),
			authform.WithDoer(config.HTTPClient),
		),
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/auth", fiber.StatusFound)
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "up"})
	})

	form := app.Group("/auth", WithForm(sessionStore))
	form.Get("/", auth.Show)
	form.Patch("/fields/:field", auth.ChangeField)
	form.Post("/mode", auth.ToggleMode)
	form.Post("/referral", auth.ToggleReferral)
	form.Post("/submit", auth.Submit)

	return app
}

type AuthHandlers struct {
	submitter *authform.Submitter
}

// Show mounts a fresh form and renders the whole page.
func (h *AuthHandlers) Show(c *fiber.Ctx) error {
	form, err := mount(c)
	if err != nil {
		return err
	}
	return view.RenderComponent(c, fiber.StatusOK, authviews.Page(authviews.CardProps{Form: form}))
}

func (h *AuthHandlers) ChangeField(c *fiber.Ctx) error {
	form, err := formFrom(c)
	if err != nil {
		return err
	}

	field, err := authform.ParseField(c.Params("field"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := form.SetField(field, c.FormValue(string(field))); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandlers) ToggleMode(c *fiber.Ctx) error {
	return h.toggle(c, (*authform.Form).ToggleMode)
}

func (h *AuthHandlers) ToggleReferral(c *fiber.Ctx) error {
	return h.toggle(c, (*authform.Form).ToggleReferral)
}

func (h *AuthHandlers) toggle(c *fiber.Ctx, flip func(*authform.Form)) error {
	form, err := formFrom(c)
	if err != nil {
		return err
	}
	mergePostedFields(c, form)

	before := form.VisibleFields()
	flip(form)

	return view.RenderComponent(c, fiber.StatusOK, authviews.Card(authviews.CardProps{
		Form:     form,
		Entering: entering(before, form.VisibleFields()),
	}))
}

// Submit posts the form to the backend. Failures are reported to the user
// like successes, so the response is always 200. The session is saved before
// the round trip so edits arriving meanwhile are not overwritten afterwards.
func (h *AuthHandlers) Submit(c *fiber.Ctx) error {
	fs, err := sessionFrom(c)
	if err != nil {
		return err
	}
	mergePostedFields(c, fs.form)
	if err := fs.save(c); err != nil {
		return err
	}
	state, mode := fs.form.State(), fs.form.Mode()

	n := &htmxNotifier{c: c}
	if err := h.submitter.SubmitAndNotify(c.UserContext(), state, mode, n); err != nil {
		fiberlog.Debug("submission failed: ", err)
	}
	return n.err
}

// mergePostedFields applies every known field present in the request body.
// Inputs debounce their own updates, so the body can be ahead of the session,
// and the password only ever arrives this way.
func mergePostedFields(c *fiber.Ctx, form *authform.Form) {
	args := c.Request().PostArgs()
	for _, f := range authform.Fields {
		if args.Has(string(f)) {
			// known field, cannot fail
			_ = form.SetField(f, string(args.Peek(string(f))))
		}
	}
}

func entering(before, after []authform.Field) []authform.Field {
	seen := make(map[authform.Field]bool, len(before))
	for _, f := range before {
		seen[f] = true
	}
	var added []authform.Field
	for _, f := range after {
		if !seen[f] {
			added = append(added, f)
		}
	}
	return added
}

type notification struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// htmxNotifier answers the submit request with the outcome fragment and an
// HX-Trigger event the page script turns into an alert.
type htmxNotifier struct {
	c   *fiber.Ctx
	err error
}

func (n *htmxNotifier) Notify(_ context.Context, outcome authform.Outcome) {
	if n.err = view.Trigger(n.c, constants.NotifyEvent, notification{OK: outcome.OK, Message: outcome.Message}); n.err != nil {
		return
	}
	n.err = view.RenderComponent(n.c, fiber.StatusOK, authviews.Notice(outcome))
}
