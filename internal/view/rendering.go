package view

import (
	"github.com/a-h/templ"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
)

func RenderComponent(c *fiber.Ctx, status int, component templ.Component) error {
	c.Status(status).Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Context(), c)
}

// Trigger sets the HX-Trigger response header so htmx dispatches event with
// detail on the client after the swap.
func Trigger(c *fiber.Ctx, event string, detail any) error {
	header, err := sonic.Marshal(map[string]any{event: detail})
	if err != nil {
		return err
	}
	c.Set("HX-Trigger", string(header))
	return nil
}
