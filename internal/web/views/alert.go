package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ErrorAlert renders a dismissible error with its code and suggested action.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		h.open("div", "class", "alert alert-error", "role", "alert", "data-code", code)
		h.element("p", message, "class", "alert-message")
		if action != "" {
			h.element("p", action, "class", "alert-action")
		}
		h.element("span", code, "class", "alert-code")
		h.close("div")
		return h.err
	})
}
