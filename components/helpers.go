package components

import (
	"authpage/internal/constants"
	"context"
	"github.com/bytedance/sonic"
)

func GetCsrfToken(ctx context.Context) string {
	if csrfToken, ok := ctx.Value(constants.CsrfTokenContextKey).(string); ok {
		return csrfToken
	}
	return ""
}

// CsrfHeaders returns the hx-headers value that sends the CSRF token with
// every htmx request.
func CsrfHeaders(ctx context.Context) string {
	headers, err := sonic.MarshalString(map[string]string{
		constants.CsrfHeaderName: GetCsrfToken(ctx),
	})
	if err != nil {
		// a map of strings always encodes
		panic(err)
	}
	return headers
}
