package middleware

// identity.go defines helper functions shared across middleware files. It
// provides requestUserID, which reads the user identifier that JWTAuth stored
// in the Echo context under "user_id". The raw claim type depends on how the
// identity service encoded the subject (JSON numbers decode as float64), so
// every plausible representation is normalized to a string. When no user is
// authenticated, "anon" is returned so rate-limit keys stay well formed.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// requestUserID returns the authenticated user's identifier as a string, or
// "anon" when the request carries no usable identity.
func requestUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return "anon"
}
