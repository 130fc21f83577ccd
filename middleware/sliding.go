package middleware

import (
	"net/http"

	goRWT "github.com/MrEthical07/goRWT"
)

// RequireSliding behaves like [Guard] and additionally resets the session's
// TTL on every accepted request, whatever the engine's VerifyExtendsToken
// setting. A failed extension rejects the request.
func RequireSliding(engine *goRWT.Engine, secret SecretFunc) func(http.Handler) http.Handler {
	return guard(engine, secret, true)
}
