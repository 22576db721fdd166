package middleware

import (
	"bytes"
	"strings"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"
)

// OpsAuth validates Bearer tokens against the bcrypt hash of the
// configured ops token. The plaintext token is hashed once at startup
// and never kept in memory afterwards.
func OpsAuth(tokenHash []byte) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if len(tokenHash) == 0 {
				ctx.SetStatusCode(fasthttp.StatusForbidden)
				ctx.SetBodyString("ops endpoints disabled (APP_OPS_TOKEN not set)")
				return
			}

			auth := ctx.Request.Header.Peek("Authorization")
			if len(auth) == 0 {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("missing Authorization header")
				return
			}

			const prefix = "Bearer "
			if !bytes.HasPrefix(auth, []byte(prefix)) {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("invalid Authorization header")
				return
			}

			token := strings.TrimSpace(string(auth[len(prefix):]))
			if token == "" {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("empty bearer token")
				return
			}

			if err := bcrypt.CompareHashAndPassword(tokenHash, []byte(token)); err != nil {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("invalid ops token")
				return
			}

			next(ctx)
		}
	}
}

// HashOpsToken bcrypt-hashes the configured token at startup. An empty
// token yields nil, which OpsAuth treats as "disabled".
func HashOpsToken(token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}
	return bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
}
