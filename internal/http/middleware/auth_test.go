package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func callWithAuth(handler fasthttp.RequestHandler, header string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	if header != "" {
		ctx.Request.Header.Set("Authorization", header)
	}
	handler(ctx)
	return ctx
}

func TestOpsAuth(t *testing.T) {
	hash, err := HashOpsToken("s3cret")
	require.NoError(t, err)

	var reached bool
	handler := OpsAuth(hash)(func(ctx *fasthttp.RequestCtx) {
		reached = true
		ctx.SetStatusCode(fasthttp.StatusOK)
	})

	t.Run("valid token passes", func(t *testing.T) {
		reached = false
		ctx := callWithAuth(handler, "Bearer s3cret")
		assert.True(t, reached)
		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	})

	t.Run("wrong token rejected", func(t *testing.T) {
		reached = false
		ctx := callWithAuth(handler, "Bearer wrong")
		assert.False(t, reached)
		assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	})

	t.Run("missing header rejected", func(t *testing.T) {
		reached = false
		ctx := callWithAuth(handler, "")
		assert.False(t, reached)
		assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	})

	t.Run("non-bearer scheme rejected", func(t *testing.T) {
		reached = false
		ctx := callWithAuth(handler, "Basic s3cret")
		assert.False(t, reached)
		assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	})

	t.Run("empty hash disables the surface", func(t *testing.T) {
		disabled := OpsAuth(nil)(func(ctx *fasthttp.RequestCtx) {
			t.Fatal("handler must not run")
		})
		ctx := callWithAuth(disabled, "Bearer s3cret")
		assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())
	})
}

func TestHashOpsToken(t *testing.T) {
	hash, err := HashOpsToken("")
	require.NoError(t, err)
	assert.Nil(t, hash)
}
