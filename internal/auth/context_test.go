// ABOUTME: Tests for AuthContext propagation through context.Context
// ABOUTME: Covers attach, retrieve, missing values and the anonymous identity

package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ctx := WithAuth(context.Background(), &AuthContext{Subject: "agencia-sur"})

	got := FromContext(ctx)
	if assert.NotNil(t, got) {
		assert.Equal(t, "agencia-sur", got.Subject)
	}
	assert.Equal(t, "agencia-sur", SubjectFromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	assert.Equal(t, "", SubjectFromContext(context.Background()))
}

func TestFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), authContextKey{}, "not an AuthContext")
	assert.Nil(t, FromContext(ctx))
}

func TestAnonymous(t *testing.T) {
	ctx := WithAuth(context.Background(), Anonymous)
	assert.Equal(t, "anonymous", SubjectFromContext(ctx))
}
