// Package requestid carries a per-request correlation id through a context.
package requestid

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const (
	Header      = "X-Request-Id"
	MetadataKey = "x-request-id"
	maxLength   = 128
)

type ctxKey struct{}

func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Sanitize returns the caller supplied id when it is usable and a fresh
// uuid otherwise.
func Sanitize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxLength || strings.ContainsAny(id, "\r\n") {
		return uuid.NewString()
	}
	return id
}
