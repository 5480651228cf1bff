package dbctx

import (
	"context"

	"gorm.io/gorm"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/ctxutil"
)

// Context bundles a request context with an optional GORM transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Conn returns the transaction when one is set, otherwise fallback, bound to Ctx.
func (c Context) Conn(fallback *gorm.DB) *gorm.DB {
	conn := c.Tx
	if conn == nil {
		conn = fallback
	}
	return conn.WithContext(ctxutil.Default(c.Ctx))
}
