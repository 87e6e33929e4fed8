// store/tx.go
package store

import (
	"context"

	"hunt-publish-system/apperr"

	"gorm.io/gorm"
)

// Session is one unit of work: every read and conditional write of an operation goes
// through the same Tx so a validate-then-act sequence cannot interleave with another writer.
type Session struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// DB returns the session handle bound to the session context.
func (s Session) DB() *gorm.DB {
	ctx := s.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return s.Tx.WithContext(ctx)
}

// Detached wraps a plain handle for reads that do not need a transaction.
func Detached(ctx context.Context, db *gorm.DB) Session {
	return Session{Ctx: ctx, Tx: db}
}

// TxRunner is the transaction boundary: commit when fn returns nil, roll back and
// return fn's error otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(s Session) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(s Session) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return apperr.New(apperr.CodeInternal, "store.tx", "transaction runner has nil db", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Session{Ctx: ctx, Tx: tx})
	})
}
