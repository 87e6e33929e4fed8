// store/store.go
package store

import (
	"strings"

	"hunt-publish-system/apperr"
)

// Filter is an equality match on column names. A nil value matches NULL.
type Filter map[string]interface{}

// Patch is the set of column assignments applied by CompareAndSwap.
type Patch map[string]interface{}

// Store is the conditional store adapter the pipeline depends on.
type Store interface {
	First(s Session, dest interface{}, filter Filter) error
	Find(s Session, dest interface{}, filter Filter, order string) error
	Count(s Session, model interface{}, filter Filter) (int64, error)
	// CompareAndSwap applies patch to every row matching filter and returns the matched count.
	CompareAndSwap(s Session, model interface{}, filter Filter, patch Patch) (int64, error)
	Insert(s Session, row interface{}) error
	// InsertBatch writes rows in chunks of batchSize; callers run it inside InTx so a
	// failing chunk rolls back the earlier ones.
	InsertBatch(s Session, rows interface{}, batchSize int) error
}

type GormStore struct{}

func NewGormStore() *GormStore {
	return &GormStore{}
}

func (GormStore) First(s Session, dest interface{}, filter Filter) error {
	if err := s.DB().Where(map[string]interface{}(filter)).First(dest).Error; err != nil {
		return MapError("store.first", err)
	}
	return nil
}

func (GormStore) Find(s Session, dest interface{}, filter Filter, order string) error {
	q := s.DB().Where(map[string]interface{}(filter))
	if order = strings.TrimSpace(order); order != "" {
		q = q.Order(order)
	}
	return MapError("store.find", q.Find(dest).Error)
}

func (GormStore) Count(s Session, model interface{}, filter Filter) (int64, error) {
	var n int64
	err := s.DB().Model(model).Where(map[string]interface{}(filter)).Count(&n).Error
	return n, MapError("store.count", err)
}

func (GormStore) CompareAndSwap(s Session, model interface{}, filter Filter, patch Patch) (int64, error) {
	if len(filter) == 0 {
		return 0, apperr.ValidationError("store.cas", "compare-and-swap requires a filter")
	}
	if len(patch) == 0 {
		return 0, apperr.ValidationError("store.cas", "compare-and-swap requires a patch")
	}
	res := s.DB().Model(model).
		Where(map[string]interface{}(filter)).
		Updates(map[string]interface{}(patch))
	if res.Error != nil {
		return 0, MapError("store.cas", res.Error)
	}
	return res.RowsAffected, nil
}

func (GormStore) Insert(s Session, row interface{}) error {
	return MapError("store.insert", s.DB().Create(row).Error)
}

func (GormStore) InsertBatch(s Session, rows interface{}, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	return MapError("store.insert_batch", s.DB().CreateInBatches(rows, batchSize).Error)
}

// RequireMatched turns a compare-and-swap that matched nothing into a conflict.
func RequireMatched(matched int64, op, message string) error {
	if matched > 0 {
		return nil
	}
	return apperr.ConflictError(op, message)
}
