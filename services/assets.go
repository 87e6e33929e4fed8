// services/assets.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"hunt-publish-system/logger"
	"hunt-publish-system/models"
	"hunt-publish-system/store"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssetProber reports whether an object exists in the asset bucket.
type AssetProber interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// AssetUsageService rebuilds the asset_usages rows of a hunt from the steps of its latest
// and live versions. The index is derived data; a failed rebuild is repaired by the sweeper.
type AssetUsageService struct {
	DB     *gorm.DB
	Store  store.Store
	Runner store.TxRunner
	Prober AssetProber // optional
	log    *logger.Logger
}

func NewAssetUsageService(db *gorm.DB, st store.Store, runner store.TxRunner, prober AssetProber, log *logger.Logger) *AssetUsageService {
	return &AssetUsageService{
		DB:     db,
		Store:  st,
		Runner: runner,
		Prober: prober,
		log:    log.With("service", "AssetUsageService"),
	}
}

func (a *AssetUsageService) Rebuild(ctx context.Context, huntID int64) (err error) {
	defer func() {
		assetReindexTotal.WithLabelValues(resultLabel(err)).Inc()
	}()

	// Stamped before the reads: an edit committed after them keeps the hunt stale.
	now := store.Now()
	read := store.Detached(ctx, a.DB)
	var hunt models.Hunt
	if err := a.Store.First(read, &hunt, store.Filter{"id": huntID}); err != nil {
		return err
	}

	versions := []int{hunt.LatestVersion}
	if hunt.LiveVersion != nil && *hunt.LiveVersion != hunt.LatestVersion {
		versions = append(versions, *hunt.LiveVersion)
	}
	var steps []models.Step
	if err := a.Store.Find(read, &steps, store.Filter{"hunt_id": huntID, "hunt_version": versions}, "hunt_version, step_id"); err != nil {
		return err
	}

	usages := make([]models.AssetUsage, 0)
	presence := make(map[string]*bool)
	for _, step := range steps {
		keys := mergeKeys(ExtractAssetKeys(step.Challenge), ExtractAssetKeys(step.Settings))
		for _, key := range keys {
			present, seen := presence[key]
			if !seen {
				present = a.probe(ctx, key)
				presence[key] = present
			}
			usages = append(usages, models.AssetUsage{
				ID:          uuid.NewString(),
				HuntID:      huntID,
				HuntVersion: step.HuntVersion,
				StepID:      step.StepID,
				AssetKey:    key,
				Present:     present,
				IndexedAt:   now,
			})
		}
	}

	err = a.Runner.InTx(ctx, func(s store.Session) error {
		// Rebuilds of the same hunt queue on its row, so one never deletes under another's insert.
		var locked models.Hunt
		if err := s.DB().Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Where("id = ?", huntID).First(&locked).Error; err != nil {
			return err
		}
		if err := s.DB().Where("hunt_id = ?", huntID).Delete(&models.AssetUsage{}).Error; err != nil {
			return err
		}
		if len(usages) > 0 {
			if err := a.Store.InsertBatch(s, &usages, defaultCloneBatchSize); err != nil {
				return err
			}
		}
		// UpdateColumn leaves updated_at alone, otherwise the hunt would always look stale.
		return s.DB().Model(&models.Hunt{}).Where("id = ?", huntID).UpdateColumn("assets_indexed_at", now).Error
	})
	if err != nil {
		return store.MapError("hunt.asset_reindex", err)
	}
	a.log.Debug("asset usage rebuilt", "hunt_id", huntID, "versions", versions, "usages", len(usages))
	return nil
}

// StaleHunts lists hunts whose asset index is missing or older than their last change.
func (a *AssetUsageService) StaleHunts(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	err := a.DB.WithContext(ctx).
		Model(&models.Hunt{}).
		Where("assets_indexed_at IS NULL OR assets_indexed_at < updated_at").
		Order("updated_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list stale hunts: %w", err)
	}
	return ids, nil
}

// Usages returns the indexed rows of a hunt ordered by version, step and key.
func (a *AssetUsageService) Usages(ctx context.Context, huntID int64) ([]models.AssetUsage, error) {
	var rows []models.AssetUsage
	err := a.Store.Find(store.Detached(ctx, a.DB), &rows, store.Filter{"hunt_id": huntID}, "hunt_version, step_id, asset_key")
	return rows, err
}

func (a *AssetUsageService) probe(ctx context.Context, key string) *bool {
	if a.Prober == nil {
		return nil
	}
	ok, err := a.Prober.Exists(ctx, key)
	if err != nil {
		a.log.Warn("asset probe failed", "asset_key", key, "error", err)
		return nil
	}
	return &ok
}

// ExtractAssetKeys collects every "asset_key" string and "asset_keys" string list found at
// any depth of a step's JSON document. Result is sorted and deduplicated.
func ExtractAssetKeys(doc datatypes.JSON) []string {
	if len(doc) == 0 {
		return nil
	}
	var root interface{}
	if err := json.Unmarshal(doc, &root); err != nil {
		return nil
	}
	found := make(map[string]struct{})
	walkAssetKeys(root, found)
	return sortedKeys(found)
}

func walkAssetKeys(node interface{}, found map[string]struct{}) {
	switch v := node.(type) {
	case map[string]interface{}:
		for k, child := range v {
			switch k {
			case "asset_key":
				if s, ok := child.(string); ok && s != "" {
					found[s] = struct{}{}
					continue
				}
			case "asset_keys":
				if list, ok := child.([]interface{}); ok {
					for _, item := range list {
						if s, ok := item.(string); ok && s != "" {
							found[s] = struct{}{}
						}
					}
					continue
				}
			}
			walkAssetKeys(child, found)
		}
	case []interface{}:
		for _, child := range v {
			walkAssetKeys(child, found)
		}
	}
}

func mergeKeys(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, k := range a {
		set[k] = struct{}{}
	}
	for _, k := range b {
		set[k] = struct{}{}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
