package db

import (
	"fmt"

	"github.com/terraincognita07/labnotes/internal/models"
	"gorm.io/gorm"
)

const assetOrderClause = "CASE kind WHEN 'notebook_page' THEN 0 ELSE 1 END, sort_index ASC, id ASC"

// AddAsset inserts an asset row. A second notebook page for the same entry
// is rejected by the partial unique index with ErrConstraintViolation.
func (repo *EntryRepository) AddAsset(entryID uint, kind models.AssetKind, filePath string, caption string, sortIndex int) (models.Asset, error) {
	if !kind.Valid() {
		return models.Asset{}, fmt.Errorf("%w: unknown asset kind %q", ErrInvalidInput, kind)
	}
	if filePath == "" {
		return models.Asset{}, fmt.Errorf("%w: asset file path is required", ErrInvalidInput)
	}

	asset := models.Asset{
		EntryID:   entryID,
		Kind:      kind,
		FilePath:  filePath,
		Caption:   caption,
		SortIndex: sortIndex,
		CreatedAt: repo.now(),
	}
	if err := repo.database.Omit("Entry").Create(&asset).Error; err != nil {
		return models.Asset{}, translateError(err)
	}
	return asset, nil
}

// ReplaceNotebookPage swaps the entry's notebook page row for a new one and
// returns the replaced row, if any, so its file can be removed afterwards.
func (repo *EntryRepository) ReplaceNotebookPage(entryID uint, filePath string, caption string) (*models.Asset, models.Asset, error) {
	var replaced *models.Asset
	var created models.Asset

	err := repo.Transaction(func(tx *EntryRepository) error {
		existing, found, err := tx.FindNotebookPage(entryID)
		if err != nil {
			return err
		}
		if found {
			if err := tx.database.Delete(&models.Asset{}, existing.ID).Error; err != nil {
				return translateError(err)
			}
			replaced = &existing
		}

		created, err = tx.AddAsset(entryID, models.AssetKindNotebookPage, filePath, caption, 0)
		return err
	})
	if err != nil {
		return nil, models.Asset{}, err
	}
	return replaced, created, nil
}

func (repo *EntryRepository) FindNotebookPage(entryID uint) (models.Asset, bool, error) {
	asset := models.Asset{}
	result := repo.database.
		Where("entry_id = ? AND kind = ?", entryID, models.AssetKindNotebookPage).
		Limit(1).
		Find(&asset)
	if result.Error != nil {
		return models.Asset{}, false, translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.Asset{}, false, nil
	}
	return asset, true, nil
}

func (repo *EntryRepository) FindAsset(assetID uint) (models.Asset, error) {
	asset := models.Asset{}
	if err := repo.database.First(&asset, assetID).Error; err != nil {
		return models.Asset{}, translateError(err)
	}
	return asset, nil
}

// RemoveAsset deletes one asset row and returns it so the caller can delete
// the backing file.
func (repo *EntryRepository) RemoveAsset(assetID uint) (models.Asset, error) {
	asset, err := repo.FindAsset(assetID)
	if err != nil {
		return models.Asset{}, err
	}

	result := repo.database.Delete(&models.Asset{}, asset.ID)
	if result.Error != nil {
		return models.Asset{}, translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.Asset{}, ErrNotFound
	}
	return asset, nil
}

// ListAssets returns the entry's assets: the notebook page first, then
// photos by sort index with ties broken by id.
func (repo *EntryRepository) ListAssets(entryID uint) ([]models.Asset, error) {
	assets := make([]models.Asset, 0)
	if err := repo.database.Where("entry_id = ?", entryID).Order(assetOrderClause).Find(&assets).Error; err != nil {
		return nil, translateError(err)
	}
	return assets, nil
}

// ListEntriesWithAssets batch-loads assets for the given entries and keeps
// the order of entries.
func (repo *EntryRepository) ListEntriesWithAssets(entries []models.Entry) ([]models.EntryWithAssets, error) {
	if len(entries) == 0 {
		return []models.EntryWithAssets{}, nil
	}

	ids := make([]uint, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}

	assets := make([]models.Asset, 0)
	if err := repo.database.Where("entry_id IN ?", ids).Order("entry_id ASC, " + assetOrderClause).Find(&assets).Error; err != nil {
		return nil, translateError(err)
	}

	byEntry := make(map[uint][]models.Asset, len(entries))
	for _, asset := range assets {
		byEntry[asset.EntryID] = append(byEntry[asset.EntryID], asset)
	}

	result := make([]models.EntryWithAssets, 0, len(entries))
	for _, entry := range entries {
		result = append(result, partitionAssets(entry, byEntry[entry.ID]))
	}
	return result, nil
}

// NextPhotoSortIndex returns the sort index that places a new photo after
// every existing photo of the entry.
func (repo *EntryRepository) NextPhotoSortIndex(entryID uint) (int, error) {
	var next int
	err := repo.database.
		Raw(`SELECT COALESCE(MAX(sort_index) + 1, 0) FROM assets WHERE entry_id = ? AND kind = ?`, entryID, models.AssetKindPhoto).
		Scan(&next).Error
	if err != nil {
		return 0, translateError(err)
	}
	return next, nil
}

func (repo *EntryRepository) UpdateAssetCaption(assetID uint, caption string) error {
	return checkUpdated(repo.database.Model(&models.Asset{}).Where("id = ?", assetID).Update("caption", caption))
}

// UpdatePhotoPlacement sets caption and sort index of a photo owned by
// entryID. Notebook pages and foreign photos are reported as not found.
func (repo *EntryRepository) UpdatePhotoPlacement(entryID uint, assetID uint, caption string, sortIndex int) error {
	return checkUpdated(repo.database.Model(&models.Asset{}).
		Where("id = ? AND entry_id = ? AND kind = ?", assetID, entryID, models.AssetKindPhoto).
		Updates(map[string]any{
			"caption":    caption,
			"sort_index": sortIndex,
		}))
}

func checkUpdated(result *gorm.DB) error {
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
