package services

import (
	"errors"
	"fmt"
	"io"

	"github.com/terraincognita07/labnotes/internal/db"
	"github.com/terraincognita07/labnotes/internal/models"
	"go.uber.org/zap"
)

// EntryWriter is the repository surface used inside one admin request.
type EntryWriter interface {
	CreateEntry(entryDate string, title string, bodyMarkdown string) (uint, error)
	UpdateEntry(entryID uint, title string, bodyMarkdown string, entryDate string) error
	DeleteEntry(entryID uint) error
	FindEntry(entryID uint) (models.Entry, error)
	AddAsset(entryID uint, kind models.AssetKind, filePath string, caption string, sortIndex int) (models.Asset, error)
	ReplaceNotebookPage(entryID uint, filePath string, caption string) (*models.Asset, models.Asset, error)
	FindNotebookPage(entryID uint) (models.Asset, bool, error)
	RemoveAsset(assetID uint) (models.Asset, error)
	ListAssets(entryID uint) ([]models.Asset, error)
	NextPhotoSortIndex(entryID uint) (int, error)
	UpdateAssetCaption(assetID uint, caption string) error
	UpdatePhotoPlacement(entryID uint, assetID uint, caption string, sortIndex int) error
}

// Transactor runs fn against an EntryWriter bound to one transaction.
type Transactor interface {
	RunInTransaction(fn func(tx EntryWriter) error) error
}

type AssetStore interface {
	Save(entryDate string, kind models.AssetKind, originalName string, content io.Reader) (string, error)
	Delete(relativePath string) error
}

type entryTransactor struct {
	repo *db.EntryRepository
}

func NewEntryTransactor(repo *db.EntryRepository) Transactor {
	return entryTransactor{repo: repo}
}

func (transactor entryTransactor) RunInTransaction(fn func(tx EntryWriter) error) error {
	return transactor.repo.Transaction(func(tx *db.EntryRepository) error {
		return fn(tx)
	})
}

// PublishingService composes the entry repository and the asset store.
// Repository writes of one call share a transaction; files are written
// before the rows that reference them and removed again if the
// transaction fails. Files of replaced or deleted assets are removed only
// after commit, so a crash can orphan a file but never a row.
type PublishingService struct {
	transactor     Transactor
	store          AssetStore
	logger         *zap.Logger
	maxUploadBytes int64
}

func NewPublishingService(transactor Transactor, store AssetStore, maxUploadBytes int64, logger *zap.Logger) *PublishingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishingService{
		transactor:     transactor,
		store:          store,
		logger:         logger.Named("publishing"),
		maxUploadBytes: maxUploadBytes,
	}
}

// unitOfWork tracks files touched by one call.
type unitOfWork struct {
	service *PublishingService
	saved   []string
	retired []string
}

func (service *PublishingService) run(fn func(tx EntryWriter, work *unitOfWork) error) error {
	work := &unitOfWork{service: service}
	err := service.transactor.RunInTransaction(func(tx EntryWriter) error {
		return fn(tx, work)
	})
	if err != nil {
		service.discard(work.saved, "rolled back upload")
		return normalizeError(err)
	}
	service.discard(work.retired, "retired upload")
	return nil
}

func (service *PublishingService) discard(paths []string, reason string) {
	for _, path := range paths {
		if err := service.store.Delete(path); err != nil {
			service.logger.Warn("upload file left on disk", zap.String("reason", reason), zap.String("path", path), zap.Error(err))
		}
	}
}

func (work *unitOfWork) save(entryDate string, kind models.AssetKind, upload Upload) (string, error) {
	content, err := upload.Open()
	if err != nil {
		return "", storageError("open upload "+upload.Filename, err)
	}
	defer content.Close()

	path, err := work.service.store.Save(entryDateOf(entryDate), kind, upload.Filename, content)
	if err != nil {
		return "", storageError("save upload "+upload.Filename, err)
	}
	work.saved = append(work.saved, path)
	return path, nil
}

func (work *unitOfWork) addPhotos(tx EntryWriter, entryID uint, entryDate string, photos []Upload) error {
	if len(photos) == 0 {
		return nil
	}
	next, err := tx.NextPhotoSortIndex(entryID)
	if err != nil {
		return err
	}
	for index, photo := range photos {
		path, err := work.save(entryDate, models.AssetKindPhoto, photo)
		if err != nil {
			return err
		}
		if _, err := tx.AddAsset(entryID, models.AssetKindPhoto, path, photo.Caption, next+index); err != nil {
			return err
		}
	}
	return nil
}

// Publish creates an entry with its optional notebook page and photos.
func (service *PublishingService) Publish(input EntryInput) (uint, error) {
	input, err := normalizeEntryInput(input, service.maxUploadBytes)
	if err != nil {
		return 0, err
	}

	var entryID uint
	err = service.run(func(tx EntryWriter, work *unitOfWork) error {
		created, err := tx.CreateEntry(input.EntryDate, input.Title, input.BodyMarkdown)
		if err != nil {
			return err
		}
		entryID = created
		if input.NotebookPage != nil {
			path, err := work.save(input.EntryDate, models.AssetKindNotebookPage, *input.NotebookPage)
			if err != nil {
				return err
			}
			if _, err := tx.AddAsset(entryID, models.AssetKindNotebookPage, path, input.NotebookCaption, 0); err != nil {
				return err
			}
		}
		return work.addPhotos(tx, entryID, input.EntryDate, input.Photos)
	})
	if err != nil {
		return 0, err
	}

	service.logger.Info("entry published", zap.Uint("entry_id", entryID), zap.String("entry_date", input.EntryDate), zap.Int("photos", len(input.Photos)))
	return entryID, nil
}

// Edit updates entry fields and assets. Existing photos are re-sequenced
// from zero in the order given; photos not mentioned keep their relative
// order after those. New photos are appended at the end.
func (service *PublishingService) Edit(entryID uint, edit EntryEdit) error {
	edit, err := normalizeEntryEdit(edit, service.maxUploadBytes)
	if err != nil {
		return err
	}

	err = service.run(func(tx EntryWriter, work *unitOfWork) error {
		if _, err := tx.FindEntry(entryID); err != nil {
			return err
		}
		if err := tx.UpdateEntry(entryID, edit.Title, edit.BodyMarkdown, edit.EntryDate); err != nil {
			return err
		}
		if err := work.editNotebook(tx, entryID, edit); err != nil {
			return err
		}
		if err := work.editPhotos(tx, entryID, edit.ExistingPhotos); err != nil {
			return err
		}
		return work.addPhotos(tx, entryID, edit.EntryDate, edit.NewPhotos)
	})
	if err != nil {
		return err
	}

	service.logger.Info("entry updated", zap.Uint("entry_id", entryID), zap.Int("new_photos", len(edit.NewPhotos)))
	return nil
}

func (work *unitOfWork) editNotebook(tx EntryWriter, entryID uint, edit EntryEdit) error {
	if edit.NotebookPage != nil {
		path, err := work.save(edit.EntryDate, models.AssetKindNotebookPage, *edit.NotebookPage)
		if err != nil {
			return err
		}
		replaced, _, err := tx.ReplaceNotebookPage(entryID, path, edit.NotebookCaption)
		if err != nil {
			return err
		}
		if replaced != nil {
			work.retired = append(work.retired, replaced.FilePath)
		}
		return nil
	}

	existing, found, err := tx.FindNotebookPage(entryID)
	if err != nil || !found {
		return err
	}
	if edit.RemoveNotebook {
		if _, err := tx.RemoveAsset(existing.ID); err != nil {
			return err
		}
		work.retired = append(work.retired, existing.FilePath)
		return nil
	}
	return tx.UpdateAssetCaption(existing.ID, edit.NotebookCaption)
}

func (work *unitOfWork) editPhotos(tx EntryWriter, entryID uint, edits []PhotoEdit) error {
	if len(edits) == 0 {
		return nil
	}

	assets, err := tx.ListAssets(entryID)
	if err != nil {
		return err
	}
	photos := make(map[uint]models.Asset, len(assets))
	for _, asset := range assets {
		if asset.Kind == models.AssetKindPhoto {
			photos[asset.ID] = asset
		}
	}

	sortIndex := 0
	mentioned := make(map[uint]struct{}, len(edits))
	for _, edit := range edits {
		photo, ok := photos[edit.AssetID]
		if !ok {
			return fmt.Errorf("%w: photo %d does not belong to entry %d", ErrNotFound, edit.AssetID, entryID)
		}
		mentioned[photo.ID] = struct{}{}

		if edit.Delete {
			if _, err := tx.RemoveAsset(photo.ID); err != nil {
				return err
			}
			work.retired = append(work.retired, photo.FilePath)
			continue
		}
		if err := tx.UpdatePhotoPlacement(entryID, photo.ID, edit.Caption, sortIndex); err != nil {
			return err
		}
		sortIndex++
	}

	for _, asset := range assets {
		if asset.Kind != models.AssetKindPhoto {
			continue
		}
		if _, done := mentioned[asset.ID]; done {
			continue
		}
		if err := tx.UpdatePhotoPlacement(entryID, asset.ID, asset.Caption, sortIndex); err != nil {
			return err
		}
		sortIndex++
	}
	return nil
}

// AttachNotebookPage adds the entry's notebook page, replacing the current
// one if present.
func (service *PublishingService) AttachNotebookPage(entryID uint, upload Upload) error {
	if err := validateUpload("notebook_page", upload, service.maxUploadBytes); err != nil {
		return err
	}

	return service.run(func(tx EntryWriter, work *unitOfWork) error {
		entry, err := tx.FindEntry(entryID)
		if err != nil {
			return err
		}
		path, err := work.save(entry.EntryDate, models.AssetKindNotebookPage, upload)
		if err != nil {
			return err
		}
		replaced, _, err := tx.ReplaceNotebookPage(entryID, path, upload.Caption)
		if err != nil {
			return err
		}
		if replaced != nil {
			work.retired = append(work.retired, replaced.FilePath)
		}
		return nil
	})
}

// AddNotebookPage adds a notebook page to an entry that has none. A second
// page fails with ErrConstraintViolation and leaves the first untouched.
func (service *PublishingService) AddNotebookPage(entryID uint, upload Upload) error {
	if err := validateUpload("notebook_page", upload, service.maxUploadBytes); err != nil {
		return err
	}

	return service.run(func(tx EntryWriter, work *unitOfWork) error {
		entry, err := tx.FindEntry(entryID)
		if err != nil {
			return err
		}
		path, err := work.save(entry.EntryDate, models.AssetKindNotebookPage, upload)
		if err != nil {
			return err
		}
		_, err = tx.AddAsset(entryID, models.AssetKindNotebookPage, path, upload.Caption, 0)
		return err
	})
}

// AddPhotos appends photos after the entry's existing ones, in order.
func (service *PublishingService) AddPhotos(entryID uint, photos []Upload) error {
	photos, err := normalizePhotos("photos", photos, service.maxUploadBytes)
	if err != nil {
		return err
	}

	return service.run(func(tx EntryWriter, work *unitOfWork) error {
		entry, err := tx.FindEntry(entryID)
		if err != nil {
			return err
		}
		return work.addPhotos(tx, entryID, entry.EntryDate, photos)
	})
}

// RemoveAsset deletes one asset and its file and returns the owning entry.
func (service *PublishingService) RemoveAsset(assetID uint) (uint, error) {
	var entryID uint
	err := service.run(func(tx EntryWriter, work *unitOfWork) error {
		removed, err := tx.RemoveAsset(assetID)
		if err != nil {
			return err
		}
		entryID = removed.EntryID
		work.retired = append(work.retired, removed.FilePath)
		return nil
	})
	if err != nil {
		return 0, err
	}

	service.logger.Info("asset removed", zap.Uint("asset_id", assetID), zap.Uint("entry_id", entryID))
	return entryID, nil
}

// Delete removes the entry row, which cascades to its asset rows, and then
// the backing files.
func (service *PublishingService) Delete(entryID uint) error {
	var removedFiles int
	err := service.run(func(tx EntryWriter, work *unitOfWork) error {
		if _, err := tx.FindEntry(entryID); err != nil {
			return err
		}
		assets, err := tx.ListAssets(entryID)
		if err != nil {
			return err
		}
		if err := tx.DeleteEntry(entryID); err != nil {
			return err
		}
		for _, asset := range assets {
			work.retired = append(work.retired, asset.FilePath)
		}
		removedFiles = len(assets)
		return nil
	})
	if err != nil {
		return err
	}

	service.logger.Info("entry deleted", zap.Uint("entry_id", entryID), zap.Int("files", removedFiles))
	return nil
}

func normalizeError(err error) error {
	switch {
	case err == nil:
		return nil
	case IsValidationError(err),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConstraintViolation),
		errors.Is(err, ErrStorage):
		return err
	case errors.Is(err, db.ErrInvalidInput):
		return &ValidationError{Message: err.Error()}
	default:
		return storageError("publish", err)
	}
}
