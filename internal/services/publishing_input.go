package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/terraincognita07/labnotes/internal/models"
	"github.com/terraincognita07/labnotes/internal/uploads"
)

const (
	MaxTitleLength   = 200
	MaxCaptionLength = 500
)

var allowedImageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
	"gif":  {},
	"heic": {},
	"heif": {},
}

// Upload is one submitted file. Open is called once, when the file is
// written to the asset store.
type Upload struct {
	Filename string
	Size     int64
	Caption  string
	Open     func() (io.ReadCloser, error)
}

// BytesUpload wraps in-memory content as an Upload.
func BytesUpload(filename string, caption string, content []byte) Upload {
	return Upload{
		Filename: filename,
		Size:     int64(len(content)),
		Caption:  caption,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

type EntryInput struct {
	EntryDate       string `validate:"required,datetime=2006-01-02"`
	Title           string `validate:"max=200"`
	BodyMarkdown    string
	NotebookPage    *Upload
	NotebookCaption string `validate:"max=500"`
	Photos          []Upload
}

// PhotoEdit changes one existing photo. Photos are re-sequenced in the
// order edits are given.
type PhotoEdit struct {
	AssetID uint
	Caption string `validate:"max=500"`
	Delete  bool
}

type EntryEdit struct {
	EntryDate    string `validate:"required,datetime=2006-01-02"`
	Title        string `validate:"max=200"`
	BodyMarkdown string
	// NotebookPage replaces the current notebook page when set.
	NotebookPage    *Upload
	NotebookCaption string `validate:"max=500"`
	RemoveNotebook  bool
	ExistingPhotos  []PhotoEdit `validate:"dive"`
	NewPhotos       []Upload
}

var inputValidator = newInputValidator()

func newInputValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("image_ext", func(field validator.FieldLevel) bool {
		return IsAllowedImageFilename(field.Field().String())
	})
	return validate
}

// IsAllowedImageFilename reports whether name carries an accepted image
// extension.
func IsAllowedImageFilename(name string) bool {
	_, ok := allowedImageExtensions[uploads.NormalizedExtension(name)]
	return ok
}

func AllowedImageExtensions() []string {
	extensions := make([]string, 0, len(allowedImageExtensions))
	for extension := range allowedImageExtensions {
		extensions = append(extensions, extension)
	}
	sort.Strings(extensions)
	return extensions
}

func normalizeEntryInput(input EntryInput, maxUploadBytes int64) (EntryInput, error) {
	input.EntryDate = strings.TrimSpace(input.EntryDate)
	input.Title = strings.TrimSpace(input.Title)
	input.NotebookCaption = strings.TrimSpace(input.NotebookCaption)

	if err := translateValidation(inputValidator.Struct(input)); err != nil {
		return input, err
	}
	if input.NotebookPage != nil {
		if err := validateUpload("notebook_page", *input.NotebookPage, maxUploadBytes); err != nil {
			return input, err
		}
	}
	photos, err := normalizePhotos("photos", input.Photos, maxUploadBytes)
	if err != nil {
		return input, err
	}
	input.Photos = photos
	return input, nil
}

func normalizeEntryEdit(edit EntryEdit, maxUploadBytes int64) (EntryEdit, error) {
	edit.EntryDate = strings.TrimSpace(edit.EntryDate)
	edit.Title = strings.TrimSpace(edit.Title)
	edit.NotebookCaption = strings.TrimSpace(edit.NotebookCaption)
	for index := range edit.ExistingPhotos {
		edit.ExistingPhotos[index].Caption = strings.TrimSpace(edit.ExistingPhotos[index].Caption)
	}

	if err := translateValidation(inputValidator.Struct(edit)); err != nil {
		return edit, err
	}
	if edit.NotebookPage != nil {
		if edit.RemoveNotebook {
			return edit, newValidationError("notebook_page", "choose either a replacement notebook page or removal, not both")
		}
		if err := validateUpload("notebook_page", *edit.NotebookPage, maxUploadBytes); err != nil {
			return edit, err
		}
	}

	seen := make(map[uint]struct{}, len(edit.ExistingPhotos))
	for _, photo := range edit.ExistingPhotos {
		if _, duplicate := seen[photo.AssetID]; duplicate {
			return edit, newValidationError("existing_photo_id", "photo %d listed twice", photo.AssetID)
		}
		seen[photo.AssetID] = struct{}{}
	}

	photos, err := normalizePhotos("photos", edit.NewPhotos, maxUploadBytes)
	if err != nil {
		return edit, err
	}
	edit.NewPhotos = photos
	return edit, nil
}

func normalizePhotos(field string, photos []Upload, maxUploadBytes int64) ([]Upload, error) {
	normalized := make([]Upload, 0, len(photos))
	for _, photo := range photos {
		photo.Caption = strings.TrimSpace(photo.Caption)
		if err := validateUpload(field, photo, maxUploadBytes); err != nil {
			return nil, err
		}
		normalized = append(normalized, photo)
	}
	return normalized, nil
}

func validateUpload(field string, upload Upload, maxUploadBytes int64) error {
	if err := inputValidator.Var(upload.Filename, "required"); err != nil {
		return newValidationError(field, "a file name is required")
	}
	if err := inputValidator.Var(upload.Filename, "image_ext"); err != nil {
		return newValidationError(field, "%s is not an accepted image (allowed: %s)", upload.Filename, strings.Join(AllowedImageExtensions(), ", "))
	}
	if err := inputValidator.Var(upload.Caption, fmt.Sprintf("max=%d", MaxCaptionLength)); err != nil {
		return newValidationError(field, "captions are limited to %d characters", MaxCaptionLength)
	}
	if maxUploadBytes > 0 && upload.Size > maxUploadBytes {
		return newValidationError(field, "%s is %s, larger than the %s limit", upload.Filename, humanize.IBytes(uint64(upload.Size)), humanize.IBytes(uint64(maxUploadBytes)))
	}
	if upload.Open == nil {
		return newValidationError(field, "%s has no content", upload.Filename)
	}
	return nil
}

func translateValidation(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return newValidationError("", "%v", err)
	}

	first := fieldErrors[0]
	switch first.Field() {
	case "EntryDate":
		if first.Tag() == "required" {
			return newValidationError("entry_date", "entry date is required")
		}
		return newValidationError("entry_date", "entry date must use the %s format", "YYYY-MM-DD")
	case "Title":
		return newValidationError("title", "title is limited to %d characters", MaxTitleLength)
	case "NotebookCaption", "Caption":
		return newValidationError("caption", "captions are limited to %d characters", MaxCaptionLength)
	default:
		return newValidationError(strings.ToLower(first.Field()), "is invalid (%s)", first.Tag())
	}
}

func entryDateOf(raw string) string {
	_, canonical, err := models.ParseEntryDate(raw)
	if err != nil {
		return raw
	}
	return canonical
}
