package api

import (
	"github.com/terraincognita07/labnotes/internal/models"
)

// entryFormView is the state of the admin entry form, either loaded from
// storage or echoed back from a rejected submission.
type entryFormView struct {
	Action          string
	IsEdit          bool
	EntryID         uint
	EntryDate       string
	Title           string
	BodyMarkdown    string
	Notebook        *models.Asset
	NotebookCaption string
	RemoveNotebook  bool
	Photos          []photoFormRow
	NewPhotos       []newPhotoSlot
	ErrorMessage    string
}

type photoFormRow struct {
	Asset   models.Asset
	Caption string
	Delete  bool
}

type newPhotoSlot struct {
	Index   int
	Caption string
}

// submittedEntryForm holds the text fields of a posted entry form. Files
// are read separately.
type submittedEntryForm struct {
	EntryDate       string
	Title           string
	BodyMarkdown    string
	NotebookCaption string
	RemoveNotebook  bool
	PhotoOrder      []uint
	PhotoCaptions   map[uint]string
	PhotoDeletes    map[uint]bool
	NewCaptions     map[int]string
}
