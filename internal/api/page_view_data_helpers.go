package api

import (
	"strconv"

	"github.com/terraincognita07/labnotes/internal/models"
)

func (handler *Handler) newEntryFormView() entryFormView {
	return entryFormView{
		Action:    "/admin/new",
		EntryDate: handler.now().In(handler.location).Format(models.DateLayout),
		NewPhotos: emptyPhotoSlots(nil),
	}
}

func editFormViewFromEntry(entry models.EntryWithAssets) entryFormView {
	view := entryFormView{
		Action:       editEntryPath(entry.Entry.ID),
		IsEdit:       true,
		EntryID:      entry.Entry.ID,
		EntryDate:    entry.Entry.EntryDate,
		Title:        entry.Entry.Title,
		BodyMarkdown: entry.Entry.BodyMarkdown,
		Notebook:     entry.Notebook,
		NewPhotos:    emptyPhotoSlots(nil),
	}
	if entry.Notebook != nil {
		view.NotebookCaption = entry.Notebook.Caption
	}
	for _, photo := range entry.Photos {
		view.Photos = append(view.Photos, photoFormRow{Asset: photo, Caption: photo.Caption})
	}
	return view
}

// withSubmitted overlays a rejected submission on the form so nothing the
// admin typed is lost. Photos keep the submitted order; photos the form did
// not list follow in stored order.
func (view entryFormView) withSubmitted(submitted submittedEntryForm) entryFormView {
	view.EntryDate = submitted.EntryDate
	view.Title = submitted.Title
	view.BodyMarkdown = submitted.BodyMarkdown
	view.NotebookCaption = submitted.NotebookCaption
	view.RemoveNotebook = submitted.RemoveNotebook
	view.NewPhotos = emptyPhotoSlots(submitted.NewCaptions)

	if len(view.Photos) == 0 {
		return view
	}
	byID := make(map[uint]photoFormRow, len(view.Photos))
	for _, row := range view.Photos {
		byID[row.Asset.ID] = row
	}
	ordered := make([]photoFormRow, 0, len(view.Photos))
	for _, assetID := range submitted.PhotoOrder {
		row, ok := byID[assetID]
		if !ok {
			continue
		}
		row.Caption = submitted.PhotoCaptions[assetID]
		row.Delete = submitted.PhotoDeletes[assetID]
		ordered = append(ordered, row)
		delete(byID, assetID)
	}
	for _, row := range view.Photos {
		if _, pending := byID[row.Asset.ID]; pending {
			row.Delete = submitted.PhotoDeletes[row.Asset.ID]
			ordered = append(ordered, row)
		}
	}
	view.Photos = ordered
	return view
}

func emptyPhotoSlots(captions map[int]string) []newPhotoSlot {
	slots := make([]newPhotoSlot, newPhotoSlots)
	for index := range slots {
		slots[index] = newPhotoSlot{Index: index, Caption: captions[index]}
	}
	return slots
}

func (view entryFormView) pageTitle() string {
	if view.IsEdit {
		return "Edit entry #" + strconv.FormatUint(uint64(view.EntryID), 10) + " | Lab Notes"
	}
	return "New entry | Lab Notes"
}
