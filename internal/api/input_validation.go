package api

import (
	"io"
	"mime/multipart"
	"sort"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/labnotes/internal/services"
)

const (
	newPhotoFilePrefix    = "photo_file_"
	newPhotoCaptionPrefix = "photo_caption_"
	existingCaptionPrefix = "existing_photo_caption_"
)

// RequestBodyLimit is the request size needed for a form carrying a
// notebook page and every new photo slot at the per-file maximum.
func RequestBodyLimit(maxUploadBytes int64) int {
	limit := maxUploadBytes*int64(newPhotoSlots+1) + 1<<20
	if limit <= 0 || limit > int64(^uint32(0)>>1) {
		return int(^uint32(0) >> 1)
	}
	return int(limit)
}

func readEntryForm(c *fiber.Ctx) submittedEntryForm {
	submitted := submittedEntryForm{
		EntryDate:       strings.TrimSpace(c.FormValue("entry_date")),
		Title:           c.FormValue("title"),
		BodyMarkdown:    c.FormValue("body_markdown"),
		NotebookCaption: c.FormValue("notebook_caption"),
		RemoveNotebook:  isChecked(c.FormValue("notebook_delete")),
		PhotoCaptions:   map[uint]string{},
		PhotoDeletes:    map[uint]bool{},
		NewCaptions:     map[int]string{},
	}

	for _, raw := range formValues(c, "existing_photo_id") {
		assetID, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil || assetID == 0 {
			continue
		}
		id := uint(assetID)
		submitted.PhotoOrder = append(submitted.PhotoOrder, id)
		submitted.PhotoCaptions[id] = c.FormValue(existingCaptionPrefix + strconv.FormatUint(assetID, 10))
	}
	for _, raw := range formValues(c, "existing_photo_delete") {
		if assetID, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64); err == nil && assetID > 0 {
			submitted.PhotoDeletes[uint(assetID)] = true
		}
	}
	for index := 0; index < newPhotoSlots; index++ {
		if caption := c.FormValue(newPhotoCaptionPrefix + strconv.Itoa(index)); caption != "" {
			submitted.NewCaptions[index] = caption
		}
	}
	return submitted
}

func (submitted submittedEntryForm) entryInput(c *fiber.Ctx) services.EntryInput {
	input := services.EntryInput{
		EntryDate:       submitted.EntryDate,
		Title:           submitted.Title,
		BodyMarkdown:    submitted.BodyMarkdown,
		NotebookCaption: submitted.NotebookCaption,
		Photos:          submitted.newPhotoUploads(c),
	}
	if header := formFile(c, "notebook_page"); header != nil {
		upload := uploadFromFileHeader(header, submitted.NotebookCaption)
		input.NotebookPage = &upload
	}
	return input
}

func (submitted submittedEntryForm) entryEdit(c *fiber.Ctx) services.EntryEdit {
	edit := services.EntryEdit{
		EntryDate:       submitted.EntryDate,
		Title:           submitted.Title,
		BodyMarkdown:    submitted.BodyMarkdown,
		NotebookCaption: submitted.NotebookCaption,
		RemoveNotebook:  submitted.RemoveNotebook,
		NewPhotos:       submitted.newPhotoUploads(c),
	}
	if header := formFile(c, "notebook_page"); header != nil {
		upload := uploadFromFileHeader(header, submitted.NotebookCaption)
		edit.NotebookPage = &upload
	}

	listed := make(map[uint]bool, len(submitted.PhotoOrder))
	for _, assetID := range submitted.PhotoOrder {
		listed[assetID] = true
		edit.ExistingPhotos = append(edit.ExistingPhotos, services.PhotoEdit{
			AssetID: assetID,
			Caption: submitted.PhotoCaptions[assetID],
			Delete:  submitted.PhotoDeletes[assetID],
		})
	}
	// A delete box ticked for a photo missing from the ordering still counts.
	for _, assetID := range sortedIDs(submitted.PhotoDeletes) {
		if listed[assetID] {
			continue
		}
		edit.ExistingPhotos = append(edit.ExistingPhotos, services.PhotoEdit{AssetID: assetID, Delete: true})
	}
	return edit
}

func (submitted submittedEntryForm) newPhotoUploads(c *fiber.Ctx) []services.Upload {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}

	indexes := make([]int, 0, len(form.File))
	for key, headers := range form.File {
		if !strings.HasPrefix(key, newPhotoFilePrefix) || len(headers) == 0 {
			continue
		}
		index, err := strconv.Atoi(strings.TrimPrefix(key, newPhotoFilePrefix))
		if err != nil || index < 0 {
			continue
		}
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	uploads := make([]services.Upload, 0, len(indexes))
	for _, index := range indexes {
		header := form.File[newPhotoFilePrefix+strconv.Itoa(index)][0]
		if header.Filename == "" && header.Size == 0 {
			continue
		}
		caption := c.FormValue(newPhotoCaptionPrefix + strconv.Itoa(index))
		uploads = append(uploads, uploadFromFileHeader(header, caption))
	}
	return uploads
}

func uploadFromFileHeader(header *multipart.FileHeader, caption string) services.Upload {
	return services.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Caption:  caption,
		Open: func() (io.ReadCloser, error) {
			return header.Open()
		},
	}
}

func formFile(c *fiber.Ctx, key string) *multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}
	headers := form.File[key]
	if len(headers) == 0 || (headers[0].Filename == "" && headers[0].Size == 0) {
		return nil
	}
	return headers[0]
}

func formValues(c *fiber.Ctx, key string) []string {
	if form, err := c.MultipartForm(); err == nil {
		return form.Value[key]
	}
	raw := c.Request().PostArgs().PeekMulti(key)
	values := make([]string, 0, len(raw))
	for _, value := range raw {
		values = append(values, string(value))
	}
	return values
}

func isChecked(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "on", "true", "yes":
		return true
	default:
		return false
	}
}

func sortedIDs(set map[uint]bool) []uint {
	ids := make([]uint, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
