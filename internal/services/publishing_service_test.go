package services

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraincognita07/labnotes/internal/db"
	"github.com/terraincognita07/labnotes/internal/models"
	"github.com/terraincognita07/labnotes/internal/uploads"
)

const testMaxUploadBytes = 1 << 20

type publishingFixture struct {
	service *PublishingService
	repo    *db.EntryRepository
	store   *uploads.Store
}

func openServiceTestRepository(t *testing.T) *db.EntryRepository {
	t.Helper()
	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "labnotes.db"), nil)
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db.NewEntryRepository(database)
}

func newPublishingFixture(t *testing.T) publishingFixture {
	t.Helper()
	repo := openServiceTestRepository(t)
	store, err := uploads.NewStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return publishingFixture{
		service: NewPublishingService(NewEntryTransactor(repo), store, testMaxUploadBytes, nil),
		repo:    repo,
		store:   store,
	}
}

func (fixture publishingFixture) storedFiles(t *testing.T) []string {
	t.Helper()
	files := make([]string, 0)
	err := filepath.WalkDir(fixture.store.Root(), func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.Type().IsRegular() {
			relative, relErr := filepath.Rel(fixture.store.Root(), path)
			if relErr != nil {
				return relErr
			}
			files = append(files, filepath.ToSlash(relative))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func (fixture publishingFixture) readFile(t *testing.T, relativePath string) []byte {
	t.Helper()
	absolute, err := fixture.store.Path(relativePath)
	require.NoError(t, err)
	content, err := os.ReadFile(absolute)
	require.NoError(t, err)
	return content
}

func TestPublishEntryWithNotebookPage(t *testing.T) {
	fixture := newPublishingFixture(t)
	page := []byte("notebook scan bytes")
	notebook := BytesUpload("scan.JPG", "", page)

	entryID, err := fixture.service.Publish(EntryInput{
		EntryDate:       "2026-02-06",
		Title:           "First Entry",
		BodyMarkdown:    "Ran the titration.",
		NotebookPage:    &notebook,
		NotebookCaption: "page 12",
	})
	require.NoError(t, err)

	result, err := fixture.repo.GetEntryWithAssets(entryID)
	require.NoError(t, err)
	assert.Equal(t, "First Entry", result.Entry.Title)
	require.NotNil(t, result.Notebook)
	assert.Empty(t, result.Photos)
	assert.Equal(t, "page 12", result.Notebook.Caption)
	assert.True(t, strings.HasPrefix(result.Notebook.FilePath, "2026/02/06/notebook-"))
	assert.True(t, strings.HasSuffix(result.Notebook.FilePath, ".jpg"))
	assert.Equal(t, page, fixture.readFile(t, result.Notebook.FilePath))
}

func TestAddPhotosKeepsSubmissionOrder(t *testing.T) {
	fixture := newPublishingFixture(t)
	entryID, err := fixture.service.Publish(EntryInput{EntryDate: "2026-02-06", Title: "First Entry"})
	require.NoError(t, err)

	err = fixture.service.AddPhotos(entryID, []Upload{
		BytesUpload("a.png", "A", []byte("photo a")),
		BytesUpload("b.png", "B", []byte("photo b")),
	})
	require.NoError(t, err)

	result, err := fixture.repo.GetEntryWithAssets(entryID)
	require.NoError(t, err)
	require.Len(t, result.Photos, 2)
	assert.Equal(t, "A", result.Photos[0].Caption)
	assert.Equal(t, 0, result.Photos[0].SortIndex)
	assert.Equal(t, "B", result.Photos[1].Caption)
	assert.Equal(t, 1, result.Photos[1].SortIndex)
	assert.Equal(t, []byte("photo a"), fixture.readFile(t, result.Photos[0].FilePath))

	err = fixture.service.AddPhotos(entryID, []Upload{BytesUpload("c.webp", "C", []byte("photo c"))})
	require.NoError(t, err)
	result, err = fixture.repo.GetEntryWithAssets(entryID)
	require.NoError(t, err)
	require.Len(t, result.Photos, 3)
	assert.Equal(t, "C", result.Photos[2].Caption)
	assert.Equal(t, 2, result.Photos[2].SortIndex)
}

func TestAddSecondNotebookPageFailsAndKeepsOriginal(t *testing.T) {
	fixture := newPublishingFixture(t)
	first := BytesUpload("first.jpg", "", []byte("first page"))
	entryID, err := fixture.service.Publish(EntryInput{EntryDate: "2026-02-06", NotebookPage: &first, NotebookCaption: "original"})
	require.NoError(t, err)

	before, err := fixture.repo.GetEntryWithAssets(entryID)
	require.NoError(t, err)
	require.NotNil(t, before.Notebook)

	err = fixture.service.AddNotebookPage(entryID, BytesUpload("second.jpg", "second", []byte("second page")))
	assert.ErrorIs(t, err, ErrConstraintViolation)

	after, err := fixture.repo.GetEntryWithAssets(entryID)
	require.NoError(t, err)
	require.NotNil(t, after.Notebook)
	assert.Equal(t, *before.Notebook, *after.Notebook)
	assert.Equal(t, []string{before.Notebook.FilePath}, fixture.storedFiles(t))
	assert.Equal(t, []byte("first page"), fixture.readFile(t, after.Notebook.FilePath))
}

func TestAttachNotebookPageReplacesAndRemovesOldFile(t *testing.T) {
	fixture := newPublishingFixture(t)
	entryID, err := fixture.service.Publish(EntryInput{EntryDate: "2026-02-06"})
	require.NoError(t, err)

	require.NoError(t, fixture.service.AttachNotebookPage(entryID, BytesUpload("one.jpg", "one", []byte("one"))))
	first, err := fixture.repo.GetEntryWithAssets(entryID)
	require.NoError(t, err)
	require.NotNil(t, first.Notebook)

	require.NoError(t, fixture.service.AttachNotebookPage(entryID, BytesUpload("two.png", "two", []byte("two"))))
	second, err := fixture.repo.GetEntryWithAssets(entryID)
	require.NoError(t, err)
	require.NotNil(t, second.Notebook)
	assert.Equal(t, "two", second.Notebook.Caption)
	assert.NotEqual(t, first.Notebook.FilePath, second.Notebook.FilePath)
	assert.Equal(t, []string{second.Notebook.FilePath}, fixture.storedFiles(t))
}

func TestDeleteEntryRemovesRowsAndFiles(t *testing.T) {
	fixture := newPublishingFixture(t)
	notebook := BytesUpload("page.jpg", "", []byte("page"))
	entryID, err := fixture.service.Publish(EntryInput{
		EntryDate:    "2026-02-06",
		NotebookPage: &notebook,
		Photos: []Upload{
			BytesUpload("a.jpg", "A", []byte("a")),
			BytesUpload("b.jpg", "B", []byte("b")),
		},
	})
	require.NoError(t, err)
	require.Len(t, fixture.storedFiles(t), 3)

	require.NoError(t, fixture.service.Delete(entryID))

	_, err = fixture.repo.GetEntryWithAssets(entryID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, fixture.storedFiles(t))

	assert.ErrorIs(t, fixture.service.Delete(entryID), ErrNotFound)
}

func TestRemoveAssetReturnsOwningEntry(t *testing.T) {
	fixture := newPublishingFixture(t)
	entryID, err := fixture.service.Publish(EntryInput{
		EntryDate: "2026-02-06",
		Photos:    []Upload{BytesUpload("a.jpg", "A", []byte("a"))},
	})
	require.NoError(t, err)
	result, err := fixture.repo.GetEntryWithAssets(entryID)
	require.NoError(t, err)
	require.Len(t, result.Photos, 1)

	owner, err := fixture.service.RemoveAsset(result.Photos[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entryID, owner)
	assert.Empty(t, fixture.storedFiles(t))

	_, err = fixture.service.RemoveAsset(result.Photos[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPublishValidationHappensBeforeAnyWrite(t *testing.T) {
	fixture := newPublishingFixture(t)
	tooLarge := Upload{
		Filename: "huge.jpg",
		Size:     testMaxUploadBytes + 1,
		Open: func() (io.ReadCloser, error) {
			t.Fatal("oversized upload must not be opened")
			return nil, nil
		},
	}

	tests := []struct {
		name  string
		input EntryInput
		field string
	}{
		{name: "missing date", input: EntryInput{Photos: []Upload{BytesUpload("a.jpg", "", []byte("a"))}}, field: "entry_date"},
		{name: "malformed date", input: EntryInput{EntryDate: "06.02.2026"}, field: "entry_date"},
		{name: "impossible date", input: EntryInput{EntryDate: "2026-02-30"}, field: "entry_date"},
		{name: "long title", input: EntryInput{EntryDate: "2026-02-06", Title: strings.Repeat("x", MaxTitleLength+1)}, field: "title"},
		{name: "disallowed type", input: EntryInput{EntryDate: "2026-02-06", Photos: []Upload{
			BytesUpload("a.jpg", "", []byte("a")),
			BytesUpload("notes.pdf", "", []byte("b")),
		}}, field: "photos"},
		{name: "oversized upload", input: EntryInput{EntryDate: "2026-02-06", NotebookPage: &tooLarge}, field: "notebook_page"},
		{name: "missing filename", input: EntryInput{EntryDate: "2026-02-06", Photos: []Upload{BytesUpload("", "", []byte("a"))}}, field: "photos"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := fixture.service.Publish(test.input)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, test.field, validationErr.Field)
		})
	}

	count, err := fixture.repo.CountEntries()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, fixture.storedFiles(t))
}

func TestOversizedUploadMessageUsesHumanSizes(t *testing.T) {
	err := validateUpload("photos", Upload{Filename: "big.png", Size: 3 << 20, Open: BytesUpload("", "", nil).Open}, 2<<20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3.0 MiB")
	assert.Contains(t, err.Error(), "2.0 MiB")
}

type failingSaveStore struct {
	*uploads.Store
	failOnSave int
	saves      int
}

func (store *failingSaveStore) Save(entryDate string, kind models.AssetKind, originalName string, content io.Reader) (string, error) {
	store.saves++
	if store.saves == store.failOnSave {
		return "", errors.New("disk full")
	}
	return store.Store.Save(entryDate, kind, originalName, content)
}

func TestStoreFailureRollsBackEntryAndEarlierFiles(t *testing.T) {
	fixture := newPublishingFixture(t)
	store := &failingSaveStore{Store: fixture.store, failOnSave: 2}
	service := NewPublishingService(NewEntryTransactor(fixture.repo), store, testMaxUploadBytes, nil)

	_, err := service.Publish(EntryInput{
		EntryDate: "2026-02-06",
		Photos: []Upload{
			BytesUpload("a.jpg", "A", []byte("a")),
			BytesUpload("b.jpg", "B", []byte("b")),
		},
	})
	assert.ErrorIs(t, err, ErrStorage)

	count, err := fixture.repo.CountEntries()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, fixture.storedFiles(t))
}

type faultyTransactor struct {
	repo        *db.EntryRepository
	addAssetErr error
}

func (transactor faultyTransactor) RunInTransaction(fn func(tx EntryWriter) error) error {
	return transactor.repo.Transaction(func(tx *db.EntryRepository) error {
		return fn(faultyWriter{EntryWriter: tx, addAssetErr: transactor.addAssetErr})
	})
}

type faultyWriter struct {
	EntryWriter
	addAssetErr error
}

func (writer faultyWriter) AddAsset(uint, models.AssetKind, string, string, int) (models.Asset, error) {
	return models.Asset{}, writer.addAssetErr
}

func TestRepositoryFailureRemovesSavedFile(t *testing.T) {
	fixture := newPublishingFixture(t)
	transactor := faultyTransactor{repo: fixture.repo, addAssetErr: errors.New("database is locked")}
	service := NewPublishingService(transactor, fixture.store, testMaxUploadBytes, nil)

	_, err := service.Publish(EntryInput{
		EntryDate: "2026-02-06",
		Photos:    []Upload{BytesUpload("a.jpg", "A", []byte("a"))},
	})
	assert.ErrorIs(t, err, ErrStorage)

	count, err := fixture.repo.CountEntries()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, fixture.storedFiles(t))
}

func TestEditUpdatesFieldsAndResequencesPhotos(t *testing.T) {
	fixture := newPublishingFixture(t)
	notebook := BytesUpload("page.jpg", "", []byte("old page"))
	entryID, err := fixture.service.Publish(EntryInput{
		EntryDate:       "2026-02-06",
		Title:           "Draft",
		NotebookPage:    &notebook,
		NotebookCaption: "old caption",
		Photos: []Upload{
			BytesUpload("a.jpg", "A", []byte("a")),
			BytesUpload("b.jpg", "B", []byte("b")),
			BytesUpload("c.jpg", "C", []byte("c")),
		},
	})
	require.NoError(t, err)
	before, err := fixture.repo.GetEntryWithAssets(entryID)
	require.NoError(t, err)
	photoA, photoB, photoC := before.Photos[0], before.Photos[1], before.Photos[2]

	replacement := BytesUpload("new-page.png", "", []byte("new page"))
	err = fixture.service.Edit(entryID, EntryEdit{
		EntryDate:       "2026-02-07",
		Title:           "Final",
		BodyMarkdown:    "updated",
		NotebookPage:    &replacement,
		NotebookCaption: "new caption",
		ExistingPhotos: []PhotoEdit{
			{AssetID: photoC.ID, Caption: "C first"},
			{AssetID: photoA.ID, Delete: true},
			{AssetID: photoB.ID, Caption: "B second"},
		},
		NewPhotos: []Upload{BytesUpload("d.gif", "D", []byte("d"))},
	})
	require.NoError(t, err)

	after, err := fixture.repo.GetEntryWithAssets(entryID)
	require.NoError(t, err)
	assert.Equal(t, "Final", after.Entry.Title)
	assert.Equal(t, "2026-02-07", after.Entry.EntryDate)
	require.NotNil(t, after.Notebook)
	assert.Equal(t, "new caption", after.Notebook.Caption)
	assert.Equal(t, []byte("new page"), fixture.readFile(t, after.Notebook.FilePath))

	require.Len(t, after.Photos, 3)
	assert.Equal(t, []string{"C first", "B second", "D"}, []string{after.Photos[0].Caption, after.Photos[1].Caption, after.Photos[2].Caption})
	assert.Equal(t, []int{0, 1, 2}, []int{after.Photos[0].SortIndex, after.Photos[1].SortIndex, after.Photos[2].SortIndex})
	assert.True(t, strings.HasPrefix(after.Photos[2].FilePath, "2026/02/07/photo-"))

	files := fixture.storedFiles(t)
	assert.Len(t, files, 4)
	assert.NotContains(t, files, before.Notebook.FilePath)
	assert.NotContains(t, files, photoA.FilePath)
}

func TestEditUpdatesNotebookCaptionAndRemovesNotebook(t *testing.T) {
	fixture := newPublishingFixture(t)
	notebook := BytesUpload("page.jpg", "", []byte("page"))
	entryID, err := fixture.service.Publish(EntryInput{EntryDate: "2026-02-06", NotebookPage: &notebook, NotebookCaption: "before"})
	require.NoError(t, err)

	require.NoError(t, fixture.service.Edit(entryID, EntryEdit{EntryDate: "2026-02-06", NotebookCaption: "after"}))
	result, err := fixture.repo.GetEntryWithAssets(entryID)
	require.NoError(t, err)
	require.NotNil(t, result.Notebook)
	assert.Equal(t, "after", result.Notebook.Caption)

	require.NoError(t, fixture.service.Edit(entryID, EntryEdit{EntryDate: "2026-02-06", RemoveNotebook: true}))
	result, err = fixture.repo.GetEntryWithAssets(entryID)
	require.NoError(t, err)
	assert.Nil(t, result.Notebook)
	assert.Empty(t, fixture.storedFiles(t))
}

func TestEditRejectsForeignPhotoAndRollsBack(t *testing.T) {
	fixture := newPublishingFixture(t)
	ownerID, err := fixture.service.Publish(EntryInput{EntryDate: "2026-02-06", Title: "owner"})
	require.NoError(t, err)
	otherID, err := fixture.service.Publish(EntryInput{
		EntryDate: "2026-02-07",
		Photos:    []Upload{BytesUpload("a.jpg", "A", []byte("a"))},
	})
	require.NoError(t, err)
	other, err := fixture.repo.GetEntryWithAssets(otherID)
	require.NoError(t, err)

	err = fixture.service.Edit(ownerID, EntryEdit{
		EntryDate:      "2026-02-06",
		Title:          "changed",
		ExistingPhotos: []PhotoEdit{{AssetID: other.Photos[0].ID, Delete: true}},
		NewPhotos:      []Upload{BytesUpload("b.jpg", "B", []byte("b"))},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	owner, err := fixture.repo.GetEntryWithAssets(ownerID)
	require.NoError(t, err)
	assert.Equal(t, "owner", owner.Entry.Title)
	assert.Equal(t, []string{other.Photos[0].FilePath}, fixture.storedFiles(t))
}

func TestEditUnknownEntryReportsNotFound(t *testing.T) {
	fixture := newPublishingFixture(t)

	err := fixture.service.Edit(404, EntryEdit{EntryDate: "2026-02-06"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = fixture.service.AddPhotos(404, []Upload{BytesUpload("a.jpg", "", []byte("a"))})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, fixture.storedFiles(t))
}

func TestEditRejectsReplaceAndRemoveTogether(t *testing.T) {
	fixture := newPublishingFixture(t)
	replacement := BytesUpload("page.jpg", "", []byte("page"))

	err := fixture.service.Edit(1, EntryEdit{EntryDate: "2026-02-06", NotebookPage: &replacement, RemoveNotebook: true})
	assert.True(t, IsValidationError(err))
}
