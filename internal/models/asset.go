package models

import "time"

type AssetKind string

const (
	AssetKindNotebookPage AssetKind = "notebook_page"
	AssetKindPhoto        AssetKind = "photo"
)

func (kind AssetKind) Valid() bool {
	return kind == AssetKindNotebookPage || kind == AssetKindPhoto
}

// FilePrefix is the filename prefix used for stored files of this kind.
func (kind AssetKind) FilePrefix() string {
	switch kind {
	case AssetKindNotebookPage:
		return "notebook"
	case AssetKindPhoto:
		return "photo"
	default:
		return ""
	}
}

type Asset struct {
	ID        uint      `gorm:"primaryKey"`
	EntryID   uint      `gorm:"not null;index:idx_assets_entry_order,priority:1"`
	Entry     *Entry    `gorm:"constraint:OnDelete:CASCADE;"`
	Kind      AssetKind `gorm:"type:text;not null"`
	FilePath  string    `gorm:"column:file_path;not null;uniqueIndex"`
	Caption   string    `gorm:"not null;default:''"`
	SortIndex int       `gorm:"column:sort_index;not null;default:0;index:idx_assets_entry_order,priority:2"`
	CreatedAt time.Time `gorm:"not null"`
}
