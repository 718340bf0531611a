package fv

import (
	"path/filepath"
	"strings"
)

// Category classifies a vaulted file by its extension.
type Category int

const (
	CategoryOther Category = iota
	CategoryPhoto
	CategoryVideo
	CategoryDocument
)

func (c Category) String() string {
	switch c {
	case CategoryPhoto:
		return "photo"
	case CategoryVideo:
		return "video"
	case CategoryDocument:
		return "document"
	default:
		return "other"
	}
}

// categoryByExt is the single extension lookup table; every call site that
// needs categorization goes through CategoryOf.
var categoryByExt = map[string]Category{
	"jpg": CategoryPhoto, "jpeg": CategoryPhoto, "png": CategoryPhoto,
	"gif": CategoryPhoto, "bmp": CategoryPhoto, "webp": CategoryPhoto,

	"mp4": CategoryVideo, "mkv": CategoryVideo, "avi": CategoryVideo,
	"mov": CategoryVideo, "wmv": CategoryVideo, "flv": CategoryVideo,

	"pdf": CategoryDocument, "doc": CategoryDocument, "docx": CategoryDocument,
	"xls": CategoryDocument, "xlsx": CategoryDocument, "ppt": CategoryDocument,
	"pptx": CategoryDocument, "txt": CategoryDocument, "rtf": CategoryDocument,
}

// CategoryOf classifies a file name by its extension, case-insensitively.
// Names with an unknown or missing extension classify as CategoryOther.
// The category is derived at observation time, never stored: a renamed file
// changes category on the next scan.
func CategoryOf(name string) Category {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return CategoryOther
	}
	return categoryByExt[ext]
}
