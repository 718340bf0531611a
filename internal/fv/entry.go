package fv

import "time"

// Entry is a point-in-time snapshot of one vaulted file. It is never updated
// in place: any mutation (rename, move, delete) invalidates it and the tree
// must be re-scanned.
type Entry struct {
	Path     string // absolute path inside the vault
	Name     string
	Category Category
	Size     int64
	ModTime  time.Time
}

// Folder is a point-in-time snapshot of one vault directory with its direct
// children and rolled-up totals. Like Entry, it is a throwaway snapshot whose
// lifetime is one ListTree call, not cached state.
type Folder struct {
	Path     string
	Name     string
	Files    []*Entry
	Children []*Folder

	// TotalFiles and TotalSize roll up this folder's files plus all
	// descendants, accumulated during the single scan pass.
	TotalFiles int
	TotalSize  int64
}

// Items returns the folder's direct children as tagged items, directories
// before files, in scan order.
func (f *Folder) Items() []Item {
	items := make([]Item, 0, len(f.Children)+len(f.Files))
	for _, c := range f.Children {
		items = append(items, DirItem(c))
	}
	for _, e := range f.Files {
		items = append(items, FileItem(e))
	}
	return items
}

// DirectFileCount returns the number of files directly in this folder.
func (f *Folder) DirectFileCount() int { return len(f.Files) }

// DirectSize returns the byte total of files directly in this folder.
func (f *Folder) DirectSize() int64 {
	var n int64
	for _, e := range f.Files {
		n += e.Size
	}
	return n
}

// CategoryTally holds a file count and byte total for one category.
type CategoryTally struct {
	Files int
	Bytes int64
}

// Stats is the whole-tree rollup produced by one ListTree scan. A fresh value
// is constructed per call; no shared mutable instance crosses calls.
type Stats struct {
	Root       *Folder
	AllFiles   []*Entry
	ByCategory map[Category]CategoryTally
	TotalFiles int
	TotalSize  int64
}

// ItemKind tags the variants of Item.
type ItemKind int

const (
	ItemFile ItemKind = iota
	ItemDir
)

// Item is the tagged union over the two things a vault listing can contain.
// Exactly one of File or Dir is non-nil, matching Kind. Operation sites
// switch on Kind rather than type-asserting heterogeneous values.
type Item struct {
	Kind ItemKind
	File *Entry
	Dir  *Folder
}

// FileItem wraps an Entry as an Item.
func FileItem(e *Entry) Item { return Item{Kind: ItemFile, File: e} }

// DirItem wraps a Folder as an Item.
func DirItem(f *Folder) Item { return Item{Kind: ItemDir, Dir: f} }

// Path returns the absolute path of either variant.
func (it Item) Path() string {
	switch it.Kind {
	case ItemFile:
		return it.File.Path
	default:
		return it.Dir.Path
	}
}
