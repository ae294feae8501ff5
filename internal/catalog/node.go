package catalog

import (
	"strings"

	"github.com/goccy/go-json"
)

// Intrinsic record fields set from the file itself.
const (
	FieldFilePath  = "file_path"
	FieldMediaType = "media_type"
	FieldUUID      = "uuid"
)

// ReservedKey is the structural key used for directory children in the tree
// JSON. Tag files may not define it.
const ReservedKey = "contents"

// Metadata holds key/value pairs pooled from tag files.
type Metadata map[string]string

// Record is the fully resolved metadata for one file.
type Record map[string]string

// Merge returns a new Metadata holding the pairs of every layer, later layers
// overriding earlier ones on the same key. Nil layers are skipped.
func Merge(layers ...Metadata) Metadata {
	size := 0
	for _, layer := range layers {
		size += len(layer)
	}
	merged := make(Metadata, size)
	for _, layer := range layers {
		for key, value := range layer {
			merged[key] = value
		}
	}
	return merged
}

// Node is either a *Directory or a *File.
type Node interface {
	NodePath() string
	node()
}

// Directory is a listed directory. Children are ordered by name.
type Directory struct {
	Path     string
	Metadata Metadata
	Children []Node
}

// File is a leaf.
type File struct {
	Path      string
	MediaType string
	// UUID is empty when the file is not an image or no identifier could be
	// obtained.
	UUID string
}

func (d *Directory) NodePath() string { return d.Path }
func (f *File) NodePath() string      { return f.Path }

func (*Directory) node() {}
func (*File) node()      {}

// IsImage reports whether the sniffed media type is an image type.
func (f *File) IsImage() bool {
	return IsImageType(f.MediaType)
}

// IsImageType reports whether mediaType names an image.
func IsImageType(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image")
}

// Fields returns the intrinsic fields of f.
func (f *File) Fields() Metadata {
	fields := Metadata{
		FieldFilePath:  f.Path,
		FieldMediaType: f.MediaType,
	}
	if f.UUID != "" {
		fields[FieldUUID] = f.UUID
	}
	return fields
}

type directoryJSON struct {
	Path     string   `json:"path"`
	Metadata Metadata `json:"metadata"`
	Contents []Node   `json:"contents"`
}

// MarshalJSON renders the directory with its children under "contents".
func (d *Directory) MarshalJSON() ([]byte, error) {
	metadata := d.Metadata
	if metadata == nil {
		metadata = Metadata{}
	}
	children := d.Children
	if children == nil {
		children = []Node{}
	}
	return json.Marshal(directoryJSON{Path: d.Path, Metadata: metadata, Contents: children})
}

// MarshalJSON renders the intrinsic fields.
func (f *File) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string(f.Fields()))
}

// Stats summarizes a normalized tree.
type Stats struct {
	Directories int
	Files       int
	Images      int
	// Unidentified counts images left without an identifier.
	Unidentified int
}

// Count walks root and tallies its nodes.
func Count(root Node) Stats {
	var stats Stats
	var visit func(Node)
	visit = func(n Node) {
		switch n := n.(type) {
		case *Directory:
			stats.Directories++
			for _, child := range n.Children {
				visit(child)
			}
		case *File:
			stats.Files++
			if n.IsImage() {
				stats.Images++
				if n.UUID == "" {
					stats.Unidentified++
				}
			}
		}
	}
	if root != nil {
		visit(root)
	}
	return stats
}
