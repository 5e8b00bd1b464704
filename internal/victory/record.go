package victory

import (
	"encoding/base64"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileState is the position of a FileRecord in the backup pipeline.
type FileState string

// Only Discovered, Read and Stored are produced by the pipeline today.
// Inspected, Error and Skipped are valid values without a producer.
const (
	StateDiscovered FileState = "discovered"
	StateInspected  FileState = "inspected"
	StateRead       FileState = "read"
	StateStored     FileState = "stored"
	StateError      FileState = "error"
	StateSkipped    FileState = "skipped"
)

// FileRecord is one enumerated file and its transient state.
//
// RelativePath is slash separated and relative to the root of the backend that
// produced it, which is what lets a record listed from a source be written to
// a destination with a different root. Contents is nil until the record is
// read and again after it was stored.
type FileRecord struct {
	Name         string
	RelativePath string
	Extension    string
	State        FileState
	Contents     []byte
	Size         int64
	Hash         string // reserved, never populated
}

// NewFileRecord creates a discovered record for the given root-relative path.
func NewFileRecord(relativePath string) *FileRecord {
	relativePath = path.Clean(strings.TrimPrefix(relativePath, "/"))
	name := path.Base(relativePath)
	return &FileRecord{
		Name:         name,
		RelativePath: relativePath,
		Extension:    extension(name),
		State:        StateDiscovered,
	}
}

// extension returns the text after the last dot, or the whole name when it
// has no dot.
func extension(name string) string {
	return name[strings.LastIndex(name, ".")+1:]
}

// LoadContents attaches content to the record and marks it read.
func (f *FileRecord) LoadContents(contents []byte) {
	if contents == nil {
		contents = []byte{}
	}
	f.Contents = contents
	f.Size = int64(len(contents))
	f.State = StateRead
}

// HasContents reports whether content is resident.
func (f *FileRecord) HasContents() bool {
	return f.Contents != nil
}

// ContentsOrError returns the resident content or ErrNoContents.
func (f *FileRecord) ContentsOrError() ([]byte, error) {
	if f.Contents == nil {
		return nil, fmt.Errorf("%s: %w", f.RelativePath, ErrNoContents)
	}
	return f.Contents, nil
}

// ClearContents releases the content after it has been written and marks the
// record stored.
func (f *FileRecord) ClearContents() {
	f.Contents = nil
	f.State = StateStored
}

// fileRecordYAML is the on-disk shape of a FileRecord. Contents is base64 and
// absent when no content is resident, so nil and empty survive a round trip.
type fileRecordYAML struct {
	Name      string    `yaml:"name"`
	Path      string    `yaml:"path"`
	Extension string    `yaml:"extension"`
	State     FileState `yaml:"state"`
	Contents  *string   `yaml:"contents,omitempty"`
	Size      int64     `yaml:"size"`
	Hash      string    `yaml:"hash"`
}

func (f FileRecord) MarshalYAML() (interface{}, error) {
	out := fileRecordYAML{
		Name:      f.Name,
		Path:      f.RelativePath,
		Extension: f.Extension,
		State:     f.State,
		Size:      f.Size,
		Hash:      f.Hash,
	}
	if f.Contents != nil {
		encoded := base64.StdEncoding.EncodeToString(f.Contents)
		out.Contents = &encoded
	}
	return out, nil
}

func (f *FileRecord) UnmarshalYAML(value *yaml.Node) error {
	var in fileRecordYAML
	if err := value.Decode(&in); err != nil {
		return err
	}

	var contents []byte
	if in.Contents != nil {
		decoded, err := base64.StdEncoding.DecodeString(*in.Contents)
		if err != nil {
			return fmt.Errorf("decoding contents of %s: %w", in.Path, err)
		}
		if decoded == nil {
			decoded = []byte{}
		}
		contents = decoded
	}

	*f = FileRecord{
		Name:         in.Name,
		RelativePath: in.Path,
		Extension:    in.Extension,
		State:        in.State,
		Contents:     contents,
		Size:         in.Size,
		Hash:         in.Hash,
	}
	return nil
}
