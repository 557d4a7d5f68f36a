package domain

import "time"

// Revision identifies a point in a repository's history.
// Git commits, Subversion revision numbers and similar identifiers are all
// carried as strings; revisions are only ever compared for equality.
type Revision string

// String returns the revision as a plain string.
func (r Revision) String() string {
	return string(r)
}

// IndexRecord is the unit submitted to the search backend.
// One record is produced per (repository, path) pair per reindex pass.
type IndexRecord struct {
	// Repository is the unique repository name.
	Repository string

	// Path is the slash-separated file path rooted at "/".
	// Example: "/src/main.go"
	Path string

	// Content is the normalized text of the file.
	Content string

	// Revision is the youngest revision of the repository when the pass started,
	// not the revision the file last changed in.
	Revision Revision
}

// DocumentID returns the backend document identifier for the record.
// Documents are keyed by repository and path so a later pass overwrites an
// earlier one.
func (r IndexRecord) DocumentID() string {
	return DocumentID(r.Repository, r.Path)
}

// DocumentID builds the backend document identifier for a repository path.
func DocumentID(repository, path string) string {
	return repository + ":" + path
}

// Document is the backend-native representation of an IndexRecord.
type Document struct {
	ID        string    `json:"id"`
	Repo      string    `json:"repo"`
	Filename  string    `json:"filename"`
	Contents  string    `json:"contents"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDocument converts a record into a backend document stamped with the given time.
func NewDocument(r IndexRecord, indexedAt time.Time) Document {
	return Document{
		ID:        r.DocumentID(),
		Repo:      r.Repository,
		Filename:  r.Path,
		Contents:  r.Content,
		Version:   r.Revision.String(),
		Timestamp: indexedAt.UTC(),
	}
}

// Backend field name constants for consistent field references in queries and mappings.
const (
	FieldID        = "id"
	FieldRepo      = "repo"
	FieldFilename  = "filename"
	FieldContents  = "contents"
	FieldVersion   = "version"
	FieldTimestamp = "timestamp"
)

// FileMatch is the minimal result shape of a query: a file and the repository it lives in.
type FileMatch struct {
	Filename   string `json:"filename"`
	Repository string `json:"repository"`
}
