package core

import (
	"fmt"
	"mime"
)

// SchemaSummary is a schema entry in master lists.
type SchemaSummary struct {
	Name          string `json:"name"`
	LatestVersion int    `json:"latestVersion"`
}

// SchemaFile is the original file a schema version was uploaded from.
type SchemaFile struct {
	MimeType string
	Content  []byte
}

// FileExtension maps the mime type of an uploaded schema file to the
// extension used when exporting it. Copybooks are stored as octet streams.
func FileExtension(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = mimeType
	}
	switch mt {
	case "application/json":
		return "json"
	case "application/octet-stream":
		return "cob"
	default:
		return ""
	}
}

// ExportFilename returns the download name of a schema file, for example
// "people-v3.json". Unknown types get no extension.
func ExportFilename(name string, version int, mimeType string) string {
	if ext := FileExtension(mimeType); ext != "" {
		return fmt.Sprintf("%s-v%d.%s", name, version, ext)
	}
	return fmt.Sprintf("%s-v%d", name, version)
}
