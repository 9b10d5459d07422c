package core

import "errors"

// Resolution errors. The session stays open with partial data.
var (
	ErrUnknownRuleType      = errors.New("unknown rule type")
	ErrMappingTableNotFound = errors.New("mapping table not found")
	ErrSchemaNotFound       = errors.New("schema not found")
	ErrDatasetNotFound      = errors.New("dataset not found")
	ErrNoSchemaFile         = errors.New("schema version has no stored file")
)

// Join condition errors.
var (
	ErrIndexOutOfRange       = errors.New("index out of range")
	ErrDuplicateMappingField = errors.New("duplicate mapping table field")
)

// Session errors.
var (
	// ErrSessionAlreadyOpen indicates a modality violation by the caller.
	ErrSessionAlreadyOpen = errors.New("session already open")
	ErrSessionNotEditing  = errors.New("session is not editing")
	ErrRuleTypeLocked     = errors.New("rule type cannot change while editing an existing rule")
	ErrNoSchemaField      = errors.New("rule type has no schema field selector")
	ErrCommitInProgress   = errors.New("commit in progress")
	ErrStaleResolution    = errors.New("stale resolution discarded")
	ErrValidationFailed   = errors.New("rule validation failed")
	ErrOrderOutOfRange    = errors.New("rule order out of range")
	ErrRuleChanged        = errors.New("rule changed since it was opened")
	ErrEditorNotFound     = errors.New("edit session not found")
)

// IsResolutionError reports whether err is a lookup failure that leaves an
// open session editable with partial data.
func IsResolutionError(err error) bool {
	return errors.Is(err, ErrUnknownRuleType) ||
		errors.Is(err, ErrMappingTableNotFound) ||
		errors.Is(err, ErrSchemaNotFound)
}
