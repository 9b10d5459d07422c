package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/menas/internal/core"
)

// RuleTypeInfo is the JSON shape of a registered rule type.
type RuleTypeInfo struct {
	RuleType               string           `json:"ruleType"`
	Label                  string           `json:"label"`
	HasSchemaFieldSelector bool             `json:"hasSchemaFieldSelector"`
	FieldTarget            core.FieldTarget `json:"fieldTarget"`
	Fields                 []string         `json:"fields,omitempty"`
}

// handleListRuleTypes returns the registered rule types in display order.
func (s *Server) handleListRuleTypes(w http.ResponseWriter, _ *http.Request) {
	all := s.registry.All()
	out := make([]RuleTypeInfo, len(all))
	for i, d := range all {
		out[i] = RuleTypeInfo{
			RuleType:               d.RuleType,
			Label:                  d.Label,
			HasSchemaFieldSelector: d.HasSchemaFieldSelector,
			FieldTarget:            d.FieldTarget,
			Fields:                 d.Fields,
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleListDataTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, core.DataTypes)
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.ListDatasets(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, list)
}

func (s *Server) handleGetLatestDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.catalog.GetLatestDataset(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, ds)
}

// handleGetDataset returns a dataset version with its conformance list as
// currently held in memory.
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	version, err := intParam(r, "version")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	list, err := s.lists.Get(r.Context(), chi.URLParam(r, "name"), version)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, list.Dataset())
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.ListSchemas(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, list)
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	version, err := intParam(r, "version")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	schema, err := s.catalog.GetSchema(r.Context(), chi.URLParam(r, "name"), version)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, schema)
}

// handleExportSchema streams the originally uploaded schema file.
func (s *Server) handleExportSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	version, err := intParam(r, "version")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	file, err := s.catalog.GetSchemaFile(r.Context(), name, version)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	filename := core.ExportFilename(name, version, file.MimeType)
	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Content)))
	w.Write(file.Content)
}

func (s *Server) handleListMappingTables(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.ListMappingTables(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, list)
}

func (s *Server) handleMappingTableVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.catalog.GetAllVersions(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, versions)
}
