package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/menas/internal/core"
	"github.com/JonMunkholm/menas/internal/logging"
	"github.com/JonMunkholm/menas/internal/web/views"
)

type editorKey struct{}

// editorCtx loads the edit session named by the id URL parameter.
func (s *Server) editorCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.editors.Get(chi.URLParam(r, "id"))
		if sess == nil {
			s.respondError(w, r, core.ErrEditorNotFound, http.StatusNotFound)
			return
		}
		ctx := context.WithValue(r.Context(), editorKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func editorFrom(r *http.Request) *core.Session {
	return r.Context().Value(editorKey{}).(*core.Session)
}

// respondEditor writes the session state: the rule dialog for HTMX requests
// and the snapshot as JSON otherwise.
func (s *Server) respondEditor(w http.ResponseWriter, r *http.Request, sess *core.Session, status int) {
	snap := sess.Snapshot()
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := views.RuleDialog(snap, s.registry.All()).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render rule dialog", "error", err)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, snap)
}

// finish responds to a session operation. Resolution failures leave the
// session editable, so they are reported inside the snapshot.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, sess *core.Session, err error) {
	switch {
	case err == nil:
		s.respondEditor(w, r, sess, http.StatusOK)
	case core.IsResolutionError(err) && sess.Snapshot().ResolveError != "":
		logging.FromContext(r.Context()).Warn("resolution failed", "editor", sess.ID(), "error", err)
		s.respondEditor(w, r, sess, http.StatusOK)
	default:
		s.respondError(w, r, err, statusFor(err))
	}
}

func (s *Server) resolveContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.Session.ResolveTimeout)
}

// handleCreateEditor starts a new closed edit session.
func (s *Server) handleCreateEditor(w http.ResponseWriter, r *http.Request) {
	sess := s.editors.Create()
	w.Header().Set("Location", "/api/editors/"+sess.ID())
	s.respondEditor(w, r, sess, http.StatusCreated)
}

func (s *Server) handleGetEditor(w http.ResponseWriter, r *http.Request) {
	s.respondEditor(w, r, editorFrom(r), http.StatusOK)
}

func (s *Server) handleEditorDialog(w http.ResponseWriter, r *http.Request) {
	sess := editorFrom(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.RuleDialog(sess.Snapshot(), s.registry.All()).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render rule dialog", "editor", sess.ID(), "error", err)
	}
}

func (s *Server) handleRemoveEditor(w http.ResponseWriter, r *http.Request) {
	s.editors.Remove(editorFrom(r).ID())
	w.WriteHeader(http.StatusNoContent)
}

// handleOpen opens the dialog on a freshly loaded dataset version. With an
// order the rule at that position is edited, otherwise a new rule is
// appended.
func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	sess := editorFrom(r)
	f, err := readForm(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	name, err := f.require("dataset")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	version, ok, err := f.int("version")
	if err == nil && !ok {
		err = fmt.Errorf("%w: version is required", errBadRequest)
	}
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	ctx, cancel := s.resolveContext(r)
	defer cancel()

	list, err := s.lists.Load(ctx, name, version)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	ds := list.Dataset()
	schema, err := s.catalog.GetSchema(ctx, ds.SchemaName, ds.SchemaVersion)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	params := core.OpenParams{List: list, Schema: schema}
	order, ok, err := f.int("order")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if ok {
		existing, found := list.At(order)
		if !found {
			err := fmt.Errorf("%w: %d", core.ErrOrderOutOfRange, order)
			s.respondError(w, r, err, statusFor(err))
			return
		}
		params.Existing = &existing
	}

	s.finish(w, r, sess, sess.Open(ctx, params))
}

func (s *Server) handleSelectRuleType(w http.ResponseWriter, r *http.Request) {
	sess := editorFrom(r)
	f, err := readForm(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	ruleType, err := f.require("ruleType")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	ctx, cancel := s.resolveContext(r)
	defer cancel()
	s.finish(w, r, sess, sess.SelectRuleType(ctx, ruleType))
}

func (s *Server) handleSelectMappingTable(w http.ResponseWriter, r *http.Request) {
	sess := editorFrom(r)
	f, err := readForm(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	id, err := f.require("id")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	ctx, cancel := s.resolveContext(r)
	defer cancel()
	s.finish(w, r, sess, sess.SelectMappingTable(ctx, id))
}

func (s *Server) handleSelectMappingTableVersion(w http.ResponseWriter, r *http.Request) {
	sess := editorFrom(r)
	f, err := readForm(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	id, err := f.require("id")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	version, ok, err := f.int("version")
	if err == nil && !ok {
		err = fmt.Errorf("%w: version is required", errBadRequest)
	}
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	ctx, cancel := s.resolveContext(r)
	defer cancel()
	s.finish(w, r, sess, sess.SelectMappingTableVersion(ctx, id, version))
}

func (s *Server) handleAddJoinCondition(w http.ResponseWriter, r *http.Request) {
	sess := editorFrom(r)
	f, err := readForm(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.finish(w, r, sess, sess.AddJoinCondition(f["datasetField"], f["mappingTableField"]))
}

func (s *Server) handleReplaceJoinCondition(w http.ResponseWriter, r *http.Request) {
	sess := editorFrom(r)
	index, err := intParam(r, "index")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	f, err := readForm(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.finish(w, r, sess, sess.ReplaceJoinConditionAt(index, f["datasetField"], f["mappingTableField"]))
}

func (s *Server) handleRemoveJoinCondition(w http.ResponseWriter, r *http.Request) {
	sess := editorFrom(r)
	index, err := intParam(r, "index")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.finish(w, r, sess, sess.RemoveJoinConditionAt(index))
}

func (s *Server) handleAddConcatColumn(w http.ResponseWriter, r *http.Request) {
	sess := editorFrom(r)
	f, err := readForm(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.finish(w, r, sess, sess.AddConcatColumn(f["column"]))
}

func (s *Server) handleReplaceConcatColumn(w http.ResponseWriter, r *http.Request) {
	sess := editorFrom(r)
	index, err := intParam(r, "index")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	f, err := readForm(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.finish(w, r, sess, sess.ReplaceConcatColumnAt(index, f["column"]))
}

func (s *Server) handleRemoveConcatColumn(w http.ResponseWriter, r *http.Request) {
	sess := editorFrom(r)
	index, err := intParam(r, "index")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.finish(w, r, sess, sess.RemoveConcatColumnAt(index))
}

func (s *Server) handleSelectSchemaField(w http.ResponseWriter, r *http.Request) {
	sess := editorFrom(r)
	f, err := readForm(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	path, err := f.require("path")
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.finish(w, r, sess, sess.SelectSchemaField(path))
}

func (s *Server) handleEditDraft(w http.ResponseWriter, r *http.Request) {
	sess := editorFrom(r)
	f, err := readForm(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	patch := core.DraftPatch{
		OutputColumn:      f.ptr("outputColumn"),
		InputColumn:       f.ptr("inputColumn"),
		InputColumnAlias:  f.ptr("inputColumnAlias"),
		OutputDataType:    f.ptr("outputDataType"),
		Value:             f.ptr("value"),
		SparkConfKey:      f.ptr("sparkConfKey"),
		TargetAttribute:   f.ptr("targetAttribute"),
		ControlCheckpoint: f.bool("controlCheckpoint"),
	}
	s.finish(w, r, sess, sess.Edit(patch))
}

// handleSubmit validates and commits the draft. A rejected draft keeps the
// dialog open; HTMX clients get it back with the field errors rendered.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess := editorFrom(r)
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Session.CommitTimeout)
	defer cancel()

	if err := s.commits.Acquire(ctx); err != nil {
		w.Header().Set("Retry-After", "5")
		s.respondError(w, r, err, statusFor(err))
		return
	}
	rule, err := sess.Submit(ctx)
	s.commits.Release()
	if err != nil {
		var se *core.SubmitError
		if errors.As(err, &se) && isHTMX(r) {
			s.respondEditor(w, r, sess, http.StatusUnprocessableEntity)
			return
		}
		s.respondError(w, r, err, statusFor(err))
		return
	}

	if isHTMX(r) {
		s.respondEditor(w, r, sess, http.StatusOK)
		return
	}
	writeJSON(w, rule)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess := editorFrom(r)
	s.finish(w, r, sess, sess.Cancel())
}
