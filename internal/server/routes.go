package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/mem/internal/store"
)

// queryLimit parses the limit parameter. Absent means 0, which the
// config clamps to the default.
func queryLimit(r *http.Request) (int, error) {
	l := r.URL.Query().Get("limit")
	if l == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(l)
	if err != nil {
		return 0, fmt.Errorf("limit %q is not an integer", l)
	}
	return n, nil
}

func (s *Server) handleSaveMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title     string `json:"title"`
		Type      string `json:"type"`
		Content   string `json:"content"`
		Project   string `json:"project"`
		SessionID string `json:"session_id"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Type == "" {
		req.Type = string(store.TypeManual)
	}
	typ, err := store.ParseUserMemoryType(req.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	m, err := s.db.SaveMemory(r.Context(), store.SaveParams{
		Title:     req.Title,
		Type:      typ,
		Content:   req.Content,
		Project:   req.Project,
		SessionID: req.SessionID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.MemoriesSaved.Inc()
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleRecentMemories(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	memories, err := s.db.RecentMemories(r.Context(), r.URL.Query().Get("project"), s.cfg.SearchLimit(limit))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if memories == nil {
		memories = []store.Memory{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(memories),
		"memories": memories,
	})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	m, err := s.db.GetMemory(r.Context(), chi.URLParam(r, "memoryID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if m == nil {
		writeMessage(w, http.StatusNotFound, "memory not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	ok, err := s.db.DeleteMemory(r.Context(), chi.URLParam(r, "memoryID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		writeMessage(w, http.StatusNotFound, "memory not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSetScope(scope store.MemoryScope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "memoryID")

		var ok bool
		var err error
		if scope == store.ScopeGlobal {
			ok, err = s.db.PromoteMemory(r.Context(), id)
		} else {
			ok, err = s.db.DemoteMemory(r.Context(), id)
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !ok {
			writeMessage(w, http.StatusNotFound, "memory not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "scope": string(scope)})
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeMessage(w, http.StatusBadRequest, "q parameter required")
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.engine.Search(r.Context(), query, r.URL.Query().Get("project"), s.cfg.SearchLimit(limit))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	type resultJSON struct {
		Kind  string `json:"kind"`
		ID    string `json:"id"`
		Title string `json:"title"`
		// Path is set for files, Project for memories.
		Path    string `json:"path,omitempty"`
		Project string `json:"project,omitempty"`
		Content string `json:"content"`
	}

	out := make([]resultJSON, 0, len(results))
	for _, res := range results {
		rj := resultJSON{Kind: string(res.Kind), Title: res.Title()}
		switch {
		case res.Memory != nil:
			rj.ID, rj.Project, rj.Content = res.Memory.ID, res.Memory.Project, res.Memory.Content
		case res.File != nil:
			rj.ID, rj.Path, rj.Project, rj.Content = res.File.ID, res.File.SourcePath, res.File.ProjectName, res.File.Content
		}
		out = append(out, rj)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"count":   len(out),
		"results": out,
	})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	md, err := s.engine.Context(r.Context(), r.URL.Query().Get("project"), s.cfg.ContextLimit(limit))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"context": md})
}

func (s *Server) handleDecay(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Threshold *float64 `json:"threshold"`
		DryRun    bool     `json:"dry_run"`
	}{}
	if err := decodeBody(r, &req, true); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	threshold := s.cfg.Decay.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	n, err := s.db.Decay(r.Context(), threshold, req.DryRun)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !req.DryRun {
		s.metrics.MemoriesDecayed.Add(float64(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     n,
		"threshold": threshold,
		"dry_run":   req.DryRun,
	})
}

func (s *Server) handleUpsertFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourcePath  string `json:"source_path"`
		ProjectPath string `json:"project_path"`
		ProjectName string `json:"project_name"`
		Title       string `json:"title"`
		Content     string `json:"content"`
		MtimeSecs   int64  `json:"file_mtime_secs"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	outcome, err := s.db.UpsertFile(r.Context(), store.UpsertFileParams{
		SourcePath:  req.SourcePath,
		ProjectPath: req.ProjectPath,
		ProjectName: req.ProjectName,
		Title:       req.Title,
		Content:     req.Content,
		MtimeSecs:   req.MtimeSecs,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.FilesUpserted.WithLabelValues(outcome.String()).Inc()
	writeJSON(w, http.StatusOK, map[string]string{
		"source_path": req.SourcePath,
		"outcome":     outcome.String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.db.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGain(w http.ResponseWriter, r *http.Request) {
	g, err := s.db.GainStats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if g.TopProjects == nil {
		g.TopProjects = []store.ProjectUsage{}
	}
	writeJSON(w, http.StatusOK, struct {
		*store.GainStats
		CacheEfficiencyPct float64 `json:"cache_efficiency_pct"`
	}{g, g.CacheEfficiencyPct()})
}

func (s *Server) handleSessionInit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Project   string `json:"project"`
		Goal      string `json:"goal"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	id, err := s.db.StartSession(r.Context(), req.SessionID, req.Project, req.Goal)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.db.GetSession(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.db.EndSession(r.Context(), sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "status": "ended"})
}
