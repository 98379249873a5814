package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sink-hole/pkg/liststore"
)

// handleHealth returns liveness, uptime and version.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		Version: s.version,
	})
}

// handleStats returns the counters, the blocklist size and the sorted
// allow/deny lists. The counters and the lists are read separately, not as
// one atomic observation.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	total, blocked := s.stats.Counts()
	snap := s.lists.Snapshot()

	s.writeJSON(w, http.StatusOK, StatsResponse{
		TotalQueries:   total,
		BlockedQueries: blocked,
		BlocklistSize:  len(snap.Blocklist),
		Allowlist:      snap.Allowlist.Sorted(),
		Denylist:       snap.Denylist.Sorted(),
	})
}

// handleLogs returns a copy of the recent-query ring, newest first.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, LogsResponse{
		Logs: s.stats.Logs(),
	})
}

// handleUpdateAllowlist replaces the allowlist wholesale.
func (s *Server) handleUpdateAllowlist(w http.ResponseWriter, r *http.Request) {
	set, ok := s.decodeDomains(w, r)
	if !ok {
		return
	}

	s.lists.ReplaceAllowlist(set)
	s.logger.Info("Allowlist replaced", "domains", len(set))

	s.writeJSON(w, http.StatusOK, ListUpdateResponse{
		Status:  "success",
		Message: fmt.Sprintf("Allowlist updated with %d domains.", len(set)),
	})
}

// handleUpdateDenylist replaces the denylist wholesale.
func (s *Server) handleUpdateDenylist(w http.ResponseWriter, r *http.Request) {
	set, ok := s.decodeDomains(w, r)
	if !ok {
		return
	}

	s.lists.ReplaceDenylist(set)
	s.logger.Info("Denylist replaced", "domains", len(set))

	s.writeJSON(w, http.StatusOK, ListUpdateResponse{
		Status:  "success",
		Message: fmt.Sprintf("Denylist updated with %d domains.", len(set)),
	})
}

// decodeDomains parses a list-replacement body. Domains are lowercased and
// deduplicated by the set construction; a body without a "domains" key
// yields the empty set, which clears the list.
func (s *Server) decodeDomains(w http.ResponseWriter, r *http.Request) (liststore.DomainSet, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return nil, false
	}

	var req ListUpdateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return nil, false
	}

	return liststore.NewDomainSet(req.Domains), true
}

// handleBlocklistRefresh triggers an on-demand feed fetch.
func (s *Server) handleBlocklistRefresh(w http.ResponseWriter, r *http.Request) {
	if s.blocklist == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Blocklist manager not configured")
		return
	}

	if err := s.blocklist.Refresh(r.Context()); err != nil {
		s.logger.Error("On-demand blocklist refresh failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "Blocklist refresh failed: "+err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, BlocklistRefreshResponse{
		Status:  "success",
		Domains: s.lists.BlocklistSize(),
	})
}
