package api

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.source.Status())
}

func (s *Server) configHandler(w http.ResponseWriter, _ *http.Request) {
	info, ok := s.source.ConfigInfo()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "configuration not assembled")
		return
	}
	writeOK(w, info)
}

func (s *Server) prefixHandler(w http.ResponseWriter, _ *http.Request) {
	info, ok := s.source.ConfigInfo()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "configuration not assembled")
		return
	}
	writeOK(w, PrefixInfo{
		PlatSubnet: info.PlatSubnet,
		Source:     s.source.Status().PrefixSource,
		Hostname:   info.DiscoveryHostname,
	})
}
