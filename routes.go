package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/icexin/minicraft-server/hub"
	"github.com/icexin/minicraft-server/proto"
)

const maxPollBody = 1 << 16

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/api/blocks", s.serveBlocks)
	mux.HandleFunc("/api/players", s.servePlayers)
	switch s.dispatcher.Mode() {
	case hub.Push:
		mux.HandleFunc("/ws", s.serveWebSocket)
	case hub.Pull:
		mux.HandleFunc("/api", s.servePoll)
		mux.HandleFunc("/server.php", s.servePoll)
	}
	if s.cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok")
}

func (s *Server) serveBlocks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.dispatcher.GetBlocks())
}

func (s *Server) servePlayers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, &proto.PlayersReply{OK: 1, Players: s.roster.List("")})
}

// servePoll answers one pull-mode request. The action comes from the query
// string; parameters come from the JSON body, falling back to query and form
// values.
func (s *Server) servePoll(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPollBody)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, &proto.ErrorReply{Error: proto.Message(proto.ErrMissingParams)})
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, &proto.ErrorReply{Error: proto.Message(proto.ErrMissingParams)})
		return
	}

	reply, err := s.dispatcher.Handle(nil, r.Form.Get("action"), mergePayload(body, r.Form))
	if err != nil {
		reply = &proto.ErrorReply{Error: proto.Message(err)}
	}
	writeJSON(w, reply)
}

// mergePayload builds the event payload from a JSON object body and the
// request's form values. Body fields win. A body that is not a JSON object is
// treated as empty.
func mergePayload(body []byte, form url.Values) []byte {
	fields := make(map[string]json.RawMessage)
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
			fields = make(map[string]json.RawMessage)
		}
	}
	for k, vs := range form {
		if k == "action" || len(vs) == 0 {
			continue
		}
		if _, ok := fields[k]; ok {
			continue
		}
		raw, err := json.Marshal(vs[0])
		if err != nil {
			continue
		}
		fields[k] = raw
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return payload
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writing response: %v", err)
	}
}
