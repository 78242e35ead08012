package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"

	"github.com/icexin/minicraft-server/hub"
)

func request(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func poll(t *testing.T, h http.Handler, target, body string) map[string]interface{} {
	t.Helper()
	w := request(t, h, http.MethodPost, target, "application/json", body)
	testutil.AssertEqual(t, "status", w.Code, http.StatusOK)
	var reply map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decoding %s: %v", w.Body.String(), err)
	}
	return reply
}

func playerIDs(reply map[string]interface{}) []string {
	var ids []string
	for _, p := range reply["players"].([]interface{}) {
		ids = append(ids, p.(map[string]interface{})["id"].(string))
	}
	return ids
}

func TestPoll_Errors(t *testing.T) {
	env := newTestEnv(t, testConfig(hub.Pull))
	h := env.server.Routes()

	tests := map[string]struct {
		target string
		body   string
		exp    string
	}{
		"no action":          {target: "/api", exp: "no action"},
		"unknown action":     {target: "/api?action=dance", exp: "unknown action"},
		"push only action":   {target: "/api?action=join", body: `{"id":"a"}`, exp: "unknown action"},
		"set missing params": {target: "/api?action=set_block", body: `{"x":1,"y":2}`, exp: "missing params"},
		"remove missing":     {target: "/api?action=block_remove", body: `{}`, exp: "missing params"},
		"update missing id":  {target: "/api?action=update_player", body: `{"name":"x"}`, exp: "missing id"},
		"update bad id":      {target: "/api?action=update_player", body: `{"id":"***"}`, exp: "missing id"},
		"malformed field":    {target: "/api?action=set_block", body: `{"x":{},"y":1,"z":1,"id":1}`, exp: "malformed request"},
		"nan position":       {target: "/api?action=update_player&x=NaN", body: `{"id":"a"}`, exp: "malformed request"},
		"infinite block":     {target: "/api?action=set_block", body: `{"x":"Infinity","y":1,"z":1,"id":1}`, exp: "malformed request"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			reply := poll(t, h, tt.target, tt.body)
			testutil.AssertEqual(t, "ok", reply["ok"], interface{}(0.0))
			testutil.AssertEqual(t, "error", reply["error"], interface{}(tt.exp))
		})
	}
}

func TestPoll_Preflight(t *testing.T) {
	env := newTestEnv(t, testConfig(hub.Pull))
	w := request(t, env.server.Routes(), http.MethodOptions, "/api?action=get_blocks", "", "")
	testutil.AssertEqual(t, "status", w.Code, http.StatusNoContent)
	testutil.AssertEqual(t, "cors", w.Header().Get("Access-Control-Allow-Origin"), "*")
}

func TestPoll_Blocks(t *testing.T) {
	env := newTestEnv(t, testConfig(hub.Pull))
	h := env.server.Routes()

	reply := poll(t, h, "/api?action=set_block", `{"x":1,"y":2,"z":3,"id":5}`)
	testutil.AssertEqual(t, "set ok", reply["ok"], interface{}(1.0))

	form := request(t, h, http.MethodPost, "/api?action=set_block", "application/x-www-form-urlencoded", "x=4&y=5&z=6&id=2")
	testutil.AssertEqual(t, "form set", strings.TrimSpace(form.Body.String()), `{"ok":1}`)

	reply = poll(t, h, "/api?action=set_block&x=1&y=2&z=3&id=9", "")
	testutil.AssertEqual(t, "query set ok", reply["ok"], interface{}(1.0))

	reply = poll(t, h, "/api?action=get_blocks", "")
	blocks := reply["blocks"].([]interface{})
	testutil.AssertEqual(t, "count", len(blocks), 2)
	first := blocks[0].(map[string]interface{})
	testutil.AssertEqual(t, "overwritten", first["id"], interface{}(9.0))

	reply = poll(t, h, "/api?action=block_remove", `{"x":1,"y":2,"z":3}`)
	testutil.AssertEqual(t, "remove ok", reply["ok"], interface{}(1.0))
	reply = poll(t, h, "/api?action=block_remove", `{"x":1,"y":2,"z":3}`)
	testutil.AssertEqual(t, "remove again ok", reply["ok"], interface{}(1.0))

	w := request(t, h, http.MethodGet, "/api/blocks", "", "")
	testutil.AssertEqual(t, "rest blocks", strings.TrimSpace(w.Body.String()), `{"ok":1,"blocks":[{"x":4,"y":5,"z":6,"id":2}]}`)

	stored, err := env.db.LoadBlocks()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "stored", len(stored), 1)
}

func TestPoll_Players(t *testing.T) {
	env := newTestEnv(t, testConfig(hub.Pull))
	h := env.server.Routes()

	poll(t, h, "/api?action=update_player", `{"id":"a","name":"<Al>","x":1}`)
	poll(t, h, "/api?action=update_player", `{"id":"b"}`)

	reply := poll(t, h, "/api?action=get_players&myid=a", "")
	testutil.AssertEqual(t, "a sees b", strings.Join(playerIDs(reply), ","), "b")

	reply = poll(t, h, "/api?action=get_players", `{"myid":"b"}`)
	p := reply["players"].([]interface{})[0].(map[string]interface{})
	testutil.AssertEqual(t, "escaped name", p["name"], interface{}("&lt;Al&gt;"))
	testutil.AssertEqual(t, "default color", p["color"], interface{}("#ffffff"))
	_, leaked := p["last_update_time"]
	testutil.AssertEqual(t, "timestamp hidden", leaked, false)

	env.clock.Advance(3 * time.Second)
	poll(t, h, "/api?action=update_player", `{"id":"a"}`)
	env.clock.Advance(time.Second)

	reply = poll(t, h, "/api?action=get_players", "")
	testutil.AssertEqual(t, "b expired", strings.Join(playerIDs(reply), ","), "a")

	poll(t, h, "/api?action=update_player", `{"id":"ab"}`)
	reply = poll(t, h, "/api?action=get_players", `{"myid":"a b"}`)
	testutil.AssertEqual(t, "raw myid", strings.Join(playerIDs(reply), ","), "a,ab")
	poll(t, h, "/api?action=leave_player", `{"id":"ab"}`)

	reply = poll(t, h, "/api?action=leave_player", `{"id":"a"}`)
	testutil.AssertEqual(t, "leave ok", reply["ok"], interface{}(1.0))
	reply = poll(t, h, "/api?action=get_players", "")
	testutil.AssertEqual(t, "empty", len(reply["players"].([]interface{})), 0)
}

func TestRoutes(t *testing.T) {
	pull := newTestEnv(t, testConfig(hub.Pull)).server.Routes()
	push := newTestEnv(t, testConfig(hub.Push)).server.Routes()

	tests := map[string]struct {
		h      http.Handler
		method string
		target string
		exp    int
	}{
		"health":            {h: pull, method: http.MethodGet, target: "/healthz", exp: http.StatusOK},
		"pull has no ws":    {h: pull, method: http.MethodGet, target: "/ws", exp: http.StatusNotFound},
		"push has no poll":  {h: push, method: http.MethodGet, target: "/api?action=get_blocks", exp: http.StatusNotFound},
		"legacy poll path":  {h: pull, method: http.MethodGet, target: "/server.php?action=get_blocks", exp: http.StatusOK},
		"blocks get only":   {h: push, method: http.MethodPost, target: "/api/blocks", exp: http.StatusMethodNotAllowed},
		"players in push":   {h: push, method: http.MethodGet, target: "/api/players", exp: http.StatusOK},
		"ws needs upgrade":  {h: push, method: http.MethodGet, target: "/ws", exp: http.StatusBadRequest},
		"no static by dflt": {h: push, method: http.MethodGet, target: "/index.html", exp: http.StatusNotFound},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			w := request(t, tt.h, tt.method, tt.target, "", "")
			testutil.AssertEqual(t, "status", w.Code, tt.exp)
		})
	}
}
