package runtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	opts := &Options{NewToken: func() string { return "exec-1" }}
	greet, err := Load(mustParse(t, `{
		"StartAt": "Greet",
		"States": {"Greet": {"Type": "Pass", "Parameters": {"greeting.$": "States.Format('Hello, {}!', $.name)"}, "End": true}}
	}`), nil, opts)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	reject, err := Load(mustParse(t, `{
		"StartAt": "Reject",
		"States": {"Reject": {"Type": "Fail", "Error": "Rejected", "Cause": "not today"}}
	}`), nil, opts)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	g := gin.New()
	NewHttpHandler(map[string]*StateMachine{"greet": greet, "reject": reject}, nil, g)
	return g
}

func serve(g *gin.Engine, method, path, body string) (int, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	var decoded map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w.Code, decoded
}

func TestHttpHandler_ListStateMachines(t *testing.T) {
	code, body := serve(newTestRouter(t), http.MethodGet, "/state-machines", "")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	expectOutput(t, body["stateMachines"], []any{"greet", "reject"})
}

func TestHttpHandler_StartExecution(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		want     map[string]any
	}{
		{
			name:     "succeeded",
			path:     "/state-machines/greet/executions",
			body:     `{"name": "Ada"}`,
			wantCode: http.StatusOK,
			want: map[string]any{
				"executionId": "exec-1",
				"status":      StatusSucceeded,
				"output":      map[string]any{"greeting": "Hello, Ada!"},
			},
		},
		{
			name:     "failed",
			path:     "/state-machines/reject/executions",
			body:     "",
			wantCode: http.StatusOK,
			want: map[string]any{
				"executionId": "exec-1",
				"status":      StatusFailed,
				"error":       "Rejected",
				"cause":       "not today",
			},
		},
		{
			name:     "unknown machine",
			path:     "/state-machines/nope/executions",
			body:     `{}`,
			wantCode: http.StatusNotFound,
			want:     map[string]any{"message": "State machine not found: nope"},
		},
		{
			name:     "malformed body",
			path:     "/state-machines/greet/executions",
			body:     `{"name":`,
			wantCode: http.StatusBadRequest,
			want:     map[string]any{"message": "Wrong request body format"},
		},
	}

	g := newTestRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := serve(g, http.MethodPost, tt.path, tt.body)
			if code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, code)
			}
			expectOutput(t, body, tt.want)
		})
	}
}
