package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BDNK1/sfnsim/runtime"
)

const fullConfig = `
options:
  simulate_wait: ${SIMULATE_WAIT:false}
  region: ${REGION:eu-west-1}
state_machines:
  orders: orders.asl.json
resources:
  lambda:
    price:
      response: {amount: 10}
    broken:
      error: Price.Unavailable
      cause: no prices today
    remote:
      url: http://localhost:9000/remote
      client:
        timeout: 2s
  s3:
    docs:
      objects:
        a.txt: hello
  sns:
    alerts: {}
  sqs:
    jobs: {}
  stepFunctions:
    child:
      definition: child.asl.json
  http:
    default:
      base_url: ${API_URL:http://localhost:8081}
      headers:
        Authorization: Bearer ${TOKEN}
telemetry:
  otlp_endpoint: ${OTLP_ENDPOINT:}
`

func TestParse(t *testing.T) {
	file, err := Parse([]byte(fullConfig), lookupFrom(map[string]string{"TOKEN": "secret", "REGION": "us-west-2"}))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	opts, err := file.RuntimeOptions()
	if err != nil {
		t.Fatalf("RuntimeOptions failed: %v", err)
	}
	if opts.Region != "us-west-2" || opts.SimulateWait {
		t.Errorf("Unexpected options %+v", opts)
	}

	if got := file.Resources.HTTP["default"]["headers"].(map[string]any)["Authorization"]; got != "Bearer secret" {
		t.Errorf("Expected expanded header, got %v", got)
	}
	if got := file.Resources.HTTP["default"]["base_url"]; got != "http://localhost:8081" {
		t.Errorf("Expected default base_url, got %v", got)
	}
	if file.Telemetry.Enabled() {
		t.Error("Expected telemetry to be disabled")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name:    "unset variable",
			config:  "telemetry:\n  otlp_endpoint: ${COLLECTOR}\n",
			wantErr: "COLLECTOR is not set",
		},
		{
			name:    "lambda without behaviour",
			config:  "resources:\n  lambda:\n    f: {}\n",
			wantErr: "resources.lambda.f: exactly one of url, response or error",
		},
		{
			name:    "unknown redis",
			config:  "resources:\n  sqs:\n    jobs: {redis: cache}\n",
			wantErr: `unknown redis connection "cache"`,
		},
		{
			name:    "step function without definition",
			config:  "resources:\n  stepFunctions:\n    child: {}\n",
			wantErr: "definition is required",
		},
		{
			name:    "malformed",
			config:  "resources: [",
			wantErr: "failed to parse config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.config), lookupFrom(nil))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	file, err := Parse(nil, lookupFrom(nil))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	resources, err := file.Catalog()
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}
	if len(resources) != 0 {
		t.Errorf("Expected no resources, got %d", len(resources))
	}
}

func TestCatalog(t *testing.T) {
	file, err := Parse([]byte(fullConfig), lookupFrom(map[string]string{"TOKEN": "secret"}))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	resources, err := file.Catalog()
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}

	var keys []string
	for _, r := range resources {
		keys = append(keys, r.Service()+"/"+r.ResourceName())
	}
	want := "lambda/broken lambda/price lambda/remote s3/docs sns/alerts sqs/jobs http/default"
	if got := strings.Join(keys, " "); got != want {
		t.Errorf("Expected catalog %q, got %q", want, got)
	}
}

func TestCatalog_StaticLambdas(t *testing.T) {
	file, err := Parse([]byte(fullConfig), lookupFrom(map[string]string{"TOKEN": "secret"}))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	resources, err := file.Catalog()
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}

	def, err := runtime.ParseDefinition([]byte(`{
		"StartAt": "Price",
		"States": {
			"Price": {"Type": "Task", "Resource": "arn:aws:lambda:us-east-1:123456789012:function:price", "ResultPath": "$.price", "Next": "Broken"},
			"Broken": {
				"Type": "Task",
				"Resource": "arn:aws:lambda:us-east-1:123456789012:function:broken",
				"Catch": [{"ErrorEquals": ["Price.Unavailable"], "ResultPath": "$.error", "Next": "Done"}],
				"End": true
			},
			"Done": {"Type": "Succeed"}
		}
	}`))
	if err != nil {
		t.Fatalf("ParseDefinition failed: %v", err)
	}
	machine, err := runtime.Load(def, resources, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	output, err := machine.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	got := output.(map[string]any)
	if price := got["price"].(map[string]any)["amount"]; price != float64(10) {
		t.Errorf("Expected amount 10 as float64, got %#v", price)
	}
	caught := got["error"].(map[string]any)
	if caught["Error"] != "Price.Unavailable" || caught["Cause"] != "no prices today" {
		t.Errorf("Unexpected caught error %v", caught)
	}
}

func TestLoad_Definitions(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"sfnsim.yaml":       "state_machines:\n  orders: orders.asl.json\nresources:\n  stepFunctions:\n    child:\n      definition: nested/child.yaml\n",
		"orders.asl.json":   `{"StartAt": "Done", "States": {"Done": {"Type": "Succeed"}}}`,
		"nested/child.yaml": "StartAt: Done\nStates:\n  Done:\n    Type: Succeed\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	file, err := Load(filepath.Join(dir, DefaultFileName))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defs, err := file.Definitions()
	if err != nil {
		t.Fatalf("Definitions failed: %v", err)
	}
	if len(defs) != 2 || defs["orders"] == nil || defs["child"] == nil {
		t.Errorf("Expected orders and child definitions, got %v", defs)
	}
}

func TestDefinitions_RejectsEscapingPaths(t *testing.T) {
	file := &File{Dir: t.TempDir(), StateMachines: map[string]string{"evil": "../../etc/machine.json"}}
	_, err := file.Definitions()
	if err == nil || !strings.Contains(err.Error(), "path traversal detected") {
		t.Errorf("Expected a traversal error, got %v", err)
	}
}
