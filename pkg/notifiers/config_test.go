package notifiers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoadConfigsEnabledFilter(t *testing.T) {
	path := writeFile(t, "notifiers.yaml", `
notifiers:
  - id: hook1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: hook2
    type: HTTP
    http:
      url: " https://example.com/2 "
      headers:
        X-Token: abc
        " ": ignored
`)

	cfgs, err := LoadConfigs(path)
	if err != nil {
		t.Fatalf("LoadConfigs: %v", err)
	}
	enabled := Enabled(cfgs)
	if len(enabled) != 1 || enabled[0].ID != "hook2" {
		t.Fatalf("expected only hook2 enabled, got %#v", enabled)
	}
	h := enabled[0].HTTP
	if h.URL != "https://example.com/2" || h.Method != "POST" || h.TimeoutSeconds != 5 {
		t.Fatalf("unexpected sanitized http config %#v", h)
	}
	if len(h.Headers) != 1 || h.Headers["X-Token"] != "abc" {
		t.Fatalf("unexpected headers %#v", h.Headers)
	}
}

func TestLoadConfigsExpandsEnv(t *testing.T) {
	t.Setenv("XINWEN_TEST_SQS_KEY", "AKIA123")
	t.Setenv("XINWEN_TEST_SQS_SECRET", "s3cret")
	path := writeFile(t, "notifiers.yml", `
notifiers:
  - id: queue1
    type: queue
    queue:
      provider: aws-sqs
      sqs:
        uri: https://sqs.ap-east-1.amazonaws.com/1/posts
        region: ap-east-1
        access_key_id: ${XINWEN_TEST_SQS_KEY}
        secret_access_key: ${XINWEN_TEST_SQS_SECRET}
`)

	cfgs, err := LoadConfigs(path)
	if err != nil {
		t.Fatalf("LoadConfigs: %v", err)
	}
	if got := cfgs[0].Queue.SQS.AccessKeyID; got != "AKIA123" {
		t.Fatalf("expected expanded key, got %q", got)
	}
}

func TestLoadConfigsJSON(t *testing.T) {
	path := writeFile(t, "notifiers.json", `{"notifiers":[{"id":"ps","type":"queue","queue":{"provider":"gcp","gcp":{"project_id":"p","topic":"t"}}}]}`)

	cfgs, err := LoadConfigs(path)
	if err != nil {
		t.Fatalf("LoadConfigs: %v", err)
	}
	if len(cfgs) != 1 || cfgs[0].Queue.GCP.Topic != "t" {
		t.Fatalf("unexpected configs %#v", cfgs)
	}
}

func TestLoadConfigsRejectsDuplicates(t *testing.T) {
	path := writeFile(t, "notifiers.yaml", `
notifiers:
  - id: a
    type: http
    http: {url: https://example.com}
  - id: a
    type: http
    http: {url: https://example.com}
`)
	_, err := LoadConfigs(path)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestLoadConfigsEmptyPath(t *testing.T) {
	if _, err := LoadConfigs("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  NotifierConfig
	}{
		{"missing id", NotifierConfig{Type: TypeHTTP}},
		{"missing type", NotifierConfig{ID: "x"}},
		{"unknown type", NotifierConfig{ID: "x", Type: "kafka"}},
		{"missing http", NotifierConfig{ID: "x", Type: TypeHTTP}},
		{"missing queue", NotifierConfig{ID: "x", Type: TypeQueue}},
		{"unknown provider", NotifierConfig{ID: "x", Type: TypeQueue, Queue: &QueueConfig{Provider: "azure"}}},
		{"sqs without creds", NotifierConfig{ID: "x", Type: TypeQueue, Queue: &QueueConfig{
			Provider: QueueProviderAWSSQS,
			SQS:      &AWSSQSConfig{QueueURL: "u", Region: "r"},
		}}},
		{"sns without topic", NotifierConfig{ID: "x", Type: TypeQueue, Queue: &QueueConfig{
			Provider: QueueProviderAWSSNS,
			SNS:      &AWSSNSConfig{Region: "r", AccessKeyID: "k", SecretAccessKey: "s"},
		}}},
		{"gcp without topic", NotifierConfig{ID: "x", Type: TypeQueue, Queue: &QueueConfig{
			Provider: QueueProviderGCP,
			GCP:      &GCPPubSubConfig{ProjectID: "p"},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateConfig(tc.cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
