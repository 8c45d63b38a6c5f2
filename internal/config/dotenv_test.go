package config

import "testing"

func TestParseTemplate(t *testing.T) {
	data := []byte("# comment\n\nexport APP_PORT=9090\r\nPROJECT_NAME='demo'\nLOG_LEVEL=\"debug\"\n")
	out, err := parseTemplate(data)
	if err != nil {
		t.Fatalf("parseTemplate: %v", err)
	}
	want := map[string]string{
		"APP_PORT":     "9090",
		"PROJECT_NAME": "demo",
		"LOG_LEVEL":    "debug",
	}
	for k, v := range want {
		if out[k] != v {
			t.Fatalf("key %s: got %q want %q", k, out[k], v)
		}
	}
}

func TestParseTemplateRejectsMissingEquals(t *testing.T) {
	if _, err := parseTemplate([]byte("NOT_AN_ASSIGNMENT\n")); err == nil {
		t.Fatalf("expected a syntax error")
	}
}
