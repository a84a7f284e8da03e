package fieldpath

import "testing"

const sample = `{
  "videoUrl": "",
  "data": {"url": "https://cdn.example.com/a.mp4", "count": 3},
  "loaderData": {
    "video_(id)/page": {
      "videoInfoRes": {"item_list": [{"video": {"play_addr": {"url_list": ["https://v.example.com/play"]}}}]}
    }
  },
  "result": {"text": "  你好  "}
}`

func TestString(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		want   string
		wantOK bool
	}{
		{"nested", "data.url", "https://cdn.example.com/a.mp4", true},
		{"punctuated key and array index", "loaderData.video_(id)/page.videoInfoRes.item_list.0.video.play_addr.url_list.0", "https://v.example.com/play", true},
		{"non-string leaf", "data.count", "", false},
		{"object leaf", "data", "", false},
		{"missing", "data.nope", "", false},
		{"blank", "  ", "", false},
		{"empty segments ignored", ".data..url.", "https://cdn.example.com/a.mp4", true},
		{"empty string leaf", "videoUrl", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := String([]byte(sample), tt.path)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("String(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFirstPrefersOverrideAndSkipsBlank(t *testing.T) {
	got, ok := First([]byte(sample), "result.text", "data.url")
	if !ok || got != "你好" {
		t.Fatalf("override: got %q, %v", got, ok)
	}
	got, ok = First([]byte(sample), "missing.path", "videoUrl", "data.url")
	if !ok || got != "https://cdn.example.com/a.mp4" {
		t.Fatalf("candidates: got %q, %v", got, ok)
	}
	if _, ok := First([]byte(`{}`), "", "a", "b"); ok {
		t.Fatal("expected no match on empty document")
	}
	if _, ok := First([]byte(`not json`), "", "a"); ok {
		t.Fatal("expected no match on invalid document")
	}
}

func TestIntAndValid(t *testing.T) {
	if got, ok := Int([]byte(sample), "data.count"); !ok || got != 3 {
		t.Fatalf("Int(data.count) = %d, %v", got, ok)
	}
	if _, ok := Int([]byte(sample), "data.url"); ok {
		t.Fatal("expected string leaf to be rejected")
	}
	if !Valid([]byte(sample)) || Valid([]byte(`{"a":`)) {
		t.Fatal("Valid misclassified documents")
	}
}
