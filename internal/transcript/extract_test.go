package transcript_test

import (
	"testing"

	"copyengine/internal/transcript"
)

func TestExtractShareURL(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"https link", "复制此链接 https://v.douyin.com/abc123/ 打开抖音", "https://v.douyin.com/abc123/", true},
		{"bare douyin domain", "复制打开抖音 v.douyin.com/AbCdEfG/", "https://v.douyin.com/AbCdEfG/", true},
		{"trailing cjk punctuation", "链接：https://v.douyin.com/xyz123/，", "https://v.douyin.com/xyz123/", true},
		{"trailing ascii punctuation", "see (https://example.com/a.mp4).", "https://example.com/a.mp4", true},
		{"uppercase scheme", "HTTPS://V.DOUYIN.COM/ABC/ 看看", "HTTPS://V.DOUYIN.COM/ABC/", true},
		{"iesdouyin domain", "打开 iesdouyin.com/share/video/123/ 即可", "https://iesdouyin.com/share/video/123/", true},
		{"no link", "这里没有任何链接内容", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := transcript.ExtractShareURL(tt.text)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("ExtractShareURL(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIsDirectMediaURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://cdn.example.com/clip.MP4", true},
		{"https://cdn.example.com/audio.m4a?sig=1", true},
		{"https://v26.douyinvod.com/abc/", true},
		{"https://p3.bytecdn.cn/obj", true},
		{"https://tos.volces.com/bucket", true},
		{"https://example.com/media/123", true},
		{"https://v.douyin.com/abc/", false},
		{"https://example.com/mp4guide", false},
	}
	for _, tt := range tests {
		if got := transcript.IsDirectMediaURL(tt.url); got != tt.want {
			t.Fatalf("IsDirectMediaURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestIsSharePageURL(t *testing.T) {
	for _, u := range []string{
		"https://v.douyin.com/abc/",
		"https://www.iesdouyin.com/share/video/1/",
		"https://www.douyin.com/video/7300000000",
	} {
		if !transcript.IsSharePageURL(u) {
			t.Fatalf("expected %q to be a share page", u)
		}
	}
	if transcript.IsSharePageURL("https://www.douyin.com/user/abc") {
		t.Fatal("user page is not a share page")
	}
}

func TestVideoURLFromRouterData(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "video page play_addr",
			doc:  `{"loaderData":{"video_(id)/page":{"videoInfoRes":{"item_list":[{"video":{"play_addr":{"url_list":["https://aweme.snssdk.com/aweme/v1/playwm/?video_id=abc123"]}}}]}}}}`,
			want: "https://aweme.snssdk.com/aweme/v1/playwm/?video_id=abc123",
		},
		{
			name: "bit rate fallback",
			doc:  `{"loaderData":{"video_(id)/page":{"videoInfoRes":{"item_list":[{"video":{"bit_rate":[{"play_addr":{"url_list":["https://v.example.com/br.mp4"]}}]}}]}}}}`,
			want: "https://v.example.com/br.mp4",
		},
		{
			name: "video layout download_addr",
			doc:  `{"loaderData":{"video_layout":{"videoInfoRes":{"item_list":[{"video":{"download_addr":{"url_list":["https://aweme.snssdk.com/aweme/v1/play/?video_id=def456"]}}}]}}}}`,
			want: "https://aweme.snssdk.com/aweme/v1/play/?video_id=def456",
		},
		{
			name: "top level videoUrl",
			doc:  `{"videoUrl":"https://v.example.com/top.mp4"}`,
			want: "https://v.example.com/top.mp4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := transcript.VideoURLFromRouterData([]byte(tt.doc))
			if !ok || got != tt.want {
				t.Fatalf("got %q, %v; want %q", got, ok, tt.want)
			}
		})
	}
	if _, ok := transcript.VideoURLFromRouterData([]byte(`{"loaderData":{}}`)); ok {
		t.Fatal("expected no url for empty router data")
	}
}
