package transcript

import (
	"regexp"
	"strings"
)

var (
	schemeURLPattern  = regexp.MustCompile(`(?i)https?://[^\s]+`)
	bareDomainPattern = regexp.MustCompile(`(?i)(?:v\.douyin\.com|www\.douyin\.com|douyin\.com|iesdouyin\.com)/[^\s]+`)
	trailingPunct     = regexp.MustCompile(`[)\]}'"，。！？；：、,.!?;:]+$`)
	mediaExtPattern   = regexp.MustCompile(`(?i)\.(mp3|wav|m4a|aac|ogg|flac|mp4|mov|mkv)(\?|$)`)
	playableAPIURL    = regexp.MustCompile(`(?i)aweme\.snssdk\.com/aweme/v1/play`)
)

var (
	mediaHostMarkers = []string{"douyinvod.com/", "bytecdn.cn/", "volces.com/", "media/"}
	sharePageMarkers = []string{"v.douyin.com/", "iesdouyin.com/share/", "douyin.com/share/", "douyin.com/video/"}
)

// ExtractShareURL finds the first link in pasted share text. A scheme-less
// Douyin domain is accepted and given an https scheme. Trailing punctuation,
// ASCII or CJK, is stripped.
func ExtractShareURL(text string) (string, bool) {
	if match := schemeURLPattern.FindString(text); match != "" {
		if cleaned := sanitizeURL(match); cleaned != "" {
			return cleaned, true
		}
	}
	if match := bareDomainPattern.FindString(text); match != "" {
		if cleaned := sanitizeURL(match); cleaned != "" {
			return "https://" + cleaned, true
		}
	}
	return "", false
}

// IsDirectMediaURL reports whether u already points at downloadable media.
func IsDirectMediaURL(u string) bool {
	lower := strings.ToLower(u)
	if mediaExtPattern.MatchString(lower) {
		return true
	}
	return containsAny(lower, mediaHostMarkers)
}

// IsSharePageURL reports whether u looks like a Douyin share or video page.
func IsSharePageURL(u string) bool {
	return containsAny(strings.ToLower(u), sharePageMarkers)
}

func isPlayableAPIURL(u string) bool {
	return playableAPIURL.MatchString(u)
}

func sanitizeURL(s string) string {
	return trailingPunct.ReplaceAllString(strings.TrimSpace(s), "")
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
