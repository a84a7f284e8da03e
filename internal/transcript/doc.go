// Package transcript turns pasted short-video share text into transcript text.
//
// A Pipeline extracts the share link, resolves it to a downloadable media URL
// (direct links, an external resolver service, then the built-in share-page
// reader) and hands the media to a speech recognition endpoint. Each task runs
// in the background and records its progress on a jobs.Store so callers can
// poll by task id.
package transcript
