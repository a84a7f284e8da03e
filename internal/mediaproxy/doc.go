// Package mediaproxy relays resolved media through short-lived public URLs.
//
// Share-link resolution often yields CDN addresses that only answer requests
// carrying browser headers. A Relay records such a source under a random token
// and streams it back to whoever fetches /api/media-proxy/{token}, which lets a
// remote speech service download the media through this daemon.
package mediaproxy
