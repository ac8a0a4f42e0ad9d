// Package platform classifies submitted URLs into known source platforms
// using a fixed, ordered table of host matchers.
package platform

import (
	"net/url"
	"strings"
)

type Platform struct {
	Name    string   `json:"name"`
	Formats []string `json:"supported_formats"`
}

var Unknown = Platform{Name: "Unknown"}

type rule struct {
	platform Platform
	hosts    []string
}

var rules = []rule{
	{Platform{"YouTube", []string{"mp4", "webm", "mp3"}}, []string{"youtube.com", "youtu.be", "music.youtube.com"}},
	{Platform{"TikTok", []string{"mp4", "mp3"}}, []string{"tiktok.com"}},
	{Platform{"Instagram", []string{"mp4", "mp3"}}, []string{"instagram.com"}},
	{Platform{"Twitter", []string{"mp4", "mp3"}}, []string{"twitter.com", "x.com"}},
	{Platform{"Vimeo", []string{"mp4", "mp3"}}, []string{"vimeo.com"}},
	{Platform{"Facebook", []string{"mp4", "mp3"}}, []string{"facebook.com", "fb.watch"}},
	{Platform{"Twitch", []string{"mp4", "mp3"}}, []string{"twitch.tv"}},
	{Platform{"Dailymotion", []string{"mp4", "mp3"}}, []string{"dailymotion.com", "dai.ly"}},
	{Platform{"SoundCloud", []string{"mp3"}}, []string{"soundcloud.com"}},
	{Platform{"Reddit", []string{"mp4", "mp3"}}, []string{"reddit.com", "redd.it"}},
}

// Detect maps a URL to its source platform. It returns Unknown for empty,
// malformed or unrecognized URLs.
func Detect(rawURL string) Platform {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Unknown
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Unknown
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Unknown
	}

	for _, r := range rules {
		for _, h := range r.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return r.platform
			}
		}
	}
	return Unknown
}

// Supported returns the full platform roster in rule order.
func Supported() []Platform {
	out := make([]Platform, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.platform)
	}
	return out
}

// IsUnknown reports whether no detection rule matched.
func (p Platform) IsUnknown() bool {
	return p.Name == Unknown.Name
}

// SupportsFormat reports whether the platform can produce the given format.
func (p Platform) SupportsFormat(format string) bool {
	for _, f := range p.Formats {
		if f == format {
			return true
		}
	}
	return false
}
