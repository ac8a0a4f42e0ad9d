package extractor

// Allow-lists for the request parameters. Anything outside these is rejected
// before a job is created.
var (
	Formats   = []string{"mp4", "webm", "mp3"}
	Qualities = []string{"1080p", "720p", "480p", "360p", "best", "worst"}
)

var qualitySelectors = map[string]string{
	"1080p": "best[height<=1080]",
	"720p":  "best[height<=720]",
	"480p":  "best[height<=480]",
	"360p":  "best[height<=360]",
	"best":  "best",
	"worst": "worst",
}

// FormatSelector builds the yt-dlp -f expression for a format/quality pair.
// Audio-only downloads always take the best audio stream; the mp3 container
// comes from post-processing, not stream selection.
func FormatSelector(format, quality string) string {
	if format == "mp3" {
		return "bestaudio/best"
	}
	if sel, ok := qualitySelectors[quality]; ok {
		return sel
	}
	return "best[height<=720]"
}

func SupportedFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

func SupportedQuality(quality string) bool {
	for _, q := range Qualities {
		if q == quality {
			return true
		}
	}
	return false
}
