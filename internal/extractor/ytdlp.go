// Package extractor wraps the external yt-dlp tool. It is the only component
// that talks to source platforms; everything it produces lands in a local
// scratch directory that the job manager owns.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/you-humble/videovault/internal/domain"
	"github.com/you-humble/videovault/internal/platform"

	"github.com/lrstanley/go-ytdlp"
)

const progressInterval = 500 * time.Millisecond

// artifactExts are the container extensions a finished download may have.
var artifactExts = map[string]bool{
	".mp4": true, ".webm": true, ".mkv": true, ".mp3": true, ".m4a": true,
}

type FetchRequest struct {
	URL     string
	Format  string
	Quality string
	DestDir string
}

type FetchResult struct {
	FilePath string
	Title    string
	FileSize int64
}

type Invoker struct{}

func New() *Invoker {
	return &Invoker{}
}

// probeInfo mirrors the subset of yt-dlp -J output the service reports.
type probeInfo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	Uploader    string  `json:"uploader"`
	UploadDate  string  `json:"upload_date"`
	ViewCount   int64   `json:"view_count"`
	Thumbnail   string  `json:"thumbnail"`
	Formats     []struct {
		FormatID   string  `json:"format_id"`
		Ext        string  `json:"ext"`
		FormatNote string  `json:"format_note"`
		FileSize   int64   `json:"filesize"`
		Height     int     `json:"height"`
		Width      int     `json:"width"`
		VCodec     string  `json:"vcodec"`
		ACodec     string  `json:"acodec"`
		TBR        float64 `json:"tbr"`
	} `json:"formats"`
}

// Probe extracts video metadata without downloading anything.
func (iv *Invoker) Probe(ctx context.Context, url string) (domain.VideoInfo, error) {
	dl := ytdlp.New().
		SkipDownload().
		DumpSingleJSON().
		NoPlaylist().
		NoWarnings()

	res, err := dl.Run(ctx, url)
	if err != nil {
		return domain.VideoInfo{}, fmt.Errorf("probe %s: %s", url, toolError(err))
	}

	var info probeInfo
	if err := json.Unmarshal([]byte(res.Stdout), &info); err != nil {
		return domain.VideoInfo{}, fmt.Errorf("parse probe output: %w", err)
	}

	out := domain.VideoInfo{
		ID:          info.ID,
		Title:       info.Title,
		Description: info.Description,
		Duration:    int64(info.Duration),
		Uploader:    info.Uploader,
		UploadDate:  info.UploadDate,
		ViewCount:   info.ViewCount,
		Thumbnail:   info.Thumbnail,
		Platform:    platform.Detect(url).Name,
	}
	if out.ID == "" {
		out.ID = "unknown"
	}
	if out.Title == "" {
		out.Title = "Unknown Title"
	}

	for _, f := range info.Formats {
		if !artifactExts["."+f.Ext] {
			continue
		}
		out.Formats = append(out.Formats, domain.VideoFormat{
			FormatID: f.FormatID,
			Ext:      f.Ext,
			Quality:  f.FormatNote,
			FileSize: f.FileSize,
			Height:   f.Height,
			Width:    f.Width,
			VCodec:   f.VCodec,
			ACodec:   f.ACodec,
		})
	}

	return out, nil
}

// Fetch downloads one video into req.DestDir, reporting byte-level progress
// as a 0-99 percentage. The final hundred belongs to the caller: it is only
// set once the artifact has been persisted.
func (iv *Invoker) Fetch(ctx context.Context, req FetchRequest, onProgress func(percent int)) (FetchResult, error) {
	dl := ytdlp.New().
		NoPlaylist().
		NoWarnings().
		RestrictFilenames().
		ForceOverwrites().
		Format(FormatSelector(req.Format, req.Quality)).
		Output(filepath.Join(req.DestDir, "%(title)s.%(ext)s"))

	if req.Format == "mp3" {
		dl = dl.ExtractAudio().AudioFormat("mp3").AudioQuality("192")
	}

	if onProgress != nil {
		dl.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			if update.TotalBytes == 0 {
				return
			}
			pct := int(float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100)
			if pct > 99 {
				pct = 99
			}
			onProgress(pct)
		})
	}

	result, err := dl.Run(ctx, req.URL)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return FetchResult{}, fmt.Errorf("extraction timed out")
		}
		return FetchResult{}, fmt.Errorf("%s", toolError(err))
	}

	filePath, err := findArtifact(req.DestDir)
	if err != nil {
		return FetchResult{}, err
	}

	info, err := os.Stat(filePath)
	if err != nil || info.Size() == 0 {
		return FetchResult{}, fmt.Errorf("downloaded file is empty")
	}

	out := FetchResult{
		FilePath: filePath,
		FileSize: info.Size(),
		Title:    titleFromResult(result, filePath),
	}
	return out, nil
}

// findArtifact locates the downloaded media file in the scratch directory,
// skipping yt-dlp side files like .info.json fragments.
func findArtifact(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read scratch dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if artifactExts[strings.ToLower(filepath.Ext(e.Name()))] {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("downloaded file not found")
}

func titleFromResult(result *ytdlp.Result, filePath string) string {
	if result != nil {
		if info, err := result.GetExtractedInfo(); err == nil && len(info) > 0 && info[0].Title != nil && *info[0].Title != "" {
			return *info[0].Title
		}
	}

	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// toolError keeps tool output readable for the job record without leaking
// local paths.
func toolError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Unsupported URL"):
		return "the extraction tool does not support this URL"
	case strings.Contains(msg, "Video unavailable"):
		return "video is unavailable or has been removed"
	case strings.Contains(msg, "no space left"):
		return "disk space exhausted, cannot complete download"
	case strings.Contains(msg, "HTTP Error 403"):
		return "access to this video is forbidden"
	case strings.Contains(msg, "HTTP Error 404"):
		return "video not found at the source"
	}
	if idx := strings.Index(msg, "ERROR:"); idx >= 0 {
		return strings.TrimSpace(msg[idx+len("ERROR:"):])
	}
	return msg
}
