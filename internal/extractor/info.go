package extractor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

// videoInfo is the subset of yt-dlp's info JSON this service reads.
type videoInfo struct {
	ID                 string              `json:"id"`
	Title              string              `json:"title"`
	WebpageURL         string              `json:"webpage_url"`
	URL                string              `json:"url"`
	Duration           *float64            `json:"duration"`
	Thumbnail          string              `json:"thumbnail"`
	Thumbnails         []thumbnail         `json:"thumbnails"`
	Channel            string              `json:"channel"`
	Uploader           string              `json:"uploader"`
	Ext                string              `json:"ext"`
	Filename           string              `json:"filename"`
	LegacyFilename     string              `json:"_filename"`
	RequestedDownloads []requestedDownload `json:"requested_downloads"`
	Formats            []format            `json:"formats"`
	Entries            []*videoInfo        `json:"entries"`
}

type thumbnail struct {
	URL string `json:"url"`
}

type requestedDownload struct {
	Filepath string `json:"filepath"`
}

type format struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	Resolution     string   `json:"resolution"`
	Height         *float64 `json:"height"`
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
	FormatNote     string   `json:"format_note"`
	URL            string   `json:"url"`
	VCodec         string   `json:"vcodec"`
}

// parseInfo decodes the last JSON object yt-dlp printed. yt-dlp prints one
// object per line; with a single target the last line is the one we want.
func parseInfo(stdout string) (*videoInfo, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var info videoInfo
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			return nil, fmt.Errorf("decode yt-dlp JSON: %w", err)
		}
		return &info, nil
	}
	return nil, fmt.Errorf("yt-dlp printed no JSON")
}

func (v *videoInfo) thumbnailURL() string {
	if n := len(v.Thumbnails); n > 0 && v.Thumbnails[n-1].URL != "" {
		return v.Thumbnails[n-1].URL
	}
	return v.Thumbnail
}

func (v *videoInfo) channel(fallback string) string {
	return lo.CoalesceOrEmpty(v.Channel, v.Uploader, fallback)
}

func (v *videoInfo) durationSeconds() *int {
	if v.Duration == nil {
		return nil
	}
	d := int(math.Round(*v.Duration))
	return &d
}

func (v *videoInfo) summary() domain.VideoSummary {
	id := domain.VideoID(v.ID)
	return domain.VideoSummary{
		ID:        id,
		Title:     v.Title,
		URL:       domain.ShortURL(id),
		Duration:  v.durationSeconds(),
		Thumbnail: v.thumbnailURL(),
		Channel:   v.channel("Unknown"),
	}
}

func (v *videoInfo) detail() *domain.VideoDetail {
	return &domain.VideoDetail{
		ID:        domain.VideoID(v.ID),
		Title:     v.Title,
		URL:       v.WebpageURL,
		Duration:  v.durationSeconds(),
		Thumbnail: v.Thumbnail,
		Channel:   v.channel(""),
		Formats:   videoFormats(v.Formats),
	}
}

// videoFormats keeps only encodings with a stream location and a video track.
func videoFormats(formats []format) []domain.EncodingOption {
	usable := lo.Filter(formats, func(f format, _ int) bool {
		return f.URL != "" && f.VCodec != "none"
	})
	return lo.Map(usable, func(f format, _ int) domain.EncodingOption {
		return domain.EncodingOption{
			FormatID:   f.FormatID,
			Extension:  f.Ext,
			Resolution: f.resolution(),
			FileSize:   f.size(),
			Note:       f.FormatNote,
			SourceURL:  f.URL,
		}
	})
}

func (f format) resolution() string {
	if f.Resolution != "" {
		return f.Resolution
	}
	if f.Height != nil {
		return strconv.Itoa(int(*f.Height))
	}
	return "audio"
}

func (f format) size() int64 {
	if f.Filesize != nil && *f.Filesize > 0 {
		return int64(*f.Filesize)
	}
	if f.FilesizeApprox != nil && *f.FilesizeApprox > 0 {
		return int64(*f.FilesizeApprox)
	}
	return 0
}

// downloadedPath returns the file yt-dlp reported for this video, falling back
// to expanding the output template.
func (v *videoInfo) downloadedPath(template string) string {
	for _, rd := range v.RequestedDownloads {
		if rd.Filepath != "" {
			return rd.Filepath
		}
	}
	if p := lo.CoalesceOrEmpty(v.Filename, v.LegacyFilename); p != "" {
		return p
	}
	return strings.NewReplacer("%(id)s", v.ID, "%(ext)s", v.Ext).Replace(template)
}
