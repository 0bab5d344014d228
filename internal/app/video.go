package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"lesson-quiz-service/internal/domain"
)

// Videos resolves playable urls and records what publishing backends report.
type Videos struct {
	store VideoStore
	log   *zap.Logger
}

func NewVideos(store VideoStore, log *zap.Logger) *Videos {
	if log == nil {
		log = zap.NewNop()
	}
	return &Videos{store: store, log: log}
}

var backendPreference = []domain.VideoBackend{domain.BackendYouTube, domain.BackendMux, domain.BackendDirect}

// ResolveVideoURL prefers YouTube, then Mux, then a direct file url.
func (v *Videos) ResolveVideoURL(ctx context.Context, contentID string) (domain.VideoLink, error) {
	asset, err := v.store.GetVideoAsset(ctx, contentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.VideoLink{}, fmt.Errorf("content %s: %w", contentID, domain.ErrVideoNotFound)
		}
		return domain.VideoLink{}, err
	}
	for _, backend := range backendPreference {
		if u := asset.URLFor(backend); u != "" {
			return domain.VideoLink{URL: u, Backend: backend}, nil
		}
	}
	return domain.VideoLink{}, fmt.Errorf("content %s has no playable url: %w", contentID, domain.ErrVideoNotFound)
}

// SetYouTubeVideo stores a YouTube url for contentID. Either argument may be empty; the
// missing one is derived from the other.
func (v *Videos) SetYouTubeVideo(ctx context.Context, contentID, rawURL, videoID string) (domain.VideoAsset, error) {
	if contentID == "" {
		return domain.VideoAsset{}, fmt.Errorf("%w: contentId is required", domain.ErrInvalidInput)
	}
	if rawURL == "" && videoID == "" {
		return domain.VideoAsset{}, fmt.Errorf("%w: youtubeUrl or youtubeVideoId is required", domain.ErrInvalidInput)
	}
	if videoID == "" {
		videoID = ParseYouTubeID(rawURL)
	}
	if rawURL == "" {
		rawURL = "https://www.youtube.com/watch?v=" + videoID
	}

	asset, err := v.store.GetVideoAsset(ctx, contentID)
	if err != nil {
		return domain.VideoAsset{}, err
	}
	asset.YouTubeURL = rawURL
	asset.YouTubeVideoID = videoID
	asset.YouTubeStatus = domain.AssetReady
	if err := domain.Validator().Struct(asset); err != nil {
		return domain.VideoAsset{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := v.store.SaveVideoAsset(ctx, asset); err != nil {
		return domain.VideoAsset{}, err
	}
	v.log.Info("youtube video updated", zap.String("content_id", contentID), zap.String("video_id", videoID))
	return asset, nil
}

// MuxPlayback is one playback id of a Mux asset.
type MuxPlayback struct {
	ID     string `json:"id"`
	Policy string `json:"policy"`
}

// MuxAsset is the data of a Mux video.asset.* event.
type MuxAsset struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	PlaybackIDs []MuxPlayback `json:"playback_ids"`
}

// MuxAssetReady records the stream url of a ready Mux asset, preferring a public playback id.
func (v *Videos) MuxAssetReady(ctx context.Context, event MuxAsset) (domain.VideoAsset, error) {
	if event.ID == "" {
		return domain.VideoAsset{}, fmt.Errorf("%w: missing mux asset id", domain.ErrInvalidInput)
	}
	playback := ""
	for _, p := range event.PlaybackIDs {
		if p.Policy == "public" {
			playback = p.ID
			break
		}
	}
	if playback == "" && len(event.PlaybackIDs) > 0 {
		playback = event.PlaybackIDs[0].ID
	}
	if playback == "" {
		return domain.VideoAsset{}, fmt.Errorf("%w: no playback id for asset %s", domain.ErrInvalidInput, event.ID)
	}

	asset, err := v.store.FindVideoAssetByMuxID(ctx, event.ID)
	if err != nil {
		return domain.VideoAsset{}, err
	}
	asset.MuxPlaybackID = playback
	asset.MuxURL = "https://stream.mux.com/" + playback + ".m3u8"
	asset.MuxStatus = domain.AssetReady
	if event.Status != "" && event.Status != "ready" {
		asset.MuxStatus = domain.AssetError
	}
	if err := v.store.SaveVideoAsset(ctx, asset); err != nil {
		return domain.VideoAsset{}, err
	}
	v.log.Info("mux asset ready",
		zap.String("content_id", asset.ContentID),
		zap.String("mux_asset_id", event.ID),
		zap.String("playback_id", playback))
	return asset, nil
}

var youTubePath = regexp.MustCompile(`^/(?:embed|shorts|live)/([^/?#&]+)`)

// ParseYouTubeID extracts the video id from watch, youtu.be, embed and shorts urls.
// It returns "" when rawURL is not a recognisable YouTube link.
func ParseYouTubeID(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.TrimPrefix(host, "m.")
	switch host {
	case "youtu.be":
		return strings.Trim(u.Path, "/")
	case "youtube.com", "youtube-nocookie.com":
		if id := u.Query().Get("v"); id != "" {
			return id
		}
		if m := youTubePath.FindStringSubmatch(u.Path); m != nil {
			return m[1]
		}
	}
	return ""
}
