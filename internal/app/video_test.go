package app_test

import (
	"context"
	"errors"
	"testing"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/domain"
	"lesson-quiz-service/internal/fixtures"
)

func TestResolveVideoURLPrefersYouTubeThenMux(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	videos := app.NewVideos(h.store, nil)

	link, err := videos.ResolveVideoURL(ctx, fixtures.DemoContentID)
	if err != nil {
		t.Fatalf("resolve demo: %v", err)
	}
	if link.Backend != domain.BackendYouTube {
		t.Fatalf("expected youtube, got %+v", link)
	}

	link, err = videos.ResolveVideoURL(ctx, fixtures.LetterContentID)
	if err != nil {
		t.Fatalf("resolve letter: %v", err)
	}
	if link.Backend != domain.BackendDirect {
		t.Fatalf("expected direct fallback, got %+v", link)
	}

	asset, _ := h.store.GetVideoAsset(ctx, fixtures.LetterContentID)
	asset.MuxAssetID = "asset-1"
	if err := h.store.SaveVideoAsset(ctx, asset); err != nil {
		t.Fatalf("save asset: %v", err)
	}
	if _, err := videos.MuxAssetReady(ctx, app.MuxAsset{
		ID:     "asset-1",
		Status: "ready",
		PlaybackIDs: []app.MuxPlayback{
			{ID: "signed-id", Policy: "signed"},
			{ID: "public-id", Policy: "public"},
		},
	}); err != nil {
		t.Fatalf("mux ready: %v", err)
	}
	link, err = videos.ResolveVideoURL(ctx, fixtures.LetterContentID)
	if err != nil {
		t.Fatalf("resolve after mux: %v", err)
	}
	if link.Backend != domain.BackendMux || link.URL != "https://stream.mux.com/public-id.m3u8" {
		t.Fatalf("expected public mux stream, got %+v", link)
	}

	if _, err := videos.ResolveVideoURL(ctx, "missing"); !errors.Is(err, domain.ErrVideoNotFound) {
		t.Fatalf("expected video not found, got %v", err)
	}
}

func TestMuxAssetReadyRejectsUnusableEvents(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	videos := app.NewVideos(h.store, nil)

	if _, err := videos.MuxAssetReady(ctx, app.MuxAsset{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing id, got %v", err)
	}
	if _, err := videos.MuxAssetReady(ctx, app.MuxAsset{ID: "asset-1"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing playback, got %v", err)
	}
	_, err := videos.MuxAssetReady(ctx, app.MuxAsset{ID: "unknown", PlaybackIDs: []app.MuxPlayback{{ID: "p"}}})
	if !errors.Is(err, domain.ErrVideoNotFound) {
		t.Fatalf("expected unknown asset to be not found, got %v", err)
	}
}

func TestSetYouTubeVideoDerivesMissingParts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	videos := app.NewVideos(h.store, nil)

	asset, err := videos.SetYouTubeVideo(ctx, fixtures.LetterContentID, "https://youtu.be/abc123XYZ", "")
	if err != nil {
		t.Fatalf("set by url: %v", err)
	}
	if asset.YouTubeVideoID != "abc123XYZ" || asset.YouTubeStatus != domain.AssetReady {
		t.Fatalf("unexpected asset %+v", asset)
	}
	if asset.DirectURL == "" {
		t.Fatalf("expected direct url to be kept")
	}

	asset, err = videos.SetYouTubeVideo(ctx, fixtures.DemoContentID, "", "zzz999")
	if err != nil {
		t.Fatalf("set by id: %v", err)
	}
	if asset.YouTubeURL != "https://www.youtube.com/watch?v=zzz999" {
		t.Fatalf("unexpected url %q", asset.YouTubeURL)
	}
	link, _ := videos.ResolveVideoURL(ctx, fixtures.DemoContentID)
	if link.URL != asset.YouTubeURL {
		t.Fatalf("expected stored url to resolve, got %+v", link)
	}

	if _, err := videos.SetYouTubeVideo(ctx, fixtures.DemoContentID, "", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := videos.SetYouTubeVideo(ctx, "missing", "", "abc"); !errors.Is(err, domain.ErrVideoNotFound) {
		t.Fatalf("expected video not found, got %v", err)
	}
}

func TestParseYouTubeID(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":          "dQw4w9WgXcQ",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=42":       "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                         "dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":            "dQw4w9WgXcQ",
		"https://youtube.com/shorts/dQw4w9WgXcQ?feature=share": "dQw4w9WgXcQ",
		" https://www.youtube-nocookie.com/embed/abc ":         "abc",
		"https://vimeo.com/12345":                              "",
		"https://www.youtube.com/":                             "",
		"not a url":                                            "",
	}
	for in, want := range cases {
		if got := app.ParseYouTubeID(in); got != want {
			t.Fatalf("ParseYouTubeID(%q) = %q, want %q", in, got, want)
		}
	}
}
