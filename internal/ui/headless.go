package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/drgolem/chipplay/internal/app"
	"github.com/drgolem/chipplay/internal/soundengine"
)

// RunHeadless drives the application without a terminal UI. It logs the
// playing track on every change and a status line every logEvery, and
// returns once playback has stopped or ctx is done.
func RunHeadless(ctx context.Context, a *app.App, player Player, logEvery time.Duration) error {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	var (
		lastTrack string
		lastLog   time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		a.Tick()
		state := player.State()
		if state == soundengine.Finished || state == soundengine.Error {
			slog.Info("Playback finished", "state", state, "status", a.Status())
			return nil
		}

		meta := player.MetaData()
		status := player.GetPlaybackStatus()
		track := fmt.Sprintf("%s#%d", status.FileName, meta.TrackInformation.TrackNumber)
		if track != lastTrack {
			lastTrack = track
			slog.Info("Now playing",
				"file", status.FileName,
				"decoder", status.Decoder,
				"title", meta.DisplayTitle(),
				"author", meta.TrackInformation.Author,
				"track", meta.TrackInformation.TrackNumber,
				"tracks", meta.DiskInformation.TrackCount)
		}

		if logEvery > 0 && time.Since(lastLog) >= logEvery {
			lastLog = time.Now()
			slog.Debug("Playback status",
				"state", state,
				"position", FormatSeconds(max(meta.TrackInformation.Position, 0)),
				"played_samples", status.PlayedSamples,
				"elapsed", status.ElapsedTime.Round(time.Second))
		}
	}
}
