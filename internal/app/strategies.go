package app

import (
	"fmt"
	"strings"

	"mediafetch/internal/config"
	"mediafetch/internal/fetch"
	"mediafetch/internal/sink"
	"mediafetch/internal/strategy"
	logx "mediafetch/pkg/logx"
)

type downloadDef struct {
	name  string
	media fetch.Media
	mode  fetch.Mode
	desc  string
}

var downloadDefs = []downloadDef{
	{strategy.AudioHighest, fetch.Audio, fetch.Single, "best audio of each source"},
	{strategy.AudioPlaylistHighest, fetch.Audio, fetch.Playlist, "best audio of every playlist entry"},
	{strategy.AudioListHighest, fetch.Audio, fetch.List, "best audio of all sources in one batch"},
	{strategy.VideoHighest, fetch.Video, fetch.Single, "best video of each source"},
	{strategy.VideoPlaylistHighest, fetch.Video, fetch.Playlist, "best video of every playlist entry"},
	{strategy.VideoListHighest, fetch.Video, fetch.List, "best video of all sources in one batch"},
}

// newFetchRunner builds the yt-dlp runner selected by fetch.runner. The
// returned close func releases the docker client, when there is one.
func newFetchRunner(cfg *config.Config, log logx.Logger) (fetch.Runner, func() error, error) {
	switch r := strings.ToLower(strings.TrimSpace(cfg.Fetch.Runner)); r {
	case "", "exec":
		return fetch.ExecRunner{Binary: cfg.Fetch.Binary}, func() error { return nil }, nil
	case "docker":
		dr, err := fetch.NewDockerRunner(cfg.Fetch.Image, cfg.Fetch.Network, log)
		if err != nil {
			return nil, nil, fmt.Errorf("docker runner: %w", err)
		}
		return dr, dr.Close, nil
	default:
		return nil, nil, fmt.Errorf("fetch.runner: unsupported runner %q", r)
	}
}

func registerDownloads(reg *strategy.Registry, d *fetch.Downloader) {
	for _, def := range downloadDefs {
		reg.RegisterDownload(def.name, def.desc, d.Strategy(def.media, def.mode))
	}
}

// registerSaves (re)binds the sinks. Registering replaces earlier entries, so
// it is also used on config reload.
func registerSaves(reg *strategy.Registry, cfg *config.Config, log logx.Logger) {
	local := sink.NewLocal(strings.TrimSpace(cfg.Sinks.Local.Root), cfg.Sinks.CataloguePrefix, log)
	reg.RegisterSave(strategy.LocalFilesystemSave, "copy into the local destination path", local.Save)

	obj := sink.NewObjectStore(mapObjectStoreConfig(cfg), log)
	reg.RegisterSave(strategy.S3Save, "upload to an S3-compatible bucket", obj.Save)
}
