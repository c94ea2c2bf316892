package fetch

import "fmt"

type Media int

const (
	Video Media = iota
	Audio
)

func (m Media) String() string {
	if m == Audio {
		return "audio"
	}
	return "video"
}

// Mode selects how sources are interpreted.
type Mode int

const (
	// Single downloads each source as one item, ignoring playlists.
	Single Mode = iota
	// Playlist expands each source as a playlist.
	Playlist
	// List hands all sources to a single yt-dlp run as a batch file.
	List
)

func (m Mode) String() string {
	switch m {
	case Playlist:
		return "playlist"
	case List:
		return "list"
	default:
		return "single"
	}
}

const (
	singleTemplate   = "%(title)s.%(ext)s"
	playlistTemplate = "%(playlist_index)s-%(title)s.%(ext)s"
	batchFile        = ".sources"
)

// Args returns the yt-dlp arguments for media and mode, without the output
// directory and without sources. Final file paths are printed one per line.
func Args(media Media, mode Mode) []string {
	args := []string{
		"--no-simulate",
		"--no-warnings",
		"--no-progress",
		"--continue",
		"--print", "after_move:filepath",
	}
	switch media {
	case Audio:
		args = append(args, "-f", "bestaudio/best", "-x", "--audio-format", "mp3", "--audio-quality", "0")
	default:
		args = append(args, "-f", "bestvideo+bestaudio/best")
	}
	if mode == Playlist {
		args = append(args, "-o", playlistTemplate, "--yes-playlist")
	} else {
		args = append(args, "-o", singleTemplate, "--no-playlist")
	}
	return args
}

func describe(media Media, mode Mode) string {
	if mode == Single {
		return media.String()
	}
	return fmt.Sprintf("%s %s", media, mode)
}
