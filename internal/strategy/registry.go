// Package strategy maps stable strategy identifiers to fetch and save
// functions. Lookups are pure; the concrete functions are registered at
// startup.
package strategy

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// FetchFunc downloads sources and returns the local artifact paths in order.
type FetchFunc func(ctx context.Context, sources []string) ([]string, error)

// SaveFunc persists paths under catalogue. On success the local copies it
// persisted have been removed.
type SaveFunc func(ctx context.Context, paths []string, catalogue string) error

const (
	AudioHighest         = "audio_highest"
	AudioPlaylistHighest = "audio_playlist_highest"
	AudioListHighest     = "audio_list_highest"
	VideoHighest         = "video_highest"
	VideoPlaylistHighest = "video_playlist_highest"
	VideoListHighest     = "video_list_highest"

	S3Save              = "s3_save"
	LocalFilesystemSave = "LOCAL_FILESYSTEM_SAVE"

	DefaultDownload = VideoHighest
	DefaultSave     = LocalFilesystemSave
)

// Info describes a registered strategy for listings.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type fetchEntry struct {
	desc string
	fn   FetchFunc
}

type saveEntry struct {
	desc string
	fn   SaveFunc
}

type Registry struct {
	mu        sync.RWMutex
	downloads map[string]fetchEntry
	saves     map[string]saveEntry
}

func New() *Registry {
	return &Registry{
		downloads: map[string]fetchEntry{},
		saves:     map[string]saveEntry{},
	}
}

// RegisterDownload adds or replaces a download strategy.
func (r *Registry) RegisterDownload(name, description string, fn FetchFunc) {
	if fn == nil || strings.TrimSpace(name) == "" {
		return
	}
	r.mu.Lock()
	r.downloads[name] = fetchEntry{desc: description, fn: fn}
	r.mu.Unlock()
}

// RegisterSave adds or replaces a save strategy.
func (r *Registry) RegisterSave(name, description string, fn SaveFunc) {
	if fn == nil || strings.TrimSpace(name) == "" {
		return
	}
	r.mu.Lock()
	r.saves[name] = saveEntry{desc: description, fn: fn}
	r.mu.Unlock()
}

func (r *Registry) LookupDownload(name string) (FetchFunc, error) {
	r.mu.RLock()
	e, ok := r.downloads[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownStrategyError{Kind: KindDownload, Name: name}
	}
	return e.fn, nil
}

func (r *Registry) LookupSave(name string) (SaveFunc, error) {
	r.mu.RLock()
	e, ok := r.saves[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownStrategyError{Kind: KindSave, Name: name}
	}
	return e.fn, nil
}

// Validate reports the first unknown name of the pair.
func (r *Registry) Validate(download, save string) error {
	if _, err := r.LookupDownload(download); err != nil {
		return err
	}
	_, err := r.LookupSave(save)
	return err
}

func (r *Registry) Downloads() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.downloads))
	for name, e := range r.downloads {
		out = append(out, Info{Name: name, Description: e.desc})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Saves() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.saves))
	for name, e := range r.saves {
		out = append(out, Info{Name: name, Description: e.desc})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
