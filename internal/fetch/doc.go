// Package fetch downloads media with yt-dlp, either as a local process or
// inside a throwaway container. Every fetch writes into its own temporary
// directory, which is removed again when the fetch fails.
package fetch
