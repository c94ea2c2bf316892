package strategy

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindDownload Kind = "download"
	KindSave     Kind = "save"
)

type UnknownStrategyError struct {
	Kind Kind
	Name string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("Unknown %s strategy: %s", e.Kind, e.Name)
}

// FetchError is a failed or empty download. Its message is the reason as
// reported by the fetcher.
type FetchError struct {
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "Unknown error during download."
}

func (e *FetchError) Unwrap() error { return e.Err }

// SaveError carries one reason per file that could not be persisted.
type SaveError struct {
	Reasons []string
	Err     error
}

func (e *SaveError) Error() string {
	if len(e.Reasons) > 0 {
		return strings.Join(e.Reasons, "; ")
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "Unknown error during saving."
}

func (e *SaveError) Unwrap() error { return e.Err }
