package chart

import "errors"

// Sentinel kinds for chart errors.
var (
	ErrUnknownKind = errors.New("unknown chart kind")
	ErrRender      = errors.New("render chart")
)
