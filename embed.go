package inkwell

import "embed"

// EmbeddedAssets contains the stylesheet and scripts shipped with the
// binary: style.css and like.js.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
