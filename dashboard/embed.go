// Package dashboard provides the embedded web UI assets for fenetre.
//
// The dashboard HTML, CSS and JavaScript are included at compile time so the
// binary needs no external asset files. The server package serves them at "/".
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - course list, lockbox settings and error log, inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
