// Package templates embeds the HTML templates served by internal/web.
package templates

import "embed"

//go:embed base.html pages partials
var FS embed.FS
