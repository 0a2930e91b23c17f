// Package static embeds the assets served next to the API. The BBB client
// loads live/bbb.css through the userdata-bbb_custom_style_url join
// parameter.
package static

import "embed"

// AssetsFS holds the files under live/.
//
//go:embed live
var AssetsFS embed.FS
