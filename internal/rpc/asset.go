package rpc

import (
	"net/url"
	"strings"
)

const (
	assetPrefix     = "asset://"
	assetHostPrefix = "asset://localhost/"
)

// AssetURL rewrites a file-system path into the UI's asset:// scheme.
// Values already in the scheme are returned unchanged.
func AssetURL(path string) string {
	if strings.HasPrefix(path, assetPrefix) {
		return path
	}
	return assetHostPrefix + strings.ReplaceAll(path, `\`, "/")
}

// StripAsset turns an asset:// URL back into a file-system path. Plain
// paths pass through. Percent-encoded segments are decoded when valid.
func StripAsset(p string) string {
	var rest string
	switch {
	case strings.HasPrefix(p, assetHostPrefix):
		rest = strings.TrimPrefix(p, assetHostPrefix)
	case strings.HasPrefix(p, assetPrefix):
		rest = strings.TrimPrefix(p, assetPrefix)
	default:
		return p
	}
	if strings.Contains(rest, "%") {
		if dec, err := url.PathUnescape(rest); err == nil {
			rest = dec
		}
	}
	return rest
}
