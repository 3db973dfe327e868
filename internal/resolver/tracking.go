package resolver

import (
	"net/url"
	"strings"
)

var trackingParams = map[string]bool{
	"tag": true, "ref": true, "ref_": true, "psc": true, "smid": true, "th": true,
	"linkcode": true, "linkid": true, "crid": true, "sprefix": true, "qid": true,
	"content-id": true, "boutiqueid": true, "merchantid": true, "sav": true,
	"ascsubtag": true, "dib": true, "dib_tag": true, "sr": true,
	"gclid": true, "fbclid": true, "adgrpid": true, "hvadid": true,
}

var trackingPrefixes = []string{"pf_rd_", "pd_rd_", "utm_", "hv"}

// StripTracking returns a copy of u without tracking query parameters,
// fragments or an Amazon "/ref=..." path segment.
func StripTracking(u *url.URL) *url.URL {
	out := *u
	out.Fragment = ""
	out.RawFragment = ""

	if i := strings.Index(out.Path, "/ref="); i >= 0 {
		out.Path = out.Path[:i]
		out.RawPath = ""
	}

	q := out.Query()
	for key := range q {
		if isTracking(key) {
			q.Del(key)
		}
	}
	out.RawQuery = q.Encode()
	return &out
}

func isTracking(key string) bool {
	k := strings.ToLower(key)
	if trackingParams[k] {
		return true
	}
	for _, p := range trackingPrefixes {
		if strings.HasPrefix(k, p) {
			return true
		}
	}
	return false
}
