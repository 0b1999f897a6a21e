// Package transcode normalizes paddock footage into an analyzable format
// before it is handed to the video AI service.
//
// Normalization is best effort: when the transcode service is missing or
// fails, the original reference is used as-is and downstream degradation
// handles any unreadable footage.
package transcode

import (
	"context"
	"encoding/json"
	"path"
	"strings"

	"github.com/gaitlab/paddock/internal/adapters/gateway"
	"github.com/gaitlab/paddock/pkg/logger"
)

// reply is the transcode service response shape.
type reply struct {
	OK       bool   `json:"ok"`
	VideoURL string `json:"video_url"`
	Detail   string `json:"detail"`
}

// Normalizer converts footage references to a web-playable format through
// the remote transcode service.
type Normalizer struct {
	base string
	gw   *gateway.Client
	log  logger.Logger
}

// New creates a Normalizer. An empty baseURL disables transcoding and
// Normalize becomes a passthrough.
func New(baseURL string, gw *gateway.Client) *Normalizer {
	return &Normalizer{
		base: baseURL,
		gw:   gw,
		log:  logger.Named("transcode"),
	}
}

// needsTranscode reports whether the container format is one the analyzer
// cannot ingest directly.
func needsTranscode(ref string) bool {
	switch strings.ToLower(path.Ext(ref)) {
	case ".mov", ".m4v":
		return true
	default:
		return false
	}
}

// Normalize returns the footage reference to analyze. The original ref is
// returned unchanged when no transcode is needed or when the service cannot
// deliver a converted copy.
func (n *Normalizer) Normalize(ctx context.Context, videoURL string) string {
	if n.base == "" || videoURL == "" || !needsTranscode(videoURL) {
		return videoURL
	}

	res := n.gw.PostJSON(ctx, n.base+"/transcode", map[string]string{"video_url": videoURL})
	if !res.IsOK() {
		n.log.Warn(ctx, "transcode unavailable, using original footage",
			logger.String("outcome", string(res.Outcome)),
			logger.String("detail", res.Detail),
		)
		return videoURL
	}

	var r reply
	if err := json.Unmarshal(res.Body, &r); err != nil || !r.OK || r.VideoURL == "" {
		n.log.Warn(ctx, "transcode reply unusable, using original footage",
			logger.String("detail", r.Detail),
		)
		return videoURL
	}
	return r.VideoURL
}
