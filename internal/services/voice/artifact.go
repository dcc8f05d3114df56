package voice

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// safeNameReplacer strips anything that is not filesystem-safe out of
// identifiers embedded in artifact names
var safeNameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "-", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_", ".", "_",
)

// artifactName builds a collision-resistant, filesystem-safe file name for
// one alert artifact: timestamp, camera, optional track, short uuid suffix.
func artifactName(cameraID string, trackID *int64, ext string) string {
	parts := []string{
		"alert",
		time.Now().UTC().Format("20060102T150405"),
		safeNameReplacer.Replace(cameraID),
	}
	if trackID != nil {
		parts = append(parts, "t"+strconv.FormatInt(*trackID, 10))
	}
	parts = append(parts, uuid.NewString()[:8])
	return strings.Join(parts, "_") + ext
}
