package snapshot

import (
	"regexp"
	"strings"
	"time"

	"minisite/model"
)

// ProjectsPrefix is the root of every per-project object.
const ProjectsPrefix = "storage/projects/"

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateProjectID rejects ids that are empty or unsafe to embed in an object key.
func ValidateProjectID(projectID string) error {
	if !projectIDPattern.MatchString(projectID) {
		return ErrInvalidRequest.New("invalid projectId %q", projectID)
	}
	return nil
}

// ReturnsPrefix is the key prefix holding a project's snapshots and pointer.
func ReturnsPrefix(projectID string) string {
	return ProjectsPrefix + projectID + "/producer_returns/"
}

// SnapshotKey names the snapshot written at t. Colons and dots are replaced for key safety.
func SnapshotKey(projectID string, t time.Time) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(model.FormatTime(t))
	return ReturnsPrefix(projectID) + "snapshots/" + ts + ".json"
}

// LatestKey names the project's latest pointer.
func LatestKey(projectID string) string {
	return ReturnsPrefix(projectID) + "latest.json"
}

// IsSnapshotKey reports whether key has the shape of a snapshot key.
func IsSnapshotKey(key string) bool {
	if !strings.HasPrefix(key, ProjectsPrefix) || !strings.HasSuffix(key, ".json") {
		return false
	}
	rest := strings.TrimPrefix(key, ProjectsPrefix)
	projectID, tail, ok := strings.Cut(rest, "/")
	if !ok || ValidateProjectID(projectID) != nil {
		return false
	}
	return strings.HasPrefix(tail, "producer_returns/snapshots/") && !strings.Contains(tail, "..")
}
