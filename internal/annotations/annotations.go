// Package annotations defines the annotation keys kubespresso reads and writes
// on watched resources, and the helpers used to access them.
//
// Both keys are part of the on-cluster contract: renaming either one makes
// the controller forget every coffee it already ordered.
package annotations

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/aonescu/kubespresso/internal/types"
)

const (
	// ExpectedDuration declares how long the workload is expected to run.
	// Value: integer seconds, e.g. "120"
	ExpectedDuration = "kubespresso.io/expected-duration"

	// LastCoffee records when a coffee was last ordered for the resource.
	// Value: Unix epoch seconds, e.g. "1700000000"
	// Written only by kubespresso; never cleared automatically.
	LastCoffee = "kubespresso.io/last-coffee"
)

// Get returns annotations[key], or def when the map or the key is missing.
func Get(annotations map[string]string, key, def string) string {
	if annotations == nil {
		return def
	}
	if v, ok := annotations[key]; ok {
		return v
	}
	return def
}

// Int64 parses annotations[key] as a base-10 integer. Missing or malformed
// values read as 0.
func Int64(annotations map[string]string, key string) int64 {
	n, ok := ParseInt64(annotations, key)
	if !ok {
		return 0
	}
	return n
}

// ParseInt64 is Int64 that also reports whether a valid value was present.
func ParseInt64(annotations map[string]string, key string) (int64, bool) {
	raw := strings.TrimSpace(Get(annotations, key, ""))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Marker renders a timestamp the way LastCoffee stores it.
func Marker(epochSeconds int64) string {
	return strconv.FormatInt(epochSeconds, 10)
}

type patchMetadata struct {
	Annotations     map[string]string `json:"annotations"`
	ResourceVersion string            `json:"resourceVersion"`
}

type mergePatch struct {
	Metadata patchMetadata `json:"metadata"`
}

// MergePatch builds a JSON merge patch that sets the given annotations and
// carries version as metadata.resourceVersion, so the API server rejects it
// with 409 Conflict when the object changed since the snapshot was read.
func MergePatch(patch types.AnnotationPatch, version string) ([]byte, error) {
	if version == "" {
		version = types.UnsetVersion
	}
	return json.Marshal(mergePatch{
		Metadata: patchMetadata{
			Annotations:     patch.Annotations,
			ResourceVersion: version,
		},
	})
}
