package deploy

import (
	"fmt"
	"os"
	"strings"

	"github.com/distribution/reference"
)

// ImageRef is a normalized image reference such as
// "docker.io/library/hubspot-booking-api:latest".
type ImageRef struct {
	named reference.Named
}

// ParseImageRef normalizes ref and defaults a missing tag to "latest".
func ParseImageRef(ref string) (ImageRef, error) {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return ImageRef{}, fmt.Errorf("invalid image reference %q: %w", ref, err)
	}
	return ImageRef{named: reference.TagNameOnly(named)}, nil
}

// String returns the fully qualified reference.
func (r ImageRef) String() string {
	if r.named == nil {
		return ""
	}
	return r.named.String()
}

// Familiar returns the short form used by the docker CLI, e.g. "hubspot-booking-api:latest".
func (r ImageRef) Familiar() string {
	if r.named == nil {
		return ""
	}
	return reference.FamiliarString(r.named)
}

// Tag returns the tag, or "" when the reference is pinned by digest only.
func (r ImageRef) Tag() string {
	if tagged, ok := r.named.(reference.Tagged); ok {
		return tagged.Tag()
	}
	return ""
}

// ParseBuildArgs turns KEY=VALUE pairs into Docker build arguments. A bare
// KEY takes its value from the environment and stays nil when unset.
func ParseBuildArgs(pairs []string) (map[string]*string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	args := make(map[string]*string, len(pairs))
	for _, pair := range pairs {
		key, value, hasValue := strings.Cut(pair, "=")
		if key == "" {
			return nil, fmt.Errorf("invalid build argument %q", pair)
		}
		if hasValue {
			args[key] = &value
			continue
		}
		if v, ok := os.LookupEnv(key); ok {
			args[key] = &v
		} else {
			args[key] = nil
		}
	}
	return args, nil
}
