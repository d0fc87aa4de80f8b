package filesystem

import (
	"path/filepath"
	"sort"
	"strings"
)

const unknownVolume = "unknown"

// VolumeResolver labels paths with the name of the configured directory
// they live under. The longest matching directory wins.
type VolumeResolver struct {
	roots []volumeRoot
}

type volumeRoot struct {
	dir  string // absolute, with trailing separator
	name string
}

// NewVolumeResolver builds a resolver from volume name to directory.
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	vr := &VolumeResolver{}
	for name, dir := range volumes {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		vr.roots = append(vr.roots, volumeRoot{dir: withSlash(dir), name: name})
	}
	sort.Slice(vr.roots, func(i, j int) bool {
		return len(vr.roots[i].dir) > len(vr.roots[j].dir)
	})
	return vr
}

// Resolve returns the volume holding path, or "unknown".
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return unknownVolume
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return unknownVolume
	}
	abs = withSlash(abs)
	for _, root := range vr.roots {
		if strings.HasPrefix(abs, root.dir) {
			return root.name
		}
	}
	return unknownVolume
}

func withSlash(dir string) string {
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		return dir
	}
	return dir + string(filepath.Separator)
}

var defaultResolver *VolumeResolver

// SetDefaultVolumeResolver sets the resolver used for metric labels.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	defaultResolver = vr
}
