package storage

import (
	"runtime/debug"
	"sync"
)

var (
	buildInfoOnce sync.Once
	buildDeps     map[string]string
)

// moduleVersion returns the version of the named dependency as linked into
// the running binary, or "unknown" when build info is unavailable (go test
// builds of some toolchains).
func moduleVersion(path string) string {
	buildInfoOnce.Do(func() {
		buildDeps = make(map[string]string)
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, dep := range info.Deps {
			if dep.Replace != nil {
				buildDeps[dep.Path] = dep.Replace.Version
				continue
			}
			buildDeps[dep.Path] = dep.Version
		}
	})

	if v, ok := buildDeps[path]; ok && v != "" {
		return v
	}
	return "unknown"
}

// Dropper is implemented by backends whose data lives outside the database
// path, so it cannot be removed with the directory.
type Dropper interface {
	Drop() error
}
