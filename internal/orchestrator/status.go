package orchestrator

import (
	"errors"
	"sort"

	"exportwatch/internal/dispatcher"
	"exportwatch/internal/scanner"
)

// Destination labels for files that would not be moved.
const (
	UnroutedNoMatch     = "(no matching rule)"
	UnroutedExtractFail = "(year not found)"
)

// StatusResult groups the files currently waiting in the monitored
// directories by where they would be moved.
type StatusResult struct {
	ByDirectory map[string]*DirectoryStatus
	GrandTotal  int
}

// DirectoryStatus is the pending work in one monitored directory.
type DirectoryStatus struct {
	Directory     string
	ByDestination map[string][]string // destination dir (or unrouted label) -> file paths
	Total         int
	Err           error // listing failed; the directory is reported empty
}

// Directories returns the monitored directories in sorted order.
func (r *StatusResult) Directories() []string {
	dirs := make([]string, 0, len(r.ByDirectory))
	for d := range r.ByDirectory {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// Destinations returns the destinations of one directory in sorted order.
func (s *DirectoryStatus) Destinations() []string {
	dests := make([]string, 0, len(s.ByDestination))
	for d := range s.ByDestination {
		dests = append(dests, d)
	}
	sort.Strings(dests)
	return dests
}

// Route plans each path without touching the filesystem.
func (o *Orchestrator) Route(paths []string) []dispatcher.Plan {
	plans := make([]dispatcher.Plan, 0, len(paths))
	for _, p := range paths {
		plans = append(plans, o.dispatcher.Plan(p))
	}
	return plans
}

// Status lists the monitored directories and plans every file found there.
// Nothing is moved. Directories that cannot be listed are reported empty
// with their error attached.
func (o *Orchestrator) Status() (*StatusResult, error) {
	result := &StatusResult{ByDirectory: make(map[string]*DirectoryStatus)}
	filter := o.dispatcher.Filter()

	var errs []error
	for _, dir := range o.dispatcher.Roots() {
		status := &DirectoryStatus{
			Directory:     dir,
			ByDestination: make(map[string][]string),
		}
		result.ByDirectory[dir] = status

		files, err := scanner.List(dir, scanner.Options{Ignore: filter.ShouldIgnore})
		if err != nil {
			var scanErr *scanner.ScanError
			if !errors.As(err, &scanErr) || scanErr.Type != scanner.DirectoryNotFound {
				errs = append(errs, err)
			}
			status.Err = err
			continue
		}

		for _, f := range files {
			dest := DestinationLabel(o.dispatcher.Plan(f.FullPath))
			status.ByDestination[dest] = append(status.ByDestination[dest], f.FullPath)
			status.Total++
		}
		result.GrandTotal += status.Total
	}

	return result, errors.Join(errs...)
}

// DestinationLabel is the directory a plan moves its file into, or an
// unrouted label.
func DestinationLabel(plan dispatcher.Plan) string {
	switch {
	case plan.Ready():
		return plan.DestinationDir
	case plan.State == dispatcher.StateExtractFail:
		return UnroutedExtractFail
	default:
		return UnroutedNoMatch
	}
}
