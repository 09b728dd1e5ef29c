// Package doctor inspects the staging and output directories for debris
// left by interrupted builds.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/jvs-project/epubpack/internal/archive"
	"github.com/jvs-project/epubpack/internal/staging"
	"github.com/jvs-project/epubpack/internal/verify"
	"github.com/jvs-project/epubpack/pkg/fsutil"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
	Fixable     bool   `json:"fixable,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
}

func (r *Result) add(f Finding) {
	if f.Severity == "critical" || f.Severity == "error" {
		r.Healthy = false
	}
	r.Findings = append(r.Findings, f)
}

// Doctor performs health checks on one staging and one output directory.
type Doctor struct {
	stagingDir string
	outputDir  string
	maxAge     time.Duration
}

// NewDoctor creates a new doctor. outputDir may be empty; working roots
// older than maxAge count as stale.
func NewDoctor(stagingDir, outputDir string, maxAge time.Duration) *Doctor {
	if stagingDir == "" {
		stagingDir = staging.DefaultDir()
	}
	return &Doctor{stagingDir: stagingDir, outputDir: outputDir, maxAge: maxAge}
}

// Check runs all diagnostic checks. strict also verifies every archive in
// the output directory.
func (d *Doctor) Check(strict bool) (*Result, error) {
	result := &Result{Healthy: true}

	d.checkWritable(result, "staging", d.stagingDir)
	d.checkWorkingRoots(result)

	if d.outputDir != "" {
		d.checkWritable(result, "output", d.outputDir)
		d.checkOutputDebris(result)
		if strict {
			d.checkArchives(result)
		}
	}
	return result, nil
}

func (d *Doctor) checkWritable(result *Result, category, dir string) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		result.add(Finding{
			Category:    category,
			Description: "directory does not exist yet; it is created on first build",
			Severity:    "info",
			Path:        dir,
		})
		return
	}
	if err != nil || !info.IsDir() {
		result.add(Finding{
			Category:    category,
			Description: fmt.Sprintf("not a usable directory: %v", err),
			Severity:    "error",
			Path:        dir,
		})
		return
	}
	probe, err := os.CreateTemp(dir, fsutil.TempPrefix+"probe-*")
	if err != nil {
		result.add(Finding{
			Category:    category,
			Description: fmt.Sprintf("directory is not writable: %v", err),
			Severity:    "error",
			Path:        dir,
		})
		return
	}
	probe.Close()
	os.Remove(probe.Name())
}

func (d *Doctor) checkWorkingRoots(result *Result) {
	entries, err := os.ReadDir(d.stagingDir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-d.maxAge)
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), staging.SessionPrefix) {
			continue
		}
		root := filepath.Join(d.stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if held(root + staging.LockSuffix) {
			result.add(Finding{
				Category:    "staging",
				Description: fmt.Sprintf("working root in use since %s", info.ModTime().Format(time.RFC3339)),
				Severity:    "info",
				Path:        root,
			})
			continue
		}
		result.add(Finding{
			Category:    "staging",
			Description: "stale working root left by an interrupted build",
			Severity:    "warning",
			Path:        root,
			Fixable:     true,
		})
	}
}

func (d *Doctor) checkOutputDebris(result *Result) {
	entries, err := os.ReadDir(d.outputDir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-d.maxAge)
	for _, entry := range entries {
		name := entry.Name()
		p := filepath.Join(d.outputDir, name)
		switch {
		case strings.HasPrefix(name, fsutil.TempPrefix):
			// Temp names do not say which archive they belong to, so only
			// age tells an orphan from a write in flight.
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			result.add(Finding{
				Category:    "output",
				Description: fmt.Sprintf("orphan temp archive: %s", name),
				Severity:    "warning",
				Path:        p,
				Fixable:     true,
			})
		case strings.HasSuffix(name, ".epub"+archive.LockSuffix):
			if held(p) {
				continue
			}
			result.add(Finding{
				Category:    "output",
				Description: fmt.Sprintf("unheld archive lock: %s", name),
				Severity:    "info",
				Path:        p,
				Fixable:     true,
			})
		}
	}
}

func (d *Doctor) checkArchives(result *Result) {
	paths, err := filepath.Glob(filepath.Join(d.outputDir, "*.epub"))
	if err != nil {
		return
	}
	verifier := verify.NewVerifier(false)
	for _, p := range paths {
		res, err := verifier.VerifyArchive(p)
		if err != nil {
			result.add(Finding{
				Category:    "archive",
				Description: fmt.Sprintf("verification failed: %v", err),
				Severity:    "error",
				Path:        p,
			})
			continue
		}
		if !res.Valid {
			desc := "archive violates container invariants"
			if len(res.Problems) > 0 {
				desc = res.Problems[0].Message
			}
			result.add(Finding{
				Category:    "archive",
				Description: desc,
				Severity:    "critical",
				Path:        p,
			})
		}
	}
}

// Fix removes everything marked fixable and returns the paths removed.
func Fix(result *Result) ([]string, error) {
	var removed []string
	for _, f := range result.Findings {
		if !f.Fixable {
			continue
		}
		if err := os.RemoveAll(f.Path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", f.Path, err)
		}
		if strings.HasPrefix(filepath.Base(f.Path), staging.SessionPrefix) {
			os.Remove(f.Path + staging.LockSuffix)
		}
		removed = append(removed, f.Path)
	}
	return removed, nil
}

// held reports whether another process holds the flock at lockPath. A
// missing lock file is never held.
func held(lockPath string) bool {
	if _, err := os.Stat(lockPath); err != nil {
		return false
	}
	lk := flock.New(lockPath)
	locked, err := lk.TryLock()
	if err != nil {
		return true
	}
	if locked {
		lk.Unlock()
		return false
	}
	return true
}
