// Package router maps data-residency regions to storage locations.
// It is a pure mapping over configured routes and performs no I/O.
package router

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

// Route identifies the bucket, region, and key prefix for one residency zone.
type Route struct {
	Bucket string
	Region string
	Prefix string
}

// Router resolves residency region tags to storage routes.
type Router struct {
	routes        map[string]Route
	defaultRegion string
	archivePrefix string
}

// Config configures a Router. Routes is keyed by residency tag.
type Config struct {
	Routes        map[string]Route
	DefaultRegion string
	ArchivePrefix string
}

// New builds a Router from explicit configuration.
func New(cfg Config) (*Router, error) {
	if len(cfg.Routes) == 0 {
		return nil, fmt.Errorf("router: no routes configured")
	}
	def := strings.ToLower(strings.TrimSpace(cfg.DefaultRegion))
	if _, ok := cfg.Routes[def]; !ok {
		return nil, fmt.Errorf("router: default region %q has no route", cfg.DefaultRegion)
	}
	routes := make(map[string]Route, len(cfg.Routes))
	for tag, route := range cfg.Routes {
		routes[strings.ToLower(strings.TrimSpace(tag))] = route
	}
	archivePrefix := strings.Trim(cfg.ArchivePrefix, "/")
	if archivePrefix == "" {
		archivePrefix = "archive"
	}
	return &Router{
		routes:        routes,
		defaultRegion: def,
		archivePrefix: archivePrefix,
	}, nil
}

// Resolve returns the route for a residency tag. Unrecognized tags fall back
// to the default route so a misconfigured record still lands somewhere safe.
func (r *Router) Resolve(regionTag string) Route {
	tag := strings.ToLower(strings.TrimSpace(regionTag))
	if route, ok := r.routes[tag]; ok {
		return route
	}
	return r.routes[r.defaultRegion]
}

// OrganizeKey builds the storage key for a newly uploaded document:
// cases/{caseID}/{documentType}/{timestamp}_{sanitized filename}.
func OrganizeKey(caseID, documentType, filename string, now time.Time) string {
	safe := SanitizeFilename(filename)
	ts := now.UTC().Format("20060102_150405")
	return path.Join("cases", caseID, documentType, ts+"_"+safe)
}

// ArchiveKey returns the archive location for a stored object:
// {archivePrefix}/{caseID}/{originalKey}.
func (r *Router) ArchiveKey(caseID, key string) string {
	return path.Join(r.archivePrefix, caseID, strings.TrimLeft(key, "/"))
}

var unsafeChars = regexp.MustCompile(`[^\w\-.]`)

// SanitizeFilename strips path components and characters that are not
// alphanumeric, underscore, hyphen, or period.
func SanitizeFilename(filename string) string {
	if idx := strings.LastIndexAny(filename, `/\`); idx >= 0 {
		filename = filename[idx+1:]
	}
	filename = strings.ReplaceAll(filename, " ", "_")
	filename = unsafeChars.ReplaceAllString(filename, "")
	if filename == "" || strings.HasPrefix(filename, ".") {
		filename = "file" + filename
	}
	return filename
}
