// Package discover enumerates handler files under a root tree and derives the
// logical keys both delivery mechanisms wire against: (path, verb) pairs for
// HTTP routes and dot-delimited handler identifiers for feed subscriptions.
// Discovery is eager so the duplicate guard sees every candidate before any
// registration mutates shared state.
package discover

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	errspkg "github.com/quartzind/feedflow/internal/runtime/errors"
)

// verbSegments maps the trailing path segment of a handler file to its HTTP
// method, in the fixed order route listings use.
var verbSegments = []struct {
	segment string
	method  string
}{
	{"get", http.MethodGet},
	{"post", http.MethodPost},
	{"put", http.MethodPut},
	{"patch", http.MethodPatch},
	{"delete", http.MethodDelete},
}

// Methods returns the recognized HTTP methods in fixed listing order.
func Methods() []string {
	methods := make([]string, len(verbSegments))
	for i, v := range verbSegments {
		methods[i] = v.method
	}
	return methods
}

// Route is a discovered HTTP handler file.
type Route struct {
	// Key is the file's logical key: path relative to the root with the
	// extension stripped. Resolvers load the handler by this key.
	Key string

	// Path is the derived URL path, always with a leading separator.
	Path string

	// Method is the HTTP verb selected by the file's trailing segment.
	Method string
}

// Subscription is a discovered feed handler file.
type Subscription struct {
	// Key is the file's logical key, as for Route.
	Key string

	// ID is the handler identifier: the key with separators normalized to
	// dots. It is the checkpoint key and the duplicate-detection key.
	ID string
}

// Files enumerates every regular file under the root, returning paths
// relative to it. Zero files is a configuration error, not a no-op.
func Files(root fs.FS) ([]string, error) {
	var files []string
	err := fs.WalkDir(root, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errspkg.ErrEmptyHandlerSet
	}
	return files, nil
}

// Routes discovers HTTP handler files and guards against (path, verb)
// collisions. Files whose trailing segment is not a recognized verb are
// ignored so helper files can live alongside handler files.
func Routes(root fs.FS) ([]Route, error) {
	files, err := Files(root)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var routes []Route
	for _, file := range files {
		route, ok := deriveRoute(file)
		if !ok {
			continue
		}
		collisionKey := route.Method + " " + route.Path
		if _, dup := seen[collisionKey]; dup {
			return nil, &errspkg.DuplicateRouteError{Method: route.Method, Path: route.Path}
		}
		seen[collisionKey] = struct{}{}
		routes = append(routes, route)
	}
	return routes, nil
}

// Subscriptions discovers feed handler files and guards against handler
// identifier collisions.
func Subscriptions(root fs.FS) ([]Subscription, error) {
	files, err := Files(root)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var subs []Subscription
	for _, file := range files {
		sub := deriveSubscription(file)
		if _, dup := seen[sub.ID]; dup {
			return nil, &errspkg.DuplicateSubscriptionError{ID: sub.ID}
		}
		seen[sub.ID] = struct{}{}
		subs = append(subs, sub)
	}
	return subs, nil
}

func stripExt(file string) string {
	return strings.TrimSuffix(file, path.Ext(file))
}

func deriveRoute(file string) (Route, bool) {
	key := stripExt(file)
	segments := strings.Split(key, "/")
	last := segments[len(segments)-1]

	for _, v := range verbSegments {
		if last == v.segment {
			return Route{
				Key:    key,
				Path:   "/" + strings.Join(segments[:len(segments)-1], "/"),
				Method: v.method,
			}, true
		}
	}
	return Route{}, false
}

func deriveSubscription(file string) Subscription {
	key := stripExt(file)
	return Subscription{
		Key: key,
		ID:  strings.ReplaceAll(key, "/", "."),
	}
}
