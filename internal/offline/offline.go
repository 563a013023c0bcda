// Package offline defines the site's service-worker caching policy and
// generates the worker script from it, so the rules the browser follows
// are the same ones the Go tests check.
package offline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"text/template"
)

// CacheVersion names the precache. Bump it whenever a precached asset
// changes so installed workers drop the old cache on activation.
const CacheVersion = "folio-v1"

// Strategy is how the worker answers a request.
type Strategy int

const (
	// Bypass leaves the request to the browser.
	Bypass Strategy = iota
	// NetworkOnly always goes to the network, even offline.
	NetworkOnly
	// NetworkFirst tries the network and falls back to the cache, then
	// to the offline page.
	NetworkFirst
	// CacheFirst answers from the cache and refreshes it in the
	// background.
	CacheFirst
)

func (s Strategy) String() string {
	switch s {
	case NetworkOnly:
		return "network-only"
	case NetworkFirst:
		return "network-first"
	case CacheFirst:
		return "cache-first"
	}
	return "bypass"
}

// Policy is the caching manifest of the site.
type Policy struct {
	Version     string
	Precache    []string
	OfflinePage string
	APIPrefix   string
	// CrossOrigin hosts whose GETs are cached like local static assets.
	CrossOrigin []string
}

// Default returns the policy the site serves.
func Default() *Policy {
	return &Policy{
		Version:     CacheVersion,
		OfflinePage: "/offline.html",
		APIPrefix:   "/api/",
		Precache: []string{
			"/",
			"/offline.html",
			"/manifest.json",
			"/static/css/site.css",
			"/static/js/site.js",
		},
		CrossOrigin: []string{"fonts.googleapis.com", "fonts.gstatic.com"},
	}
}

// Classify decides the strategy for r as seen from a page served at
// origin (scheme://host). Requests with a relative URL are same-origin.
func (p *Policy) Classify(r *http.Request, origin string) Strategy {
	if r.Method != http.MethodGet {
		return Bypass
	}
	if !sameOrigin(r.URL, origin) {
		if slices.Contains(p.CrossOrigin, r.URL.Hostname()) {
			return CacheFirst
		}
		return Bypass
	}
	if strings.HasPrefix(r.URL.Path, p.APIPrefix) {
		return NetworkOnly
	}
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		return NetworkFirst
	}
	return CacheFirst
}

func sameOrigin(u *url.URL, origin string) bool {
	if u.Host == "" {
		return true
	}
	o, err := url.Parse(origin)
	if err != nil {
		return false
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = o.Scheme
	}
	return strings.EqualFold(u.Host, o.Host) && scheme == o.Scheme
}

// Script renders the service worker.
func (p *Policy) Script() ([]byte, error) {
	precache, err := json.Marshal(p.Precache)
	if err != nil {
		return nil, fmt.Errorf("encode precache: %w", err)
	}
	crossOrigin, err := json.Marshal(p.CrossOrigin)
	if err != nil {
		return nil, fmt.Errorf("encode cross-origin hosts: %w", err)
	}

	var buf bytes.Buffer
	err = workerTemplate.Execute(&buf, map[string]string{
		"Version":     jsString(p.Version),
		"Offline":     jsString(p.OfflinePage),
		"APIPrefix":   jsString(p.APIPrefix),
		"Precache":    string(precache),
		"CrossOrigin": string(crossOrigin),
	})
	if err != nil {
		return nil, fmt.Errorf("render worker: %w", err)
	}
	return buf.Bytes(), nil
}

// Handler serves the worker script at the site root.
func (p *Policy) Handler() (http.Handler, error) {
	script, err := p.Script()
	if err != nil {
		return nil, err
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Service-Worker-Allowed", "/")
		w.Write(script)
	}), nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

var workerTemplate = template.Must(template.New("sw").Parse(`// Generated by the site server. Do not edit.
const CACHE_NAME = {{.Version}};
const RUNTIME_CACHE = CACHE_NAME + '-runtime';
const OFFLINE_PAGE = {{.Offline}};
const API_PREFIX = {{.APIPrefix}};
const PRECACHE = {{.Precache}};
const CROSS_ORIGIN = {{.CrossOrigin}};

self.addEventListener('install', (event) => {
  event.waitUntil(
    caches.open(CACHE_NAME)
      .then((cache) => cache.addAll(PRECACHE))
      .then(() => self.skipWaiting())
  );
});

self.addEventListener('activate', (event) => {
  event.waitUntil(
    caches.keys()
      .then((names) => Promise.all(
        names
          .filter((name) => name !== CACHE_NAME && name !== RUNTIME_CACHE)
          .map((name) => caches.delete(name))
      ))
      .then(() => self.clients.claim())
  );
});

function strategy(request) {
  if (request.method !== 'GET') return 'bypass';
  const url = new URL(request.url);
  if (url.origin !== self.location.origin) {
    return CROSS_ORIGIN.includes(url.hostname) ? 'cache-first' : 'bypass';
  }
  if (url.pathname.startsWith(API_PREFIX)) return 'network-only';
  if ((request.headers.get('accept') || '').includes('text/html')) return 'network-first';
  return 'cache-first';
}

function networkFirst(request) {
  return fetch(request)
    .then((response) => {
      const copy = response.clone();
      caches.open(RUNTIME_CACHE).then((cache) => cache.put(request, copy));
      return response;
    })
    .catch(() => caches.match(request).then((cached) => cached || caches.match(OFFLINE_PAGE)));
}

function cacheFirst(request) {
  const refresh = fetch(request).then((response) => {
    if (response.status === 200) {
      const copy = response.clone();
      caches.open(RUNTIME_CACHE).then((cache) => cache.put(request, copy));
    }
    return response;
  });
  return caches.match(request).then((cached) => {
    if (cached) {
      refresh.catch(() => {});
      return cached;
    }
    return refresh;
  });
}

self.addEventListener('fetch', (event) => {
  switch (strategy(event.request)) {
    case 'network-only':
      event.respondWith(fetch(event.request));
      break;
    case 'network-first':
      event.respondWith(networkFirst(event.request));
      break;
    case 'cache-first':
      event.respondWith(cacheFirst(event.request));
      break;
  }
});
`))
