// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

// Package fetch retrieves ontology bytes from files and HTTP(S) URLs,
// tracking the freshness metadata the refresh engine needs.
package fetch

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/internetofwater/ontoenv/internal/ontology"
	"github.com/internetofwater/ontoenv/internal/parse"
)

const UserAgent = "ontoenv"

// AcceptHeader is sent on every ontology request.
const AcceptHeader = "text/turtle, application/rdf+xml, application/n-triples, application/ld+json;q=0.9, */*;q=0.1"

// OfflineError is returned when a URL fetch is attempted in offline mode.
type OfflineError struct {
	URL string
}

func (e *OfflineError) Error() string {
	return fmt.Sprintf("offline mode blocks fetching %s", e.URL)
}

// HTTPError is a fetch failure: a network or filesystem error, or a non-2xx
// response status.
type HTTPError struct {
	URL    string
	Status int
	Err    error
}

func (e *HTTPError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// OriginKind says where the bytes came from.
type OriginKind int

const (
	OriginFile OriginKind = iota
	OriginURL
)

// Result is a successful retrieval. When NotModified is set the source has
// not changed since the previous metadata was captured and Bytes is empty.
type Result struct {
	Bytes       []byte
	Format      parse.Format
	Meta        ontology.FetchMetadata
	FinalURL    string
	Origin      OriginKind
	NotModified bool
}

// Fetcher retrieves bytes for locations. Offline mode refuses URL fetches;
// RemoteTTL suppresses refetches of URLs that were fetched recently.
type Fetcher struct {
	Client    *http.Client
	Offline   bool
	RemoteTTL time.Duration
	now       func() time.Time
}

func NewFetcher(offline bool, ttl time.Duration) *Fetcher {
	return &Fetcher{
		Client:    NewRetryableClient(),
		Offline:   offline,
		RemoteTTL: ttl,
		now:       time.Now,
	}
}

// Fetch retrieves the location. prev, when non-nil, enables conditional
// requests and TTL/mtime freshness short-circuits.
func (f *Fetcher) Fetch(loc ontology.Location, prev *ontology.FetchMetadata) (*Result, error) {
	start := f.now()
	var res *Result
	var err error
	if loc.IsFile() {
		res, err = f.fetchFile(loc, prev)
	} else {
		res, err = f.fetchURL(loc, prev)
	}
	if err == nil {
		log.Infof("fetched %s in %s (not modified: %v)", loc, time.Since(start), res.NotModified)
	}
	return res, err
}

func (f *Fetcher) fetchFile(loc ontology.Location, prev *ontology.FetchMetadata) (*Result, error) {
	info, err := os.Stat(loc.Path())
	if err != nil {
		return nil, &HTTPError{URL: loc.String(), Err: err}
	}
	mtime := info.ModTime()
	if prev != nil && !prev.SourceMtime.IsZero() && !mtime.After(prev.SourceMtime) {
		return &Result{
			Meta:        ontology.FetchMetadata{LastFetched: f.now(), SourceMtime: mtime},
			Origin:      OriginFile,
			NotModified: true,
		}, nil
	}
	b, err := os.ReadFile(loc.Path())
	if err != nil {
		return nil, &HTTPError{URL: loc.String(), Err: err}
	}
	format := parse.FromPath(loc.Path())
	if format == parse.Unknown {
		format = parse.Sniff(b)
	}
	return &Result{
		Bytes:  b,
		Format: format,
		Meta:   ontology.FetchMetadata{LastFetched: f.now(), SourceMtime: mtime},
		Origin: OriginFile,
	}, nil
}

func (f *Fetcher) fetchURL(loc ontology.Location, prev *ontology.FetchMetadata) (*Result, error) {
	if f.Offline {
		return nil, &OfflineError{URL: loc.String()}
	}
	if prev != nil && f.RemoteTTL > 0 && !prev.LastFetched.IsZero() {
		if f.now().Sub(prev.LastFetched) < f.RemoteTTL {
			return &Result{
				Meta:        *prev,
				Origin:      OriginURL,
				NotModified: true,
			}, nil
		}
	}

	req, err := http.NewRequest(http.MethodGet, loc.String(), nil)
	if err != nil {
		return nil, &HTTPError{URL: loc.String(), Err: err}
	}
	req.Header.Set("Accept", AcceptHeader)
	req.Header.Set("User-Agent", UserAgent)
	if prev != nil {
		if prev.ETag != "" {
			req.Header.Set("If-None-Match", prev.ETag)
		}
		if prev.LastModified != "" {
			req.Header.Set("If-Modified-Since", prev.LastModified)
		}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &HTTPError{URL: loc.String(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	meta := ontology.FetchMetadata{
		LastFetched:  f.now(),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}

	if resp.StatusCode == http.StatusNotModified {
		if prev != nil {
			if meta.ETag == "" {
				meta.ETag = prev.ETag
			}
			if meta.LastModified == "" {
				meta.LastModified = prev.LastModified
			}
		}
		return &Result{Meta: meta, Origin: OriginURL, NotModified: true}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{URL: loc.String(), Status: resp.StatusCode}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &HTTPError{URL: loc.String(), Err: err}
	}

	finalURL := loc.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	format := parse.FromMediaType(resp.Header.Get("Content-Type"))
	if format == parse.Unknown {
		format = parse.FromPath(finalURL)
	}
	if format == parse.Unknown {
		format = parse.Sniff(b)
	}

	return &Result{
		Bytes:    b,
		Format:   format,
		Meta:     meta,
		FinalURL: finalURL,
		Origin:   OriginURL,
	}, nil
}

// HeadExists probes the URL with a HEAD request.
func (f *Fetcher) HeadExists(url string) (bool, error) {
	if f.Offline {
		return false, &OfflineError{URL: url}
	}
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", AcceptHeader)
	req.Header.Set("User-Agent", UserAgent)
	resp, err := f.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// HeadLastModified returns the Last-Modified timestamp of a URL, if any.
func (f *Fetcher) HeadLastModified(url string) (time.Time, error) {
	if f.Offline {
		return time.Time{}, &OfflineError{URL: url}
	}
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return time.Time{}, err
	}
	req.Header.Set("Accept", AcceptHeader)
	req.Header.Set("User-Agent", UserAgent)
	resp, err := f.Client.Do(req)
	if err != nil {
		return time.Time{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return time.Time{}, nil
	}
	lm := resp.Header.Get("Last-Modified")
	if lm == "" {
		return time.Time{}, nil
	}
	return http.ParseTime(lm)
}
