// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package dataimport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tomtom215/relay/internal/models"
)

// Fetcher reads import sources from local paths or http(s) URLs.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher whose remote requests time out after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	u, err := url.Parse(location)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// SourceHost returns the host used to key cached credentials, or "" for
// local paths.
func SourceHost(location string) string {
	if !IsRemote(location) {
		return ""
	}
	u, _ := url.Parse(location)
	return strings.ToLower(u.Host)
}

// SourceName returns the file name used in warnings and format detection.
func SourceName(location string) string {
	if IsRemote(location) {
		u, _ := url.Parse(location)
		if base := path.Base(u.Path); base != "/" && base != "." {
			return base
		}
		return u.Host
	}
	return baseName(location)
}

func baseName(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Fetch returns the bytes at location. A remote source answering 401 or
// 403 yields a *models.AuthRequiredError.
func (f *Fetcher) Fetch(ctx context.Context, location string, creds *models.Credentials) ([]byte, error) {
	if !IsRemote(location) {
		data, err := readLimited(location)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", location, err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if creds != nil {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", SourceName(location), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &models.AuthRequiredError{
			Source: location,
			Host:   SourceHost(location),
			Realm:  parseRealm(resp.Header.Get("WWW-Authenticate")),
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", SourceName(location), resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SourceName(location), err)
	}
	if len(data) > maxFileBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", SourceName(location), maxFileBytes)
	}
	return data, nil
}

// parseRealm extracts realm="..." from a WWW-Authenticate header.
func parseRealm(header string) string {
	i := strings.Index(strings.ToLower(header), "realm=")
	if i < 0 {
		return ""
	}
	v := header[i+len("realm="):]
	if strings.HasPrefix(v, `"`) {
		v = v[1:]
		if j := strings.Index(v, `"`); j >= 0 {
			return v[:j]
		}
		return v
	}
	if j := strings.IndexAny(v, ", "); j >= 0 {
		return v[:j]
	}
	return v
}
