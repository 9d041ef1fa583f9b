// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package api exposes the engine to the UI host over HTTP and WebSocket.

The server listens on loopback by default. Every JSON response uses the
APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "...", "duration_ms": 1}}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "..."}, "meta": {...}}

Engine errors map onto codes as follows:

  - ValidationError: 400 VALIDATION_ERROR, with the failing field in details
  - ErrNotFound: 404 NOT_FOUND
  - ErrDuplicate: 409 CONFLICT
  - ReloadError: 500 INTERNAL_ERROR, with op and root in details
  - failed import fetch or parse: 422 IMPORT_FAILED

# Routes

	GET    /api/v1/data                        current snapshot
	POST   /api/v1/data/reload                 reload the data root
	GET    /api/v1/search?q=                   substring search
	GET    /api/v1/contacts                    list
	POST   /api/v1/contacts                    upsert by email
	DELETE /api/v1/contacts/{email}
	GET    /api/v1/servers                     list
	POST   /api/v1/servers                     upsert by name
	DELETE /api/v1/servers/{name}
	GET    /api/v1/groups                      list
	POST   /api/v1/groups                      create
	PUT    /api/v1/groups/{name}               rename
	DELETE /api/v1/groups/{name}
	POST   /api/v1/groups/{name}/members       add member
	DELETE /api/v1/groups/{name}/members/{email}
	POST   /api/v1/import/{kind}               contacts, groups or servers
	GET    /api/v1/import/jobs?limit=          recent import jobs
	GET    /api/v1/auth/pending                imports waiting for credentials
	POST   /api/v1/auth/{token}/submit         resume with credentials
	POST   /api/v1/auth/{token}/cached         resume with remembered credentials
	POST   /api/v1/auth/{token}/cancel         abandon
	GET    /api/v1/reports                     bridge summary
	DELETE /api/v1/reports                     clear bridge log
	POST   /api/v1/bridges                     record a bridge
	GET    /api/v1/settings/data-path
	PUT    /api/v1/settings/data-path          change data root
	DELETE /api/v1/settings/data-path          back to default
	GET    /api/v1/weather?lat=&lon=
	GET    /api/v1/locations?q=
	GET    /api/v1/ws                          snapshot and event stream
	GET    /api/v1/health[/live|/ready|/performance]
	GET    /metrics                            Prometheus

The token "next" addresses the oldest import waiting for credentials.
*/
package api
