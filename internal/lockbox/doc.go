// Package lockbox is the HTTP client for the lockbox endpoints of the
// backend REST API: course discovery, credential updates, user info and
// the automation's error log.
//
// The backend is treated as a black box. Non-2xx answers are decoded into
// [APIError], which keeps per-field validation messages separate from
// general failures.
package lockbox
