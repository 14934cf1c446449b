/*
	This file contains functions useful for testing handlers in other packages.
	Due to the way Go handles compilation of *_test.go files, these functions
	cannot be in a _test.go file since they would be unavailable to test files
	in external packages.  So these functions are exported and contain the
	"Test" keyword.
*/

package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestHTTPResponse returns the recorded response of a request to the handler.
// Use TestHTTP if you just want the response body bytes.
func TestHTTPResponse(t *testing.T, h http.Handler, method, urlStr string, payload io.Reader) *httptest.ResponseRecorder {
	req, err := http.NewRequest(method, urlStr, payload)
	if err != nil {
		t.Fatalf("Unsuccessful %s on %q: %v\n", method, urlStr, err)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

// TestHTTP returns the response body bytes for a test request, making sure the
// response has status OK.
func TestHTTP(t *testing.T, h http.Handler, method, urlStr string, payload io.Reader) []byte {
	resp := TestHTTPResponse(t, h, method, urlStr, payload)
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad server response (%d) to %s on %q: %s\n", resp.Code, method, urlStr, resp.Body.String())
	}
	return resp.Body.Bytes()
}

// TestBadHTTP expects a HTTP response with the given error status code and
// returns the response body.
func TestBadHTTP(t *testing.T, h http.Handler, method, urlStr string, payload io.Reader, status int) []byte {
	resp := TestHTTPResponse(t, h, method, urlStr, payload)
	if resp.Code != status {
		t.Fatalf("Expected status %d for %s on %q, got %d instead.\n", status, method, urlStr, resp.Code)
	}
	return resp.Body.Bytes()
}
