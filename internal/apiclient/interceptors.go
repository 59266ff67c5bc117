package apiclient

import (
	"net/http"
	"sync"
)

// The process shares one Client, so installation is tracked process-wide
// and never reset.
var (
	interceptorsMu        sync.Mutex
	interceptorsInstalled bool
)

func markInstalled() {
	interceptorsInstalled = true
}

// SetupInterceptors installs the request and response hooks on c. Only the
// first call has any effect.
func SetupInterceptors(c *Client) {
	interceptorsMu.Lock()
	defer interceptorsMu.Unlock()
	if interceptorsInstalled {
		return
	}

	c.UseRequest(authorizeRequest)
	c.UseResponse(ResponseHook{
		OnResponse: func(r *Response) (*Response, error) { return r, nil },
		OnError:    func(err error) error { return Normalize(err) },
	})

	markInstalled()
}

// authorizeRequest is where a bearer token will be attached once there is
// auth state to read it from. Until then requests pass through untouched.
func authorizeRequest(req *http.Request) (*http.Request, error) {
	return req, nil
}
