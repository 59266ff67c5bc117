package apiclient

// ResetInterceptors clears the process-wide installation flag between tests.
func ResetInterceptors() {
	interceptorsMu.Lock()
	interceptorsInstalled = false
	interceptorsMu.Unlock()
}
