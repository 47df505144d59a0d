//go:build !ocsp_debug

package ocsp

func callerLocation() string { return "" }
