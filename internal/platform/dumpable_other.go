//go:build !linux

package platform

func setNotDumpable() error { return nil }
