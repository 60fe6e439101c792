//go:build !windows

package main

func defaultEditor() string {
	return "vi"
}
