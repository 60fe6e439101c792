//go:build stave

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/yaklabco/stave/pkg/sh"
	"github.com/yaklabco/stave/pkg/st"
)

// Default target when running `stave` with no arguments.
var Default = Build

// Aliases for common targets.
var Aliases = map[string]interface{}{
	"b": Build,
	"t": Test,
	"l": Lint,
	"i": Install,
	"c": Clean,
	"w": Windows,
}

const binDir = "bin"

// binaries maps each executable to its main package.
var binaries = []struct {
	name string
	pkg  string
}{
	{"gametune", "./cmd/gametune"},
	{"gametuned", "./cmd/gametuned"},
}

// All runs the complete build pipeline.
func All() error {
	st.Deps(Lint, Test)
	st.Deps(Build, Windows)
	return nil
}

// Build compiles gametune and gametuned for the host.
func Build() error {
	return buildFor(runtime.GOOS, runtime.GOARCH, binDir)
}

// Windows cross-compiles both binaries for windows/amd64 into bin/windows.
func Windows() error {
	return buildFor("windows", "amd64", filepath.Join(binDir, "windows"))
}

func buildFor(goos, goarch, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	env := map[string]string{"GOOS": goos, "GOARCH": goarch, "CGO_ENABLED": "0"}
	ldflags := buildLdflags()
	for _, b := range binaries {
		output := filepath.Join(dir, exeName(b.name, goos))
		if err := sh.RunWithV(env, "go", "build", "-ldflags", ldflags, "-o", output, b.pkg); err != nil {
			return fmt.Errorf("building %s: %w", b.name, err)
		}
	}
	return nil
}

func exeName(name, goos string) string {
	if goos == "windows" {
		return name + ".exe"
	}
	return name
}

// goBin returns GOBIN, GOPATH/bin, or /usr/local/bin.
func goBin() (string, error) {
	gocmd := st.GoCmd()
	bin, err := sh.Output(gocmd, "env", "GOBIN")
	if err != nil {
		return "", fmt.Errorf("determining GOBIN: %w", err)
	}
	if bin != "" {
		return bin, nil
	}
	gopath, err := sh.Output(gocmd, "env", "GOPATH")
	if err != nil {
		return "", fmt.Errorf("determining GOPATH: %w", err)
	}
	if gopath != "" {
		return filepath.Join(gopath, "bin"), nil
	}
	return "/usr/local/bin", nil
}

// Install builds and installs both binaries next to each other, where
// gametune looks for the agent.
func Install() error {
	st.Deps(Build)

	bin, err := goBin()
	if err != nil {
		return err
	}

	for _, b := range binaries {
		name := exeName(b.name, runtime.GOOS)
		src := filepath.Join(binDir, name)
		dst := filepath.Join(bin, name)
		if st.Verbose() {
			fmt.Printf("Installing %s to %s\n", src, dst)
		}
		if err := sh.Copy(dst, src); err != nil {
			return err
		}
	}
	return nil
}

// Uninstall removes the installed binaries.
func Uninstall() error {
	bin, err := goBin()
	if err != nil {
		return err
	}

	for _, b := range binaries {
		target := filepath.Join(bin, exeName(b.name, runtime.GOOS))
		if _, err := os.Stat(target); os.IsNotExist(err) {
			continue
		}
		if st.Verbose() {
			fmt.Printf("Removing %s\n", target)
		}
		if err := os.Remove(target); err != nil {
			return err
		}
	}
	return nil
}

// Test runs all tests with race detection and coverage.
func Test() error {
	return sh.RunV("go", "test", "-race", "-cover", "./...")
}

// Lint runs golangci-lint for the host and for Windows, where the
// registry and service backends live.
func Lint() error {
	if err := sh.RunV("golangci-lint", "run", "./..."); err != nil {
		return err
	}
	return sh.RunWithV(map[string]string{"GOOS": "windows"}, "golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if st.Verbose() {
		fmt.Printf("Removing %s/\n", binDir)
	}
	return sh.Rm(binDir + "/")
}

// Fmt formats all Go code.
func Fmt() error {
	if err := sh.Run("gofmt", "-w", "."); err != nil {
		return fmt.Errorf("running gofmt: %w", err)
	}
	return sh.Run("goimports", "-w", ".")
}

// Tidy runs go mod tidy.
func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

// buildLdflags returns ldflags for version injection.
func buildLdflags() string {
	version := "dev"
	commit := "unknown"
	date := time.Now().Format(time.RFC3339)

	if v, err := sh.Output("git", "describe", "--tags", "--always"); err == nil && v != "" {
		version = strings.TrimSpace(v)
	}

	if c, err := sh.Output("git", "rev-parse", "--short", "HEAD"); err == nil && c != "" {
		commit = strings.TrimSpace(c)
	}

	return fmt.Sprintf("-X main.version=%s -X main.commit=%s -X main.date=%s", version, commit, date)
}
