//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName  = "portscope"
	mainPkg     = "./src/cmd/portscope"
	binDir      = "bin"
	coverageDir = "coverage"
)

// Default target runs all checks and builds.
var Default = All

// All runs fmt, lint, and test, then builds.
func All() error {
	mg.Deps(Fmt, Lint, Test)
	return Build()
}

// Build compiles the portscope binary for the current platform.
func Build() error {
	fmt.Println("Building", binaryName+"...")

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", binDir, err)
	}

	binaryExt := ""
	if runtime.GOOS == "windows" {
		binaryExt = ".exe"
	}
	out := filepath.Join(binDir, binaryName+binaryExt)

	version := os.Getenv("VERSION")
	args := []string{"build", "-o", out}
	if version != "" {
		args = append(args, "-ldflags",
			fmt.Sprintf("-X github.com/bemindlab/portscope/src/cmd/portscope/commands.Version=%s", version))
	}
	args = append(args, mainPkg)

	if err := sh.RunV("go", args...); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Println("✅ Build complete:", out)
	return nil
}

// BuildAll cross-compiles for the supported platforms.
func BuildAll() error {
	platforms := []struct{ goos, goarch string }{
		{"linux", "amd64"},
		{"linux", "arm64"},
		{"darwin", "amd64"},
		{"darwin", "arm64"},
		{"windows", "amd64"},
	}

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", binDir, err)
	}

	for _, p := range platforms {
		binaryExt := ""
		if p.goos == "windows" {
			binaryExt = ".exe"
		}
		out := filepath.Join(binDir, fmt.Sprintf("%s-%s-%s%s", binaryName, p.goos, p.goarch, binaryExt))
		fmt.Printf("Building %s...\n", out)

		env := map[string]string{"GOOS": p.goos, "GOARCH": p.goarch, "CGO_ENABLED": "0"}
		if err := sh.RunWithV(env, "go", "build", "-o", out, mainPkg); err != nil {
			return fmt.Errorf("build for %s/%s failed: %w", p.goos, p.goarch, err)
		}
	}

	fmt.Println("✅ Build complete for all platforms!")
	return nil
}

// Test runs the unit tests.
func Test() error {
	fmt.Println("Running unit tests...")
	return sh.RunV("go", "test", "-v", "-short", "./src/...")
}

// TestRace runs the unit tests with the race detector.
func TestRace() error {
	fmt.Println("Running unit tests with -race...")
	return sh.RunV("go", "test", "-race", "-short", "./src/...")
}

// TestCoverage runs tests with a coverage report.
func TestCoverage() error {
	fmt.Println("Running tests with coverage...")

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	absCoverageDir := filepath.Join(cwd, coverageDir)
	_ = os.RemoveAll(absCoverageDir)
	if err := os.MkdirAll(absCoverageDir, 0o755); err != nil {
		return fmt.Errorf("failed to create coverage directory at %s: %w", absCoverageDir, err)
	}

	coverageOut := filepath.Join(absCoverageDir, "coverage.out")
	coverageHTML := filepath.Join(absCoverageDir, "coverage.html")

	if err := sh.RunV("go", "test", "-v", "-short", "-coverprofile="+coverageOut, "./src/..."); err != nil {
		return fmt.Errorf("tests failed: %w", err)
	}
	if err := sh.RunV("go", "tool", "cover", "-html="+coverageOut, "-o", coverageHTML); err != nil {
		return fmt.Errorf("failed to generate HTML coverage: %w", err)
	}
	if err := sh.RunV("go", "tool", "cover", "-func="+coverageOut); err != nil {
		return fmt.Errorf("failed to display coverage summary: %w", err)
	}

	fmt.Println("Coverage report:", coverageHTML)
	return nil
}

// Lint runs golangci-lint on the codebase.
func Lint() error {
	fmt.Println("Running golangci-lint...")
	if err := sh.RunV("golangci-lint", "run", "./..."); err != nil {
		fmt.Println("⚠️  Linting failed. Ensure golangci-lint is installed:")
		fmt.Println("    go install github.com/golangci/golangci-lint/cmd/golangci-lint@latest")
		return err
	}
	return nil
}

// Fmt formats all Go code using gofmt.
func Fmt() error {
	fmt.Println("Formatting code...")
	if err := sh.RunV("gofmt", "-w", "-s", "."); err != nil {
		return fmt.Errorf("formatting failed: %w", err)
	}
	fmt.Println("✅ Code formatted!")
	return nil
}

// Clean removes build artifacts and coverage reports.
func Clean() error {
	fmt.Println("Cleaning build artifacts...")
	for _, dir := range []string{binDir, coverageDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
	}
	fmt.Println("✅ Clean complete!")
	return nil
}

// Install builds and installs portscope into GOPATH/bin.
func Install() error {
	fmt.Println("Installing", binaryName+"...")
	if err := sh.RunV("go", "install", mainPkg); err != nil {
		return fmt.Errorf("installation failed: %w", err)
	}
	fmt.Println("✅ Installed!")
	return nil
}

// Security runs security scanning with gosec.
func Security() error {
	fmt.Println("Running security scan...")
	if err := sh.RunV("gosec",
		"-tests=false",
		"-exclude-generated",
		"-quiet",
		"./src/...",
	); err != nil {
		fmt.Println("⚠️  Security scan failed. Ensure gosec is installed:")
		fmt.Println("    go install github.com/securego/gosec/v2/cmd/gosec@latest")
		return err
	}
	fmt.Println("✅ Security scan passed!")
	return nil
}

// Run builds the binary and runs it with COMMAND (default "list").
func Run() error {
	command := os.Getenv("COMMAND")
	if command == "" {
		command = "list"
	}

	if err := Build(); err != nil {
		return err
	}

	binaryExt := ""
	if runtime.GOOS == "windows" {
		binaryExt = ".exe"
	}
	binaryPath := filepath.Join(binDir, binaryName+binaryExt)

	fmt.Printf("🚀 Running: %s %s\n\n", binaryPath, command)
	return sh.RunV(binaryPath, command)
}
