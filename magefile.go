//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

func Build() error {
	mg.Deps(BuildReconstructor)
	fmt.Println("Compilation finished")
	return nil
}

// cgoCommand runs the go tool with the HDF5 flags taken from the environment.
func cgoCommand(args ...string) *exec.Cmd {
	ldflags := os.Getenv("CGO_LDFLAGS")
	cflags := os.Getenv("CGO_CFLAGS")
	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=1",
		fmt.Sprintf("CGO_LDFLAGS=%s", ldflags),
		fmt.Sprintf("CGO_CFLAGS=%s", cflags))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

func BuildReconstructor() error {
	fmt.Println("Building reconstructor executable...")
	return cgoCommand("build", "-o", "./bin/reconstructor", "./reconstructor").Run()
}

func Test() error {
	fmt.Println("Running tests...")
	return cgoCommand("test", "-race", "./pkg/...", "./reconstructor/...").Run()
}
