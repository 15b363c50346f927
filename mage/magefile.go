//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

const (
	SERVER_BINARY = "../bin/chat-server"
	CLIENT_BINARY = "../bin/chat-client"
	SERVER_PATH   = "../cmd/server"
	CLIENT_PATH   = "../cmd/client"
)

func Build() error {
	fmt.Println("🔨 Building server and client binaries...")
	if err := runCmd("go", "build", "-o", SERVER_BINARY, SERVER_PATH); err != nil {
		return err
	}
	return runCmd("go", "build", "-o", CLIENT_BINARY, CLIENT_PATH)
}

func Vet() error {
	fmt.Println("🔍 Vetting...")
	return runCmd("go", "vet", "../...")
}

func Test() error {
	mg.Deps(Vet)
	fmt.Println("🧪 Running tests...")
	return runCmd("go", "test", "-race", "../...")
}

// Server runs the dev server with the normal mock feed.
func Server() error {
	fmt.Println("🚀 Starting dev server...")
	cmd := exec.Command("go", "run", SERVER_PATH)
	cmd.Env = append(os.Environ(), "MOCK_MODE=normal")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func Client() error {
	fmt.Println("💬 Starting chat client...")
	cmd := exec.Command("go", "run", CLIENT_PATH)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func Clean() {
	fmt.Println("🧹 Cleaning up...")
	os.Remove(SERVER_BINARY)
	os.Remove(CLIENT_BINARY)
}

func runCmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
