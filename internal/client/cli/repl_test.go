package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	calls    []string
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Login(context.Context) error {
	f.calls = append(f.calls, "login")
	f.loggedIn = true
	return nil
}
func (f *fakeExec) Refresh(context.Context) error {
	f.calls = append(f.calls, "refresh")
	return nil
}
func (f *fakeExec) WhoAmI(context.Context) error {
	f.calls = append(f.calls, "whoami")
	return nil
}
func (f *fakeExec) Logout(context.Context) error {
	f.calls = append(f.calls, "logout")
	f.loggedIn = false
	return nil
}
func (f *fakeExec) LogoutAll(context.Context) error {
	f.calls = append(f.calls, "logoutall")
	f.loggedIn = false
	return nil
}
func (f *fakeExec) Upload(context.Context) error {
	f.calls = append(f.calls, "upload")
	return nil
}

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSpace(fmt.Sprintln(a...)))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func TestRunREPL_Commands(t *testing.T) {
	lines := captureOutput(t)
	input := strings.Join([]string{"help", "", "login", "help", "whoami", "upload", "refresh", "logoutall", "login", "logout", "bogus", "exit", "whoami"}, "\n")

	f := &fakeExec{}
	runREPL(context.Background(), f, func() string { return "" }, bufio.NewScanner(strings.NewReader(input)))

	assert.Equal(t, []string{"login", "whoami", "upload", "refresh", "logoutall", "login", "logout"}, f.calls)
	assert.Contains(t, *lines, "Available commands: login, exit")
	assert.Contains(t, *lines, "Available commands: whoami, upload, refresh, logout, logoutall, exit")
	assert.Contains(t, *lines, "Unknown command: bogus")
	assert.Contains(t, *lines, "Bye!")
}

func TestRunREPL_StopsOnEOF(t *testing.T) {
	captureOutput(t)
	f := &fakeExec{}
	runREPL(context.Background(), f, func() string { return "" }, bufio.NewScanner(strings.NewReader("login")))
	assert.Equal(t, []string{"login"}, f.calls)
}
