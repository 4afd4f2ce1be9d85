// Package doctor runs preflight diagnostics for the dashboard: signaling
// server reachability, token shape, clipboard, and terminal capabilities.
package doctor

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"golang.org/x/term"
	"nhooyr.io/websocket"
)

type Config struct {
	Server string
	Token  string
}

const dialTimeout = 5 * time.Second

// Run executes diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(cfg Config) int {
	fmt.Println("agenthud doctor - system diagnostics")
	fmt.Println("====================================")

	allPass := true

	if !checkTerminal() {
		allPass = false
	}
	if !checkClipboard() {
		allPass = false
	}
	if !checkToken(cfg.Token) {
		allPass = false
	}
	if !checkServer(cfg.Server) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkTerminal() bool {
	fmt.Println()
	fmt.Println("[1/4] Terminal")

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println("  FAIL: stdout is not a terminal (TUI needs one; use -tui=false otherwise)")
		return false
	}
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		fmt.Printf("  FAIL: cannot read terminal size: %v\n", err)
		return false
	}
	if w < 80 || h < 24 {
		fmt.Printf("  FAIL: terminal %dx%d too small (need at least 80x24)\n", w, h)
		return false
	}
	fmt.Printf("  PASS: terminal %dx%d\n", w, h)
	return true
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Println("[2/4] Clipboard")

	const probe = "agenthud-doctor-probe"
	prev, _ := clipboard.ReadAll()
	if err := clipboard.WriteAll(probe); err != nil {
		fmt.Printf("  FAIL: clipboard write: %v\n", err)
		return false
	}
	got, err := clipboard.ReadAll()
	// Restore whatever was there before the probe.
	_ = clipboard.WriteAll(prev)
	if err != nil {
		fmt.Printf("  FAIL: clipboard read: %v\n", err)
		return false
	}
	if got != probe {
		fmt.Println("  FAIL: clipboard round-trip mismatch")
		return false
	}
	fmt.Println("  PASS: clipboard round-trip ok")
	return true
}

func checkToken(token string) bool {
	fmt.Println()
	fmt.Println("[3/4] Auth token")

	if token == "" {
		token = os.Getenv("VIDEOSDK_TOKEN")
	}
	if token == "" {
		fmt.Println("  SKIP: no token (pass -token or set VIDEOSDK_TOKEN)")
		return true
	}
	if strings.Count(token, ".") != 2 {
		fmt.Println("  FAIL: token does not look like a JWT (expected three dot-separated segments)")
		return false
	}
	fmt.Println("  PASS: token shape ok")
	return true
}

func checkServer(server string) bool {
	fmt.Println()
	fmt.Println("[4/4] Signaling server")

	endpoint, err := url.Parse(server)
	if err != nil {
		fmt.Printf("  FAIL: bad server URL %q: %v\n", server, err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, endpoint.String(), nil)
	if err != nil {
		fmt.Printf("  FAIL: cannot reach %s: %v\n", server, err)
		return false
	}
	conn.Close(websocket.StatusNormalClosure, "")
	fmt.Printf("  PASS: reached %s\n", server)
	return true
}
