// Package testutil holds shared test helpers.
package testutil

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// CreateTestFile creates a test file with the given content, creating
// parent directories as needed, and returns its path
func CreateTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create test directory: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	return path
}

// ListingHTML renders a directory listing page in the archive's index
// format. Entries ending in "/" become directories.
func ListingHTML(entries ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><table>\n")
	for _, entry := range entries {
		dir := strings.HasSuffix(entry, "/")
		name := strings.TrimSuffix(entry, "/")
		href := url.PathEscape(name)
		if dir {
			href += "/"
		}
		fmt.Fprintf(&b, `<tr><td class="link"><a href=%q>%s</a></td><td class="size">-</td></tr>`, href, name)
		b.WriteString("\n")
	}
	b.WriteString("</table></body></html>\n")
	return b.String()
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		<-ticker.C
	}
}

// AssertEventually asserts that a condition becomes true within timeout
func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msgAndArgs ...interface{}) {
	t.Helper()

	if !WaitForCondition(timeout, condition) {
		if len(msgAndArgs) > 0 {
			t.Fatalf("condition not met within %v: %v", timeout, msgAndArgs[0])
		} else {
			t.Fatalf("condition not met within %v", timeout)
		}
	}
}
