package pkg

import (
	"os"
	"regexp"
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	buf, err := os.ReadFile("VERSION")
	if err != nil {
		t.Fatalf("read VERSION: %v", err)
	}

	if want := strings.TrimSpace(string(buf)); Version() != want {
		t.Errorf("Version() = %q, want %q", Version(), want)
	}

	if !regexp.MustCompile(`^\d+\.\d+\.\d+`).MatchString(Version()) {
		t.Errorf("Version() = %q is not semantic", Version())
	}
}

func TestAuthors(t *testing.T) {
	if len(Authors) == 0 {
		t.Fatal("no authors")
	}

	for i, a := range Authors {
		if a.Name == "" && a.Email == "" {
			t.Errorf("Authors[%d] is empty", i)
		}
	}
}
