package main

import (
	"os"
	"path/filepath"
	"testing"

	"badgeetl/internal/etlerr"
)

func TestRunProfile(t *testing.T) {
	in := filepath.Join(t.TempDir(), "Badges.xml")
	body := `<badges><row Id="1" UserId="2" Name="Teacher" Date="2008-07-31T21:42:52.667" Class="3" TagBased="False" /></badges>`
	if err := os.WriteFile(in, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if code := run([]string{"-input", in}); code != etlerr.ExitOK {
		t.Fatalf("exit=%d", code)
	}
}

func TestRunProfileNoInput(t *testing.T) {
	if code := run(nil); code != etlerr.ExitConfig {
		t.Fatalf("exit=%d; want %d", code, etlerr.ExitConfig)
	}
}
