package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindAudioFiles(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"b/02 - Second.flac",
		"a/01 - First.mp3",
		"a/cover.jpg",
		"notes.txt",
		"c/deep/03 - Third.OGG",
	}
	for _, f := range files {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := FindAudioFiles(dir)
	if err != nil {
		t.Fatalf("FindAudioFiles() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 audio files, got %d: %v", len(got), got)
	}
	if !strings.HasSuffix(got[0], "01 - First.mp3") {
		t.Errorf("results should be sorted, first = %s", got[0])
	}
}

func TestFindAudioFilesErrors(t *testing.T) {
	if _, err := FindAudioFiles(""); err == nil {
		t.Error("expected error for empty dir")
	}
	if _, err := FindAudioFiles("/nonexistent/music/dir"); err == nil {
		t.Error("expected error for missing dir")
	}
}

func TestMimeType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"song.mp3", "audio/mpeg"},
		{"song.FLAC", "audio/flac"},
		{"song.m4a", "audio/mp4"},
		{"cover.jpg", ""},
	}
	for _, tt := range tests {
		if got := MimeType(tt.path); got != tt.want {
			t.Errorf("MimeType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestFileURL(t *testing.T) {
	got := FileURL("/music/a b.mp3")
	if got != "file:///music/a b.mp3" {
		t.Errorf("FileURL() = %q", got)
	}
}
