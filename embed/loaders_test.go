package embed

import (
	"io/fs"
	"reflect"
	"strings"
	"testing"
)

func TestNames(t *testing.T) {
	want := []string{"idle", "load", "media", "mount", "race", "visible"}
	if got := Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestLoadersReturnCancellableFutures(t *testing.T) {
	for _, name := range []string{"load", "idle", "visible", "media"} {
		src, err := Loader(name)
		if err != nil {
			t.Fatalf("Expected loader %s, got %v", name, err)
		}
		if !strings.Contains(string(src), "export default function "+name) {
			t.Errorf("Expected %s to export a default %s function", name, name)
		}
		if !strings.Contains(string(src), "cancel") {
			t.Errorf("Expected %s to expose cancel", name)
		}
	}
}

func TestLoaderWithExtension(t *testing.T) {
	a, err := Loader("race.js")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Loader("race")
	if string(a) != string(b) {
		t.Error("Expected name with and without .js to match")
	}
	if _, err := Loader("hover"); err == nil {
		t.Error("Expected error for unknown loader")
	}
}

func TestFSAndURL(t *testing.T) {
	if _, err := fs.Stat(FS(), "mount.js"); err != nil {
		t.Errorf("Expected mount.js in FS, got %v", err)
	}
	if got := URL("visible"); got != "/_slinkity/loaders/visible.js" {
		t.Errorf("Expected loader url, got %s", got)
	}
	if Hash() != Hash() || len(Hash()) != 16 {
		t.Errorf("Expected stable 16 char hash, got %s", Hash())
	}
}
