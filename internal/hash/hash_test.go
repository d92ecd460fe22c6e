package hash

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "abc")
	if err := os.WriteFile(name, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	h, err := File(name)
	if err != nil {
		t.Fatal(err)
	}
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if h != want {
		t.Errorf("%s != %s", h, want)
	}
	if _, err := File(name + ".missing"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestFingerprint(t *testing.T) {
	type settings struct {
		URL  string
		Tags map[string]string
	}
	a := settings{URL: "http://x/y.zip", Tags: map[string]string{"a": "1", "b": "2"}}
	b := settings{URL: "http://x/y.zip", Tags: map[string]string{"b": "2", "a": "1"}}
	c := settings{URL: "http://x/z.zip"}
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("fingerprint should not depend on map order")
	}
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("different settings should have different fingerprints")
	}
	if len(Fingerprint(a)) != 32 {
		t.Errorf("fingerprint length: %d != 32", len(Fingerprint(a)))
	}
}
