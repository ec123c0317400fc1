package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// id3Header makes fixture files look like tagged MP3s to anything sniffing them.
var id3Header = []byte("ID3\x04\x00\x00\x00\x00\x00\x00")

// WriteAudio creates dir/name filled with size bytes of fake audio. A size
// smaller than the header writes just the header.
func WriteAudio(t testing.TB, dir, name string, size int) string {
	t.Helper()

	target := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", target, err)
	}
	data := make([]byte, max(size, len(id3Header)))
	copy(data, id3Header)
	for i := len(id3Header); i < len(data); i++ {
		data[i] = 0x42
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", target, err)
	}
	return target
}

// WriteAudioFiles creates one small fixture per name under dir.
func WriteAudioFiles(t testing.TB, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		WriteAudio(t, dir, name, 64)
	}
}
