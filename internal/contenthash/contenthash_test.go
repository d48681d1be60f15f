package contenthash

import (
	"strings"
	"testing"
)

func TestHash_Deterministic(t *testing.T) {
	s := "hello world"
	if Hash(s) != Hash(s) {
		t.Fatal("Hash() not deterministic")
	}
}

func TestHash_DiffersOnChange(t *testing.T) {
	if Hash("hello") == Hash("hellp") {
		t.Fatal("Hash() collided on differing short strings")
	}
}

func TestHash_DiffersOnAppendLarge(t *testing.T) {
	base := strings.Repeat("a", 20000)
	appended := base + "b"
	if Hash(base) == Hash(appended) {
		t.Fatal("Hash() did not change after append to large content")
	}
}

func TestHash_DiffersOnPrependLarge(t *testing.T) {
	base := strings.Repeat("a", 20000)
	prepended := "b" + base
	if Hash(base) == Hash(prepended) {
		t.Fatal("Hash() did not change after prepend to large content")
	}
}

func TestHash_EmptyString(t *testing.T) {
	if Hash("") == "" {
		t.Fatal("Hash() returned empty string for empty input")
	}
}
