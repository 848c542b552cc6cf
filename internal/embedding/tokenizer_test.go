package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("hello world", 10)
	if len(ids) != 10 || len(types) != 10 {
		t.Errorf("len(ids)=%d len(types)=%d", len(ids), len(types))
	}
	if ids[0] != tokenCLS {
		t.Errorf("expected CLS 101, got %d", ids[0])
	}
	if ids[3] != tokenSEP {
		t.Errorf("expected SEP after two words, got %d", ids[3])
	}
	for i, want := range []int64{1, 1, 1, 1, 0} {
		if attn[i] != want {
			t.Errorf("attention[%d]=%d, want %d", i, attn[i], want)
		}
	}
}

func TestSimpleTokenizer_TruncatesToMaxTokens(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, _ := tok.Tokenize("a b c d e f g h", 4)
	if len(ids) != 4 {
		t.Fatalf("len(ids)=%d", len(ids))
	}
	if ids[3] != tokenSEP || attn[3] != 1 {
		t.Errorf("last slot should be SEP, got %d", ids[3])
	}
}

func TestSimpleTokenizer_CaseInsensitive(t *testing.T) {
	tok := &SimpleTokenizer{}
	a, _, _ := tok.Tokenize("Hello", 4)
	b, _, _ := tok.Tokenize("hello", 4)
	if a[1] != b[1] {
		t.Errorf("token ids differ by case: %d vs %d", a[1], b[1])
	}
}

func TestHashToken(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Error("hash should be deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Error("different tokens should hash differently")
	}
}
