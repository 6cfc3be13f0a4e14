package lex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	ctx := context.Background()

	l := New("t.sl", []byte("fn foo(p0: i64) -> i64 { return p0 + 1 << 2; } // trailing\n"))

	var got []Kind

	for {
		tok, err := l.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}

		got = append(got, tok.Kind)

		if tok.Kind == EOF {
			break
		}
	}

	want := []Kind{
		KwFn, Ident, LParen, Ident, Colon, Ident, RParen, Arrow, Ident,
		LBrace, KwReturn, Ident, Plus, Int, Shl, Int, Semi, RBrace, EOF,
	}

	assert.Equal(t, want, got)
}

func TestUnknownCharacter(t *testing.T) {
	ctx := context.Background()

	l := New("t.sl", []byte("fn foo() { let mut a: i64 = 0 $ 1; }"))

	var err error

	for {
		var tok Token

		tok, err = l.Next(ctx)
		if err != nil || tok.Kind == EOF {
			break
		}
	}

	if err == nil {
		t.Fatalf("expected a lex error")
	}
}

func TestEOFIsSticky(t *testing.T) {
	ctx := context.Background()

	l := New("t.sl", nil)

	for i := 0; i < 3; i++ {
		tok, err := l.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}

		assert.Equal(t, EOF, tok.Kind)
	}
}
