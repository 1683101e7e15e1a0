package zpl

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func mnemonics(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}

func TestTokenize_SimpleLabel(t *testing.T) {
	cmds, err := Tokenize([]byte("^XA^LH0,0^FO50,50^A0N,30,30^FDHELLO^FS^XZ"), Options{})
	if err != nil {
		t.Fatalf("Failed to tokenize: %v", err)
	}

	want := []string{"^XA", "^LH", "^FO", "^A0", "^FD", "^FS", "^XZ"}
	if got := mnemonics(cmds); !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}

	if got := cmds[2].Params; !reflect.DeepEqual(got, []string{"50", "50"}) {
		t.Errorf("Expected ^FO params [50 50], got %v", got)
	}
	if got := cmds[3].Params; !reflect.DeepEqual(got, []string{"N", "30", "30"}) {
		t.Errorf("Expected ^A0 params [N 30 30], got %v", got)
	}
	if cmds[4].Param(0) != "HELLO" {
		t.Errorf("Expected field data HELLO, got %q", cmds[4].Param(0))
	}
}

func TestTokenize_FieldDataKeepsDelimitersAndTilde(t *testing.T) {
	cmds, err := Tokenize([]byte("^XA^FDa,b,c ~ d^FS^XZ"), Options{})
	if err != nil {
		t.Fatalf("Failed to tokenize: %v", err)
	}
	if len(cmds) != 4 {
		t.Fatalf("Expected 4 commands, got %v", mnemonics(cmds))
	}
	if got := cmds[1].Params; !reflect.DeepEqual(got, []string{"a,b,c ~ d"}) {
		t.Errorf("Expected one opaque parameter, got %q", got)
	}
}

func TestTokenize_ChunkBoundaries(t *testing.T) {
	job := "^XA\r\n^FO10,20^BY2^BCN,100,Y,N,N^FD>:12345678^FS\r\n~DGR:LOGO.GRF,4,1,FF00FF00^XZ"

	whole, err := Tokenize([]byte(job), Options{})
	if err != nil {
		t.Fatalf("Failed to tokenize: %v", err)
	}

	tok := NewTokenizer(Options{})
	var split []Command
	for i := 0; i < len(job); i++ {
		cmds, err := tok.Feed([]byte{job[i]})
		if err != nil {
			t.Fatalf("Feed failed at byte %d: %v", i, err)
		}
		split = append(split, cmds...)
	}
	rest, _ := tok.Flush()
	split = append(split, rest...)

	if !reflect.DeepEqual(whole, split) {
		t.Errorf("Byte-by-byte tokenizing differs:\n whole=%v\n split=%v", mnemonics(whole), mnemonics(split))
	}
}

func TestTokenizer_IncompleteCommandIsBuffered(t *testing.T) {
	tok := NewTokenizer(Options{})

	cmds, _ := tok.Feed([]byte("^XA^FO10,"))
	if got := mnemonics(cmds); !reflect.DeepEqual(got, []string{"^XA"}) {
		t.Fatalf("Expected only ^XA to be complete, got %v", got)
	}
	if tok.Pending() == 0 {
		t.Fatal("Expected buffered bytes for ^FO")
	}

	cmds, _ = tok.Feed([]byte("20^FS"))
	if len(cmds) != 1 || cmds[0].Mnemonic != "FO" {
		t.Fatalf("Expected ^FO after second chunk, got %v", mnemonics(cmds))
	}
	if !reflect.DeepEqual(cmds[0].Params, []string{"10", "20"}) {
		t.Errorf("Expected [10 20], got %v", cmds[0].Params)
	}

	rest, _ := tok.Flush()
	if len(rest) != 1 || rest[0].Mnemonic != "FS" {
		t.Errorf("Expected trailing ^FS on flush, got %v", mnemonics(rest))
	}
}

func TestTokenize_PrefixChange(t *testing.T) {
	cmds, err := Tokenize([]byte("^XA^CC%%FO5,5%FDX%FS%XZ"), Options{})
	if err != nil {
		t.Fatalf("Failed to tokenize: %v", err)
	}

	want := []string{"^XA", "^CC", "%FO", "%FD", "%FS", "%XZ"}
	if got := mnemonics(cmds); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestTokenize_ControlPrefixChangeToCaretArgument(t *testing.T) {
	tok := NewTokenizer(Options{})
	if _, err := tok.Feed([]byte("~CT#")); err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	_, control, _ := tok.Prefixes()
	if control != '#' {
		t.Errorf("Expected control prefix '#', got %q", control)
	}
}

func TestTokenize_DelimiterChange(t *testing.T) {
	cmds, err := Tokenize([]byte("^XA^CD;^FO7;8^FS^XZ"), Options{})
	if err != nil {
		t.Fatalf("Failed to tokenize: %v", err)
	}
	if got := cmds[2].Params; !reflect.DeepEqual(got, []string{"7", "8"}) {
		t.Errorf("Expected [7 8], got %v (%v)", got, mnemonics(cmds))
	}
}

func TestTokenize_GarbageBeforeFirstPrefix(t *testing.T) {
	tok := NewTokenizer(Options{})
	cmds, _ := tok.Feed([]byte("hello world^XA"))
	if len(cmds) != 0 {
		t.Errorf("Expected no complete commands, got %v", mnemonics(cmds))
	}
	if tok.Discarded() != len("hello world") {
		t.Errorf("Expected %d discarded bytes, got %d", len("hello world"), tok.Discarded())
	}
}

func TestTokenize_MalformedOverCap(t *testing.T) {
	tok := NewTokenizer(Options{MaxCommandBytes: 16})
	_, err := tok.Feed([]byte("^XA^FD" + strings.Repeat("A", 64)))
	if !errors.Is(err, ErrMalformedCommand) {
		t.Fatalf("Expected ErrMalformedCommand, got %v", err)
	}

	if _, err := tok.Feed([]byte("^XZ")); !errors.Is(err, ErrMalformedCommand) {
		t.Errorf("Expected tokenizer to stay failed, got %v", err)
	}

	tok.Reset()
	if _, err := tok.Feed([]byte("^XA^XZ")); err != nil {
		t.Errorf("Expected Reset to clear the failure, got %v", err)
	}
}

func TestTokenize_BinaryGraphicField(t *testing.T) {
	payload := []byte{'^', 0x00, '~', '\n'}
	job := append([]byte("^XA^FO0,0^GFB,4,4,1,"), payload...)
	job = append(job, []byte("^FS^XZ")...)

	cmds, err := Tokenize(job, Options{})
	if err != nil {
		t.Fatalf("Failed to tokenize: %v", err)
	}

	want := []string{"^XA", "^FO", "^GF", "^FS", "^XZ"}
	if got := mnemonics(cmds); !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}

	gf := cmds[2]
	if len(gf.Params) != 5 {
		t.Fatalf("Expected 5 ^GF params, got %d", len(gf.Params))
	}
	if gf.Params[4] != string(payload) {
		t.Errorf("Expected raw payload %q, got %q", payload, gf.Params[4])
	}
}

func TestTokenize_LowercaseMnemonic(t *testing.T) {
	cmds, _ := Tokenize([]byte("^xa^fo1,2^xz"), Options{})
	if got := mnemonics(cmds); !reflect.DeepEqual(got, []string{"^XA", "^FO", "^XZ"}) {
		t.Errorf("Expected uppercased mnemonics, got %v", got)
	}
}

func TestCommandParam(t *testing.T) {
	cmd := Command{Params: []string{" 10", "", "x "}}
	if cmd.Param(0) != "10" || cmd.Param(2) != "x" || cmd.Param(5) != "" {
		t.Errorf("Unexpected params: %q %q %q", cmd.Param(0), cmd.Param(2), cmd.Param(5))
	}
	if cmd.Has(1) || !cmd.Has(0) {
		t.Error("Has() mismatch")
	}
}
