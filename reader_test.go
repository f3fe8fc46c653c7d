package weft

import (
	"io"
	"os"
	"testing"
	"time"
)

func pipeReader(t *testing.T) (*Reader, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return NewReader(int(r.Fd())), w
}

func TestReaderWaitForData(t *testing.T) {
	t.Run("TimesOutEmpty", func(t *testing.T) {
		rd, _ := pipeReader(t)
		start := time.Now()
		ready, err := rd.WaitForData(20 * time.Millisecond)
		if err != nil {
			t.Fatal(err)
		}
		if ready {
			t.Error("nothing was written; reader should not be ready")
		}
		if time.Since(start) < 15*time.Millisecond {
			t.Error("wait returned before the timeout")
		}
	})

	t.Run("ReadyAfterWrite", func(t *testing.T) {
		rd, w := pipeReader(t)
		w.Write([]byte("x"))
		ready, err := rd.WaitForData(time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if !ready {
			t.Error("reader should be ready")
		}
	})
}

func TestReaderBytes(t *testing.T) {
	rd, w := pipeReader(t)
	w.Write([]byte("abc"))
	rd.WaitForData(time.Second)

	if b, ok := rd.PeekByte(); !ok || b != 'a' {
		t.Fatalf("peek = %q, %v", b, ok)
	}
	// Peek does not consume.
	if b, _ := rd.ReadByte(); b != 'a' {
		t.Fatalf("read = %q", b)
	}
	if b, _ := rd.ReadByte(); b != 'b' {
		t.Fatalf("read = %q", b)
	}
	if n := rd.Buffered(); n != 1 {
		t.Errorf("buffered = %d", n)
	}
	rest, err := rd.ReadAvailable()
	if err != nil {
		t.Fatal(err)
	}
	if string(rest) != "c" {
		t.Errorf("rest = %q", rest)
	}
}

func TestReaderEOF(t *testing.T) {
	rd, w := pipeReader(t)
	w.Write([]byte("z"))
	w.Close()

	rd.WaitForData(time.Second)
	if b, err := rd.ReadByte(); err != nil || b != 'z' {
		t.Fatalf("read = %q, %v", b, err)
	}
	// A closed writer is EOF, not an error.
	if _, err := rd.ReadByte(); err != io.EOF {
		t.Errorf("want io.EOF, got %v", err)
	}
	if _, err := rd.WaitForData(10 * time.Millisecond); err != io.EOF {
		t.Errorf("wait after EOF should report io.EOF, got %v", err)
	}
}
