package fido

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"medialog/internal/identification"
	"medialog/internal/services"
)

type stubExecutor struct {
	out   string
	err   error
	calls int
	args  [][]string
}

func (s *stubExecutor) Output(_ context.Context, binary string, args []string) ([]byte, error) {
	s.calls++
	s.args = append(s.args, append([]string{binary}, args...))
	return []byte(s.out), s.err
}

const okLine = `OK,33,fmt/43,"JPEG File Interchange Format","JFIF 1.01",5,"/tmp/a.jpg","image/jpeg",1.01` + "\n"

func TestIdentifyMapsFields(t *testing.T) {
	exec := &stubExecutor{out: okLine}
	engine, err := New("fido", []string{"-q"}, time.Second, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := engine.Identify(context.Background(), identification.Input{Path: "/staging/run/a.jpg"})
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	want := identification.Candidate{MIMERaw: "image/jpeg", Version: "1.01", Name: "JPEG File Interchange Format", PUID: "fmt/43"}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("candidates = %+v, want %+v", got, want)
	}
	if exec.calls != 1 {
		t.Fatalf("expected 1 call, got %d", exec.calls)
	}
	args := exec.args[0]
	if len(args) != 3 || args[0] != "fido" || args[1] != "-q" || args[2] != "/staging/run/a.jpg" {
		t.Fatalf("unexpected argv %v", args)
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name      string
		out       string
		wantCount int
		wantMIME  string
		malformed bool
	}{
		{name: "ok", out: okLine, wantCount: 1, wantMIME: "image/jpeg"},
		{name: "no match", out: "KO,12,,,,5,\"/tmp/a\",,\n", wantCount: 0},
		{name: "empty", out: "", wantCount: 0},
		{name: "lowercase ok is no match", out: "ok," + okLine[3:], wantCount: 0},
		{name: "too few fields", out: "OK,1,fmt/1\n", malformed: true},
		{name: "only first line", out: "FAIL\n" + okLine, wantCount: 0},
		{name: "crlf", out: "OK,1,fmt/1,\"N\",\"S\",1,\"f\",\"text/plain\",null\r\n", wantCount: 1, wantMIME: "text/plain"},
		{name: "unquoted mime", out: "OK,1,fmt/1,N,S,1,f,text/csv,\n", wantCount: 1, wantMIME: "text/csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse([]byte(tt.out))
			if tt.malformed {
				if !errors.Is(err, services.ErrMalformedResponse) {
					t.Fatalf("expected malformed response, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseResponse: %v", err)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("got %d candidates", len(got))
			}
			if tt.wantCount == 1 && got[0].MIMERaw != tt.wantMIME {
				t.Fatalf("MIMERaw = %q", got[0].MIMERaw)
			}
		})
	}
}

func TestParseResponseKeepsQuotesInsideFields(t *testing.T) {
	tests := []struct {
		name     string
		out      string
		wantName string
		wantMIME string
	}{
		{name: "escaped quotes at end", out: `OK,12,fmt/43,"JPEG, ""x""",,1,"f","image/jpeg",1.01`, wantName: `JPEG, "x"`, wantMIME: "image/jpeg"},
		{name: "trailing quote only", out: `OK,12,fmt/43,"Quoted""",,1,"f","image/jpeg",`, wantName: `Quoted"`, wantMIME: "image/jpeg"},
		{name: "enclosing pair after decode", out: `OK,12,fmt/43,"""Plain""",,1,"f","""text/plain""",`, wantName: "Plain", wantMIME: "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse([]byte(tt.out))
			if err != nil {
				t.Fatalf("ParseResponse: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("got %d candidates", len(got))
			}
			if got[0].Name != tt.wantName {
				t.Fatalf("Name = %q, want %q", got[0].Name, tt.wantName)
			}
			if got[0].MIMERaw != tt.wantMIME {
				t.Fatalf("MIMERaw = %q, want %q", got[0].MIMERaw, tt.wantMIME)
			}
		})
	}
}

func TestIdentifyIgnoresExitStatus(t *testing.T) {
	engine, err := New("fido", nil, time.Second, WithExecutor(&stubExecutor{out: okLine, err: &exec.ExitError{}}))
	if err != nil {
		t.Fatal(err)
	}
	got, err := engine.Identify(context.Background(), identification.Input{Path: "/a"})
	if err != nil || len(got) != 1 {
		t.Fatalf("Identify = %v, %v", got, err)
	}
}

func TestIdentifyReportsLaunchFailure(t *testing.T) {
	engine, err := New("fido", nil, time.Second, WithExecutor(&stubExecutor{err: exec.ErrNotFound}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Identify(context.Background(), identification.Input{Path: "/a"}); !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("expected launch error, got %v", err)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(" ", nil, time.Second); !errors.Is(err, services.ErrEngineInit) {
		t.Fatalf("expected ErrEngineInit for empty binary, got %v", err)
	}
	if _, err := New("fido", nil, 0); !errors.Is(err, services.ErrEngineInit) {
		t.Fatalf("expected ErrEngineInit for zero timeout, got %v", err)
	}
}

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fido.sh")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIdentifyRunsRealCommand(t *testing.T) {
	sh := requireShell(t)
	script := writeScript(t, `echo "OK,5,fmt/18,\"Acrobat PDF 1.4\",\"PDF 1.4\",9,\"$1\",\"application/pdf\",1.4"
exit 2
`)
	engine, err := New(sh, []string{script}, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	got, err := engine.Identify(context.Background(), identification.Input{Path: "/tmp/doc.pdf"})
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if len(got) != 1 || got[0].PUID != "fmt/18" || got[0].MIMERaw != "application/pdf" || got[0].Version != "1.4" {
		t.Fatalf("unexpected candidates %+v", got)
	}
}

func TestIdentifyTimeoutKillsProcessGroup(t *testing.T) {
	sh := requireShell(t)
	// The background sleep inherits stdout; unless the whole group is killed
	// the output pipe stays open until WaitDelay.
	script := writeScript(t, "sleep 30 &\nsleep 30\n")
	engine, err := New(sh, []string{script}, 200*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	started := time.Now()
	_, err = engine.Identify(context.Background(), identification.Input{Path: "/tmp/x"})
	elapsed := time.Since(started)

	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !services.IsEngineLocal(err) {
		t.Fatal("timeout must be engine-local")
	}
	if elapsed >= waitDelay {
		t.Fatalf("process group was not killed promptly (took %s)", elapsed)
	}
}

func TestIdentifyParentCancellationIsNotTimeout(t *testing.T) {
	engine, err := New("fido", nil, time.Minute, WithExecutor(&stubExecutor{}))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Identify(ctx, identification.Input{Path: "/a"})
	if !errors.Is(err, context.Canceled) || errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
