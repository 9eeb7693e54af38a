package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// StubBinary writes an executable shell script and returns its path.
func StubBinary(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

// PrependPath puts dir first on PATH for the rest of the test.
func PrependPath(t testing.TB, dir string) {
	t.Helper()
	current := os.Getenv("PATH")
	if strings.HasPrefix(current, dir+string(os.PathListSeparator)) || current == dir {
		return
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+current)
}

// FakeFFprobe returns a script body that reports one video stream at rate
// (e.g. "30000/1001") and, when withAudio is set, one audio stream.
func FakeFFprobe(rate string, withAudio bool) string {
	streams := fmt.Sprintf(`{"index":0,"codec_type":"video","codec_name":"h264","width":64,"height":32,"r_frame_rate":%q,"avg_frame_rate":%q}`, rate, rate)
	if withAudio {
		streams += `,{"index":1,"codec_type":"audio","codec_name":"aac","sample_rate":"44100","channels":2}`
	}
	return "cat <<'JSON'\n" +
		`{"streams":[` + streams + `],"format":{"filename":"input.mp4","duration":"1.0","format_name":"mov,mp4"}}` +
		"\nJSON\n"
}

// FakeFFmpeg returns a script body that copies the PNGs in framesDir into
// the frame output directory, or writes audio bytes for any other output.
// Every invocation's arguments are appended to logPath when it is set.
func FakeFFmpeg(framesDir string, audio []byte, logPath string) string {
	var b strings.Builder
	if logPath != "" {
		fmt.Fprintf(&b, "echo \"$@\" >> %q\n", logPath)
	}
	b.WriteString("for last; do :; done\n")
	b.WriteString("case \"$last\" in\n")
	fmt.Fprintf(&b, "  *.png) cp %q/*.png \"$(dirname \"$last\")\"/ ;;\n", framesDir)
	fmt.Fprintf(&b, "  *) printf '%%s' %q > \"$last\" ;;\n", string(audio))
	b.WriteString("esac\n")
	return b.String()
}

// FakeYtDlp returns a script body that writes a placeholder video to the
// path following -o.
func FakeYtDlp() string {
	return `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; shift; fi
  shift
done
[ -n "$out" ] || exit 2
printf 'video' > "$out"
`
}
