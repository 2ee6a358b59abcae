package extractor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/travel-extract/internal/testutil"
	"github.com/BerylCAtieno/travel-extract/internal/utils"
)

type fakeRunner struct {
	stdout  string
	errs    []error
	calls   int
	paths   []string
	existed []bool
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	f.calls++
	path := args[0]
	f.paths = append(f.paths, path)
	_, statErr := os.Stat(path)
	f.existed = append(f.existed, statErr == nil)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, []byte("tesseract: broken"), err
		}
	}
	return []byte(f.stdout), nil, nil
}

func newTestExtractor(r Runner) *Extractor {
	return NewWithRunner(Config{}, r, nil)
}

func TestExtractPlainTextPassThrough(t *testing.T) {
	in := "Flight UA456 departs SFO March 15 2024 10:30 arrives JFK 19:15\n\n  indented line\n"
	res, err := newTestExtractor(&fakeRunner{}).Extract(context.Background(), []byte(in), KindPlainText, "ticket.txt")
	require.NoError(t, err)

	assert.Equal(t, in, res.Text)
	assert.Equal(t, "plain", res.Method)
}

func TestExtractPlainTextDecodesUTF16(t *testing.T) {
	// "Hi" as UTF-16LE with BOM.
	data := []byte{0xFF, 0xFE, 'H', 0x00, 'i', 0x00}
	res, err := newTestExtractor(&fakeRunner{}).Extract(context.Background(), data, KindPlainText, "hi.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hi", res.Text)
}

func TestExtractPlainTextWindows1252(t *testing.T) {
	data := []byte("Caf\xe9 booking")
	text, err := ExtractTXT(data)
	require.NoError(t, err)
	assert.Equal(t, "Café booking", text)
}

func TestExtractEmailBodyUnchanged(t *testing.T) {
	body := "Your booking\r\nRef: ABC123"
	res, err := newTestExtractor(&fakeRunner{}).Extract(context.Background(), []byte(body), KindEmailBody, "subject")
	require.NoError(t, err)
	assert.Equal(t, body, res.Text)
	assert.Equal(t, "email", res.Method)
}

func TestExtractImageRunsOCRAndRemovesTempFile(t *testing.T) {
	runner := &fakeRunner{stdout: "  Hotel   Plaza │\n\n\n\nCheck-in 2024-05-01  "}
	res, err := newTestExtractor(runner).Extract(context.Background(), []byte("\x89PNG fake"), KindPNG, "scan.png")
	require.NoError(t, err)

	assert.Equal(t, "Hotel Plaza\n\nCheck-in 2024-05-01", res.Text)
	assert.Equal(t, "image-ocr", res.Method)
	require.Len(t, runner.paths, 1)
	assert.True(t, runner.existed[0], "temp file must exist while OCR runs")
	_, statErr := os.Stat(runner.paths[0])
	assert.True(t, os.IsNotExist(statErr), "temp file must be removed after extraction")
}

func TestExtractImageRetriesOnceThenFails(t *testing.T) {
	runner := &fakeRunner{errs: []error{errors.New("exit 1"), errors.New("exit 1")}}
	_, err := newTestExtractor(runner).Extract(context.Background(), []byte("jpeg"), KindJPEG, "scan.jpg")
	require.Error(t, err)

	assert.Equal(t, 2, runner.calls)
	for _, p := range runner.paths {
		_, statErr := os.Stat(p)
		assert.True(t, os.IsNotExist(statErr), "temp file must be removed on failure")
	}
}

func TestExtractImageRetrySucceeds(t *testing.T) {
	runner := &fakeRunner{stdout: "Ticket", errs: []error{errors.New("exit 1"), nil}}
	res, err := newTestExtractor(runner).Extract(context.Background(), []byte("jpeg"), KindJPEG, "scan.jpg")
	require.NoError(t, err)
	assert.Equal(t, "Ticket", res.Text)
	assert.Equal(t, 2, runner.calls)
}

func TestExtractPDFWithTextLayer(t *testing.T) {
	data := testutil.BuildPDF("Flight UA456 departs SFO")
	res, err := newTestExtractor(&fakeRunner{}).Extract(context.Background(), data, KindPDF, "ticket.pdf")
	require.NoError(t, err)

	assert.Contains(t, res.Text, "UA456")
	assert.Equal(t, "pdf-text", res.Method)
	assert.Equal(t, 1, res.Pages)
}

func TestExtractPDFWithoutTextLayerIsEmpty(t *testing.T) {
	data := testutil.BuildPDF("")
	res, err := newTestExtractor(&fakeRunner{}).Extract(context.Background(), data, KindPDF, "scan.pdf")
	require.NoError(t, err)
	assert.Empty(t, res.Text)
}

func TestExtractPDFGarbage(t *testing.T) {
	_, err := ExtractPDF([]byte("definitely not a pdf"))
	assert.Error(t, err)
}

func TestExtractUnsupportedMediaKind(t *testing.T) {
	runner := &fakeRunner{}
	for _, kind := range []MediaKind{"application/msword", "image/gif", "", "text/html"} {
		_, err := newTestExtractor(runner).Extract(context.Background(), []byte("x"), kind, "file")
		assert.ErrorIs(t, err, ErrUnsupportedMediaKind, "kind %q", kind)
		assert.False(t, Supported(kind))
	}
	assert.Zero(t, runner.calls)
}

func TestDetectMediaKind(t *testing.T) {
	tests := []struct {
		filename string
		header   string
		want     MediaKind
	}{
		{"ticket.PDF", "", KindPDF},
		{"scan.jpeg", "application/octet-stream", KindJPEG},
		{"scan.jpg", "", KindJPEG},
		{"scan.png", "", KindPNG},
		{"notes.txt", "", KindPlainText},
		{"mail.eml", "", KindEmailBody},
		{"upload", "image/jpg", KindJPEG},
		{"upload", "text/plain; charset=utf-8", KindPlainText},
		{"upload", "application/x-txt", KindPlainText},
		{"file.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	}
	for _, tt := range tests {
		t.Run(tt.filename+"|"+tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMediaKind(tt.filename, tt.header))
		})
	}
}

func TestHTMLToText(t *testing.T) {
	body := `<html><head><style>p{color:red}</style></head><body>
<p>Your reservation at <b>Hotel Plaza</b> is confirmed.</p>
<script>track()</script>
<table><tr><td>Check-in</td><td>2024-05-01</td></tr></table>
Ref&nbsp;#ABC&amp;123<br/>Thanks
</body></html>`
	got := HTMLToText(body)

	assert.Equal(t, "Your reservation at Hotel Plaza is confirmed.\nCheck-in 2024-05-01\nRef #ABC&123\nThanks", got)
}

func TestProcessRunnerLogsThroughInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	r := processRunner{logger: utils.NewLoggerTo(&buf, "debug")}

	_, _, err := r.Run(context.Background(), "travel-extract-missing-ocr-engine", "in.png", "stdout")
	require.Error(t, err)
	assert.Contains(t, buf.String(), "OCR engine exited with error")
	assert.Contains(t, buf.String(), `"engine":"travel-extract-missing-ocr-engine"`)
}
