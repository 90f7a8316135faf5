package convert

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

var pngHead = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

func writeZip(t *testing.T, path string, files map[string][]byte) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create %s in zip: %v", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to finish zip: %v", err)
	}
	return writeFile(t, path, buf.Bytes())
}

func TestIsArchiveFile(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"non-zip extension", writeFile(t, filepath.Join(tmpDir, "test.txt"), []byte("not a zip")), false},
		{"zip extension but invalid content", writeFile(t, filepath.Join(tmpDir, "test.zip"), []byte("not a real zip file")), false},
		{"real zip", writeZip(t, filepath.Join(tmpDir, "real.ZIP"), map[string][]byte{"a.json": []byte("{}")}), true},
		{"zip content with other extension", writeZip(t, filepath.Join(tmpDir, "real.json"), map[string][]byte{"a.json": []byte("{}")}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := isArchiveFile(tt.path)
			if err != nil {
				t.Fatalf("isArchiveFile() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("isArchiveFile() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsArchiveFile_NonExistent(t *testing.T) {
	if _, err := isArchiveFile("/nonexistent/file.zip"); err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}
}

func TestDetectUTF(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want srcEncoding
	}{
		{"UTF-8 BOM", []byte{0xEF, 0xBB, 0xBF, '{'}, encUTF8},
		{"UTF-16 Big Endian BOM", []byte{0xFE, 0xFF, 0x00, '{'}, encUTF16BigEndian},
		{"UTF-16 Little Endian BOM", []byte{0xFF, 0xFE, '{', 0x00}, encUTF16LittleEndian},
		{"UTF-32 Big Endian BOM", []byte{0x00, 0x00, 0xFE, 0xFF}, encUTF32BigEndian},
		{"UTF-32 Little Endian BOM", []byte{0xFF, 0xFE, 0x00, 0x00}, encUTF32LittleEndian},
		{"No BOM", []byte("<!-- wp:divi"), encUnknown},
		{"Too short", []byte{0xEF}, encUnknown},
		{"Empty", nil, encUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectUTF(tt.buf); got != tt.want {
				t.Errorf("detectUTF() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsInputFile(t *testing.T) {
	tmpDir := t.TempDir()
	utf16 := []byte{0xFF, 0xFE, '{', 0, '}', 0}

	tests := []struct {
		name      string
		filename  string
		content   []byte
		wantInput bool
		wantEnc   srcEncoding
	}{
		{"json export", "page.json", []byte(`<!-- wp:divi/section {"a":1} /-->`), true, encUnknown},
		{"text export upper case extension", "page.TXT", []byte("plain text"), true, encUnknown},
		{"empty file", "empty.json", nil, true, encUnknown},
		{"utf-16 with BOM", "page.txt", utf16, true, encUTF16LittleEndian},
		{"utf-8 with BOM", "page.json", append([]byte{0xEF, 0xBB, 0xBF}, "{}"...), true, encUTF8},
		{"image renamed to json", "image.json", pngHead, false, encUnknown},
		{"binary with NUL", "dump.txt", []byte("abc\x00def"), false, encUnknown},
		{"wrong extension", "page.html", []byte("<!-- wp:divi/x {} -->"), false, encUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, filepath.Join(tmpDir, tt.name, tt.filename), tt.content)
			input, enc, err := isInputFile(path)
			if err != nil {
				t.Fatalf("isInputFile() error = %v", err)
			}
			if input != tt.wantInput {
				t.Errorf("isInputFile() input = %v, want %v", input, tt.wantInput)
			}
			if input && enc != tt.wantEnc {
				t.Errorf("isInputFile() enc = %v, want %v", enc, tt.wantEnc)
			}
		})
	}
}

func TestIsInputFile_NonExistent(t *testing.T) {
	if _, _, err := isInputFile("/nonexistent/page.json"); err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}
}

func TestIsInputInArchive(t *testing.T) {
	path := writeZip(t, filepath.Join(t.TempDir(), "export.zip"), map[string][]byte{
		"pages/home.json": []byte(`<!-- wp:divi/section {} /-->`),
		"pages/logo.json": pngHead,
		"readme.md":       []byte("# readme"),
	})

	want := map[string]bool{
		"pages/home.json": true,
		"pages/logo.json": false,
		"readme.md":       false,
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer r.Close()

	for _, f := range r.File {
		got, _, err := isInputInArchive(f)
		if err != nil {
			t.Fatalf("isInputInArchive(%s) error = %v", f.Name, err)
		}
		if got != want[f.Name] {
			t.Errorf("isInputInArchive(%s) = %v, want %v", f.Name, got, want[f.Name])
		}
	}
}

func TestSelectReader(t *testing.T) {
	const text = `<!-- wp:divi/blurb {"title":"Привет"} /-->`

	encode := func(t *testing.T, s string, enc interface{ String(string) (string, error) }) []byte {
		t.Helper()
		out, err := enc.String(s)
		if err != nil {
			t.Fatalf("encode sample: %v", err)
		}
		return []byte(out)
	}

	cp1251 := encode(t, text, charmap.Windows1251.NewEncoder())

	tests := []struct {
		name string
		data []byte
		enc  srcEncoding
		cp   bool
	}{
		{"plain utf-8", []byte(text), encUnknown, false},
		{"utf-8 BOM", append([]byte{0xEF, 0xBB, 0xBF}, text...), encUTF8, false},
		{"utf-16 BE", encode(t, text, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()), encUTF16BigEndian, false},
		{"utf-16 LE", encode(t, text, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()), encUTF16LittleEndian, false},
		{"utf-32 BE", encode(t, text, utf32.UTF32(utf32.BigEndian, utf32.UseBOM).NewEncoder()), encUTF32BigEndian, false},
		{"utf-32 LE", encode(t, text, utf32.UTF32(utf32.LittleEndian, utf32.UseBOM).NewEncoder()), encUTF32LittleEndian, false},
		{"code page without BOM", cp1251, encUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r io.Reader
			if tt.cp {
				r = selectReader(bytes.NewReader(tt.data), tt.enc, charmap.Windows1251)
			} else {
				r = selectReader(bytes.NewReader(tt.data), tt.enc, nil)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(got) != text {
				t.Errorf("decoded = %q, want %q", got, text)
			}
		})
	}
}

func TestSelectReader_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for invalid encoding, but didn't panic")
		}
	}()
	selectReader(bytes.NewReader([]byte("test")), srcEncoding(999), nil)
}
