package convert

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

type srcEncoding int

const (
	encUnknown srcEncoding = iota
	encUTF8
	encUTF16BigEndian
	encUTF16LittleEndian
	encUTF32BigEndian
	encUTF32LittleEndian
)

// enough for filetype to recognize anything it knows about
const headSize = 8192

var inputExtensions = []string{".json", ".txt"}

func isUTF8BOM3(buf []byte) bool {
	return len(buf) >= 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF
}

func isUTF16BigEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFE && buf[1] == 0xFF
}

func isUTF16LittleEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFF && buf[1] == 0xFE
}

func isUTF32BigEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0x00 && buf[1] == 0x00 && buf[2] == 0xFE && buf[3] == 0xFF
}

func isUTF32LittleEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0xFF && buf[1] == 0xFE && buf[2] == 0x00 && buf[3] == 0x00
}

// detectUTF looks at BOM only. Order matters: UTF-32LE BOM starts with UTF-16LE one.
func detectUTF(buf []byte) srcEncoding {
	switch {
	case isUTF8BOM3(buf):
		return encUTF8
	case isUTF32LittleEndianBOM4(buf):
		return encUTF32LittleEndian
	case isUTF32BigEndianBOM4(buf):
		return encUTF32BigEndian
	case isUTF16BigEndianBOM2(buf):
		return encUTF16BigEndian
	case isUTF16LittleEndianBOM2(buf):
		return encUTF16LittleEndian
	}
	return encUnknown
}

func hasInputExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range inputExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// checkHead decides if head of the file looks like text. Anything filetype
// is able to recognize (images, archives, executables, documents) is binary
// for us. Content with BOM is text no matter what.
func checkHead(head []byte) (bool, srcEncoding) {
	if enc := detectUTF(head); enc != encUnknown {
		return true, enc
	}
	if len(head) == 0 {
		return true, encUnknown
	}
	kind, err := filetype.Match(head)
	if err != nil || kind != filetype.Unknown {
		return false, encUnknown
	}
	// NUL bytes do not belong in text without BOM
	if bytes.IndexByte(head, 0) >= 0 {
		return false, encUnknown
	}
	return true, encUnknown
}

func readHead(r io.Reader) ([]byte, error) {
	head := make([]byte, headSize)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return head[:n], nil
}

func isArchiveFile(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return false, nil
	}

	head, err := readHead(file)
	if err != nil {
		return false, err
	}
	return filetype.Is(head, "zip"), nil
}

// isInputFile checks if file could be processed and what BOM it carries.
func isInputFile(path string) (bool, srcEncoding, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, encUnknown, err
	}
	defer file.Close()

	if !hasInputExtension(path) {
		return false, encUnknown, nil
	}

	head, err := readHead(file)
	if err != nil {
		return false, encUnknown, err
	}
	ok, enc := checkHead(head)
	return ok, enc, nil
}

func isInputInArchive(f *zip.File) (bool, srcEncoding, error) {
	if !hasInputExtension(f.FileHeader.Name) {
		return false, encUnknown, nil
	}

	r, err := f.Open()
	if err != nil {
		return false, encUnknown, err
	}
	defer r.Close()

	head, err := readHead(r)
	if err != nil {
		return false, encUnknown, err
	}
	ok, enc := checkHead(head)
	return ok, enc, nil
}

// selectReader returns reader producing UTF-8 text. When there is no BOM,
// text is decoded from cp (if any).
func selectReader(r io.Reader, enc srcEncoding, cp encoding.Encoding) io.Reader {
	switch enc {
	case encUnknown:
		if cp == nil {
			return r
		}
		return transform.NewReader(r, cp.NewDecoder())
	case encUTF8:
		return transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
	case encUTF16BigEndian:
		return transform.NewReader(r, unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder())
	case encUTF16LittleEndian:
		return transform.NewReader(r, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
	case encUTF32BigEndian:
		return transform.NewReader(r, utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM).NewDecoder())
	case encUTF32LittleEndian:
		return transform.NewReader(r, utf32.UTF32(utf32.LittleEndian, utf32.ExpectBOM).NewDecoder())
	}
	// this should never happen
	panic(fmt.Sprintf("unexpected source encoding %d", enc))
}
