package upload

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed means the body carried no named file with content.
var ErrMalformed = errors.New("no file was uploaded")

var (
	filenameMarker  = []byte(`filename="`)
	headerSeparator = []byte("\r\n\r\n")
)

type File struct {
	Name    string
	Content []byte
}

// Boundary extracts the text following "boundary=" in a Content-Type value.
func Boundary(contentType string) (string, error) {
	_, after, found := strings.Cut(contentType, "boundary=")
	if !found {
		return "", fmt.Errorf("content type %q has no multipart boundary", contentType)
	}

	if i := strings.IndexByte(after, ';'); i >= 0 {
		after = after[:i]
	}
	boundary := strings.Trim(strings.TrimSpace(after), `"`)
	if boundary == "" {
		return "", fmt.Errorf("content type %q has an empty multipart boundary", contentType)
	}

	return boundary, nil
}

// Parse finds the first part carrying a filename and returns its payload:
// everything after the part's first blank line, minus the two trailing bytes
// that precede the next delimiter.
func Parse(contentType string, body []byte) (File, error) {
	boundary, err := Boundary(contentType)
	if err != nil {
		return File{}, err
	}

	delimiter := []byte("--" + boundary)

	for _, part := range bytes.Split(body, delimiter) {
		at := bytes.Index(part, filenameMarker)
		if at < 0 {
			continue
		}

		start := at + len(filenameMarker)
		end := bytes.IndexByte(part[start:], '"')
		if end < 0 {
			return File{}, ErrMalformed
		}
		name := string(part[start : start+end])

		sep := bytes.Index(part, headerSeparator)
		if sep < 0 {
			return File{}, ErrMalformed
		}

		payload := part[sep+len(headerSeparator):]
		if len(payload) >= 2 {
			payload = payload[:len(payload)-2]
		} else {
			payload = nil
		}

		if name == "" || len(payload) == 0 {
			return File{}, ErrMalformed
		}

		return File{Name: name, Content: bytes.Clone(payload)}, nil
	}

	return File{}, ErrMalformed
}
