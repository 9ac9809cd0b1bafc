package transport

import (
	"bytes"
	"io"
	"mime/multipart"

	"github.com/juju/errors"
)

// FileField is the multipart field the scan service reads the artifact from.
const FileField = "file"

// MultipartBody encodes r as a single file part and returns the body with its content type.
func MultipartBody(field, filename string, r io.Reader) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, "", errors.Trace(err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", errors.Annotatef(err, "unable to read %s", filename)
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Trace(err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
