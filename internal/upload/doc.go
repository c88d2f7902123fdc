// Package upload implements the file backend: a liveness endpoint and a
// multipart upload endpoint that writes the received file under a directory.
//
// The multipart body is parsed by hand rather than with mime/multipart. The
// parser splits the raw bytes on the boundary delimiter, so a file whose
// content contains "--<boundary>" is truncated at that point. Callers that
// need arbitrary binary payloads should pick boundaries that cannot occur in
// the data.
package upload
