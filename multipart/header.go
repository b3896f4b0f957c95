package multipart

import (
	"bytes"
	stdmime "mime"
	"strings"

	"github.com/streamforge/uploadengine/uploaderr"
)

// partHeader holds the parsed header block of a single part.
type partHeader struct {
	fieldName   string
	filename    string
	contentType string
	encoding    string
	isFile      bool
}

// parseHeaderBlock splits an ASCII header block on CRLF, parses each line as
// "key: value", and extracts the fields the parser cares about.
// Content-Disposition is mandatory; its absence is a protocol error.
func parseHeaderBlock(block []byte) (partHeader, error) {
	h := partHeader{
		contentType: "application/octet-stream",
		encoding:    "7bit",
	}

	lines := bytes.Split(block, []byte("\r\n"))
	sawDisposition := false

	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		idx := bytes.IndexByte(line, ':')
		if idx < 0 {
			return partHeader{}, uploaderr.MalformedHeader("header line has no colon: " + string(line))
		}
		key := strings.ToLower(strings.TrimSpace(string(line[:idx])))
		value := strings.TrimSpace(string(line[idx+1:]))

		switch key {
		case "content-disposition":
			mediatype, params, err := stdmime.ParseMediaType(value)
			if err != nil {
				return partHeader{}, uploaderr.MalformedHeader("content-disposition: " + err.Error())
			}
			if mediatype != "form-data" {
				return partHeader{}, uploaderr.MalformedHeader("content-disposition is not form-data: " + mediatype)
			}
			name, ok := params["name"]
			if !ok {
				return partHeader{}, uploaderr.MissingContentDisposition()
			}
			h.fieldName = name
			if filename, ok := params["filename"]; ok {
				h.filename = filename
				h.isFile = true
			}
			sawDisposition = true
		case "content-type":
			mediatype, _, err := stdmime.ParseMediaType(value)
			if err != nil {
				// Not every producer sends well-formed parameters on a
				// part's Content-Type; fall back to the raw value.
				h.contentType = value
			} else {
				h.contentType = mediatype
			}
		case "content-transfer-encoding":
			h.encoding = strings.ToLower(value)
		}
	}

	if !sawDisposition {
		return partHeader{}, uploaderr.MissingContentDisposition()
	}

	return h, nil
}
