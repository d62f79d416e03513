package router

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
)

const maxBodyBytes = 64 * 1024

// Request wraps http.Request with helpers for inbound handlers.
type Request struct {
	// Request is the underlying http.Request.
	*http.Request
}

// GetParam reads a path parameter from the request context (as stored by httprouter).
func (r *Request) GetParam(key string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(key)
}

func (r *Request) GetParamInt64(key string) (int64, error) {
	value, err := strconv.ParseInt(r.GetParam(key), 10, 64)
	if err != nil || value <= 0 {
		return 0, goerror.NewInvalidFormat("param must be a positive integer value")
	}
	return value, nil
}

// Accepts reports whether the Accept header lists mediaType explicitly.
// Wildcards do not count so clients opt in to non-JSON representations.
func (r *Request) Accepts(mediaType string) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		media, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && strings.EqualFold(media, mediaType) {
			return true
		}
	}
	return false
}

// DecodeBody decodes the JSON body into dst.
func (r *Request) DecodeBody(dst any) error {
	return r.decode(dst, false)
}

// DecodeOptionalBody is DecodeBody that leaves dst untouched on an empty body.
func (r *Request) DecodeOptionalBody(dst any) error {
	return r.decode(dst, true)
}

func (r *Request) decode(dst any, optional bool) error {
	if r == nil || r.Request == nil || r.Body == nil || r.Body == http.NoBody {
		if optional {
			return nil
		}
		return goerror.NewInvalidFormat()
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return goerror.NewInvalidFormat()
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return goerror.NewInvalidFormat()
	}

	return nil
}
