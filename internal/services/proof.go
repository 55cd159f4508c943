package services

import (
	"fmt"
	"mime"
	"net/url"
	"strings"

	"missionrewards/internal/apperr"
)

const (
	// MaxProofSize caps uploaded proof files at 10MB.
	MaxProofSize = 10 << 20
	maxProofURL  = 2048
)

var proofContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"video/mp4":       true,
	"video/quicktime": true,
	"video/x-msvideo": true,
	"video/avi":       true,
}

// Proof is either an uploaded artifact (Data + ContentType) or a link to one
// hosted elsewhere (URL). Exactly one form must be set.
type Proof struct {
	Data        []byte
	ContentType string
	URL         string
}

// normalize trims and lowercases the content type, dropping parameters.
func (p Proof) normalize() Proof {
	p.URL = strings.TrimSpace(p.URL)
	ct := strings.TrimSpace(p.ContentType)
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	p.ContentType = strings.ToLower(ct)
	return p
}

func (p Proof) validate() error {
	hasFile := len(p.Data) > 0
	hasURL := p.URL != ""
	switch {
	case hasFile && hasURL:
		return apperr.Field("proof", "Provide either a proof file or a proof URL, not both.")
	case !hasFile && !hasURL:
		return apperr.Field("proof", "The proof field is required.")
	case hasURL:
		return validateProofURL(p.URL)
	}
	if len(p.Data) > MaxProofSize {
		return apperr.Field("proof", fmt.Sprintf("The proof may not be greater than %d kilobytes.", MaxProofSize>>10))
	}
	if !proofContentTypes[p.ContentType] {
		return apperr.Field("proof", "The proof must be a file of type: jpeg, png, jpg, mp4, mov, avi.")
	}
	return nil
}

func validateProofURL(raw string) error {
	if len(raw) > maxProofURL {
		return apperr.Field("proof_url", fmt.Sprintf("The proof url may not be greater than %d characters.", maxProofURL))
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.Field("proof_url", "The proof url must be a valid URL.")
	}
	return nil
}
