package returns

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/joao-fontenele/storefront/internal/mailer"
)

const (
	MaxImages     = 5
	MaxImageBytes = 2 << 20
)

var (
	ErrTooManyImages = errors.New("too many images")
	ErrImageTooLarge = errors.New("image too large")
	ErrInvalidImage  = errors.New("invalid image")
)

// DecodeImages turns base64 data:image URLs into mail attachments.
func DecodeImages(urls []string) ([]mailer.Attachment, error) {
	if len(urls) > MaxImages {
		return nil, ErrTooManyImages
	}
	out := make([]mailer.Attachment, 0, len(urls))
	for i, u := range urls {
		a, err := decodeImage(u)
		if err != nil {
			return nil, err
		}
		a.Name = fmt.Sprintf("image-%d.%s", i+1, extension(a.ContentType))
		out = append(out, a)
	}
	return out, nil
}

func decodeImage(u string) (mailer.Attachment, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(u), "data:")
	if !ok {
		return mailer.Attachment{}, ErrInvalidImage
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return mailer.Attachment{}, ErrInvalidImage
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok || !strings.HasPrefix(contentType, "image/") || len(contentType) == len("image/") {
		return mailer.Attachment{}, ErrInvalidImage
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+2 {
		return mailer.Attachment{}, ErrImageTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return mailer.Attachment{}, ErrInvalidImage
		}
	}
	if len(data) == 0 {
		return mailer.Attachment{}, ErrInvalidImage
	}
	if len(data) >= MaxImageBytes {
		return mailer.Attachment{}, ErrImageTooLarge
	}
	return mailer.Attachment{ContentType: contentType, Data: data}, nil
}

func extension(contentType string) string {
	sub := strings.TrimPrefix(contentType, "image/")
	switch sub {
	case "jpeg", "pjpeg":
		return "jpg"
	case "svg+xml":
		return "svg"
	}
	return sub
}
