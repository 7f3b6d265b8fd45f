package protocol

import "errors"

var (
	ErrTruncated            = errors.New("protocol: truncated data")
	ErrUnknownDiscriminator = errors.New("protocol: unknown response discriminator")
	ErrMalformedRequest     = errors.New("protocol: malformed request header")
)
