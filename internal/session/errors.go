package session

import "errors"

var (
	// ErrNoSeed rejects battle setup before the handshake delivered a seed.
	ErrNoSeed = errors.New("no session seed")

	// ErrNoPeer rejects an operation that needs a connected counterparty.
	ErrNoPeer = errors.New("no peer connected")

	// ErrStickerOversize rejects a sticker above the decoded size cap.
	// Nothing is sent.
	ErrStickerOversize = errors.New("sticker oversize")

	// ErrStickerBadEncoding rejects an outbound sticker with no data.
	ErrStickerBadEncoding = errors.New("sticker bad encoding")
)
