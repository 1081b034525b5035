package rf95

import "errors"

var (
	ErrBus             = errors.New("rf95: bus transfer failed")
	ErrNotConfigured   = errors.New("rf95: lora not configured")
	ErrPayloadTooLarge = errors.New("rf95: payload exceeds 255 bytes")
	ErrRadioBusy       = errors.New("rf95: radio in tx mode")
	ErrTxTimeout       = errors.New("rf95: timed out waiting for tx done")
	ErrInvalidProfile  = errors.New("rf95: invalid modem profile field")
)
