package services

import "errors"

// Protocol errors. Handlers map these to status codes with errors.Is.
var (
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrExpiredPayload   = errors.New("registration payload expired")
	ErrUnknownKey       = errors.New("unknown or expired registration key")
	ErrInvalidSignature = errors.New("invalid signature")

	ErrInvalidAttempt   = errors.New("invalid attempt")
	ErrAttemptExists    = errors.New("attempt already recorded")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrPotNotRegistered = errors.New("pot has no registered secret")
	ErrPotInactive      = errors.New("pot is inactive or expired")
	ErrHunterMismatch   = errors.New("hunter does not own this attempt")
	ErrExpiredOrMissing = errors.New("challenges already issued for this attempt")
	ErrChallengeExpired = errors.New("challenge expired or unknown")
	ErrAlreadyVerified  = errors.New("attempt already verified")
	ErrResultNotFound   = errors.New("no verification result for attempt")
	ErrUnsupportedChain = errors.New("unsupported chain")
	ErrIssuerMismatch   = errors.New("payload issuer is neither the pot creator nor its 1FA address")
)
