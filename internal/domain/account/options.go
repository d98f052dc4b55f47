package account

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Option configures a Service.
type Option func(*Service)

// WithAccessCodes replaces the accepted registration codes.
func WithAccessCodes(codes []string) Option {
	return func(s *Service) {
		s.codes = make(map[string]struct{}, len(codes))
		for _, c := range codes {
			s.codes[c] = struct{}{}
		}
	}
}

// WithSessionTTL sets how long a session stays valid.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
