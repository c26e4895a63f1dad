package service

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPCodeGenerator produces one-off numeric codes by deriving a TOTP value
// from a freshly generated secret, so consecutive codes are unrelated.
type TOTPCodeGenerator struct {
	Issuer string
	Period uint
	Digits otp.Digits
}

func NewTOTPCodeGenerator(issuer string) TOTPCodeGenerator {
	return TOTPCodeGenerator{Issuer: issuer, Period: 30, Digits: otp.DigitsSix}
}

func (g TOTPCodeGenerator) Generate(now time.Time) (string, error) {
	issuer := g.Issuer
	if issuer == "" {
		issuer = "fintrack"
	}
	period := g.Period
	if period == 0 {
		period = 30
	}
	digits := g.Digits
	if digits == 0 {
		digits = otp.DigitsSix
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: "password-reset",
		Period:      period,
		Digits:      digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}
	return totp.GenerateCodeCustom(key.Secret(), now, totp.ValidateOpts{
		Period:    period,
		Digits:    digits,
		Algorithm: otp.AlgorithmSHA1,
	})
}
