package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/goAccounts"
)

// errorCode maps engine sentinels to the stable symbolic codes clients key
// off. Anything outside the table is reported as "internal" so store and
// backend details never leak.
type errorCode struct {
	status int
	code   string
}

var errorCodes = []struct {
	err  error
	code errorCode
}{
	{goAccounts.ErrInvalidInput, errorCode{http.StatusBadRequest, "invalidInput"}},
	{goAccounts.ErrNoAccount, errorCode{http.StatusNotFound, "noAccount"}},
	{goAccounts.ErrAccountExists, errorCode{http.StatusConflict, "accountExists"}},
	{goAccounts.ErrDisabledAccount, errorCode{http.StatusForbidden, "disabledAccount"}},
	{goAccounts.ErrIncorrectPassword, errorCode{http.StatusUnauthorized, "incorrectPassword"}},
	{goAccounts.ErrPasswordResetRequired, errorCode{http.StatusUnauthorized, "passwordResetRequired"}},
	{goAccounts.ErrPasswordResetRequestRequired, errorCode{http.StatusUnauthorized, "passwordResetRequestRequired"}},
	{goAccounts.ErrTwoFactorRequired, errorCode{http.StatusUnauthorized, "twoFactorRequired"}},
	{goAccounts.ErrTwoFactorEnabled, errorCode{http.StatusConflict, "twoFactorEnabled"}},
	{goAccounts.ErrTwoFactorDisabled, errorCode{http.StatusConflict, "twoFactorDisabled"}},
	{goAccounts.ErrVerificationCodeIncorrect, errorCode{http.StatusBadRequest, "verificationCodeIncorrect"}},
	{goAccounts.ErrSecondFactorUnavailable, errorCode{http.StatusServiceUnavailable, "secondFactorUnavailable"}},
	{goAccounts.ErrChallengeInvalid, errorCode{http.StatusBadRequest, "challengeInvalid"}},
	{goAccounts.ErrEngineNotReady, errorCode{http.StatusServiceUnavailable, "notReady"}},
}

func classify(err error) errorCode {
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return errorCode{http.StatusInternalServerError, "internal"}
}
