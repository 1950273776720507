package core

import "github.com/aistock/tdxdata/errs"

const (
	ErrBadConfig = -1*iota - 100
	ErrInvalidPath
	ErrIOReadFail
	ErrIOWriteFail
	ErrDbConnFail
	ErrDbReadFail
	ErrDbExecFail
	ErrDbUniqueViolation
	ErrInvalidTF
	ErrInvalidSymbol
	ErrInvalidBars
	ErrInvalidAddr
	ErrRunTime
	ErrMarshalFail
	ErrTimeout
	ErrEOF
	ErrCancelled

	ErrNetWriteFail
	ErrNetReadFail
	ErrNetUnknown
	ErrNetTimeout
	ErrNetTemporary
	ErrNetConnect
	ErrRateLimit
	ErrSourceDown
	ErrBadSourceResp

	ErrCheckpointRace
	ErrJobNotFound
	ErrBadJobState
)

var ErrCodeNames = map[int]string{
	ErrBadConfig:         "BadConfig",
	ErrInvalidPath:       "InvalidPath",
	ErrIOReadFail:        "IOReadFail",
	ErrIOWriteFail:       "IOWriteFail",
	ErrDbConnFail:        "DbConnFail",
	ErrDbReadFail:        "DbReadFail",
	ErrDbExecFail:        "DbExecFail",
	ErrDbUniqueViolation: "DbUniqueViolation",
	ErrInvalidTF:         "InvalidTF",
	ErrInvalidSymbol:     "InvalidSymbol",
	ErrInvalidBars:       "InvalidBars",
	ErrInvalidAddr:       "InvalidAddr",
	ErrRunTime:           "RunTime",
	ErrMarshalFail:       "MarshalFail",
	ErrTimeout:           "Timeout",
	ErrEOF:               "EOF",
	ErrCancelled:         "Cancelled",
	ErrNetWriteFail:      "NetWriteFail",
	ErrNetReadFail:       "NetReadFail",
	ErrNetUnknown:        "NetUnknown",
	ErrNetTimeout:        "NetTimeout",
	ErrNetTemporary:      "NetTemporary",
	ErrNetConnect:        "NetConnect",
	ErrRateLimit:         "RateLimit",
	ErrSourceDown:        "SourceDown",
	ErrBadSourceResp:     "BadSourceResp",
	ErrCheckpointRace:    "CheckpointRace",
	ErrJobNotFound:       "JobNotFound",
	ErrBadJobState:       "BadJobState",
}

func init() {
	errs.RegCodeNames(ErrCodeNames)
}

/*
IsTransient reports whether an error code marks a failure worth
retrying: network hiccups, rate limits and lost DB connections.
Everything else is treated as permanent and fails fast.
*/
func IsTransient(code int) bool {
	switch code {
	case ErrNetTimeout, ErrNetTemporary, ErrNetConnect, ErrNetUnknown,
		ErrRateLimit, ErrSourceDown, ErrDbConnFail, ErrTimeout:
		return true
	}
	return false
}
