// Package statuscode defines the single-byte reply alphabet used at every
// step of the wire protocol: every response the client reads begins with
// one of these codes.
package statuscode

// Code is a one-byte status tag. Zero means success; values >= 0x64 are
// sentinels that prompt the client for further input rather than reporting
// an outcome.
type Code byte

const (
	Success           Code = 0   // 0x00
	CmdParseErr       Code = 10  // 0x0A
	CmdInvalErr       Code = 11  // 0x0B
	BodySizeParseErr  Code = 20  // 0x14
	BodySizeInvalErr  Code = 21  // 0x15
	BodyParseErr      Code = 30  // 0x1E
	BodyInvalErr      Code = 31  // 0x1F
	AuthErr           Code = 40  // 0x28
	AuthTimeout       Code = 41  // 0x29
	ServerInternalErr Code = 50  // 0x32
	ServerBusy        Code = 51  // 0x33
	InputPassword     Code = 100 // 0x64
)

// names holds the canonical display name for each known code; used by
// Error() and String() so logs read "CMD_INVAL_ERR" rather than a bare
// integer.
var names = map[Code]string{
	Success:           "SUCCESS",
	CmdParseErr:       "CMD_PARSE_ERR",
	CmdInvalErr:       "CMD_INVAL_ERR",
	BodySizeParseErr:  "BODY_SIZE_PARSE_ERR",
	BodySizeInvalErr:  "BODY_SIZE_INVAL_ERR",
	BodyParseErr:      "BODY_PARSE_ERR",
	BodyInvalErr:      "BODY_INVAL_ERR",
	AuthErr:           "AUTH_ERR",
	AuthTimeout:       "AUTH_TIMEOUT",
	ServerInternalErr: "SERVER_INTERNAL_ERR",
	ServerBusy:        "SERVER_BUSY",
	InputPassword:     "INPUT_PASSWORD",
}

// String implements fmt.Stringer for logging.
func (c Code) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return "UNKNOWN_STATUS"
}

// Sentinel reports whether the code prompts the client for further input
// rather than concluding the exchange (currently only InputPassword).
func (c Code) Sentinel() bool {
	return c >= InputPassword
}

// Err wraps a Code as an error so it can travel through normal Go error
// returns up to the point where it is written back to the wire.
type Err struct {
	Code Code
}

func (e *Err) Error() string {
	return e.Code.String()
}

// New returns c wrapped as an error.
func New(c Code) error {
	return &Err{Code: c}
}

// From extracts the Code carried by err, defaulting to ServerInternalErr
// for any error that did not originate from this package.
func From(err error) Code {
	if err == nil {
		return Success
	}
	var e *Err
	if as, ok := err.(*Err); ok {
		e = as
		return e.Code
	}
	return ServerInternalErr
}
