package finchan

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// fieldDelimiter separates fields in the wire text encoding.
const fieldDelimiter = "|"

// Errors returned by the message codec.
var (
	// ErrMalformedMessage is returned when a payload has too few fields or
	// a numeric field fails to parse.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrDelimiterInField is returned at encode time when a field value
	// contains the delimiter and would corrupt decoding on the other end.
	ErrDelimiterInField = errors.New("field contains delimiter")
)

// OpType identifies the finance operation a Request carries.
type OpType int

// Operation types, in wire order.
const (
	Deposit OpType = iota
	Withdraw
	Balance
	Upload
	Download
	// Quit asks the server to end the per-connection request loop.
	Quit
)

func (t OpType) String() string {
	switch t {
	case Deposit:
		return "DEPOSIT"
	case Withdraw:
		return "WITHDRAW"
	case Balance:
		return "BALANCE"
	case Upload:
		return "UPLOAD"
	case Download:
		return "DOWNLOAD"
	case Quit:
		return "QUIT"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
	}
}

// Request is one client operation.
// Filename must not contain the field delimiter; Data is the final wire
// field and may contain anything.
type Request struct {
	Type     OpType
	UserID   int64
	Amount   float64
	Filename string
	Data     string
}

// Response is the server's answer to one Request.
// Data must not contain the field delimiter; Message is the final wire
// field and may contain anything.
type Response struct {
	Success bool
	Balance float64
	Data    string
	Message string
}

// EncodeRequest renders a Request as "type|user_id|amount|filename|data".
// Filename is validated for embedded delimiters; Data is the last field and
// absorbs the rest of the payload on decode, so it needs no validation.
func EncodeRequest(req *Request) ([]byte, error) {
	if strings.Contains(req.Filename, fieldDelimiter) {
		return nil, errors.Wrapf(ErrDelimiterInField, "filename %q", req.Filename)
	}

	fields := []string{
		strconv.Itoa(int(req.Type)),
		strconv.FormatInt(req.UserID, 10),
		strconv.FormatFloat(req.Amount, 'g', -1, 64),
		req.Filename,
		req.Data,
	}
	return []byte(strings.Join(fields, fieldDelimiter)), nil
}

// DecodeRequest parses the wire text form produced by EncodeRequest.
// Payloads with fewer than five fields or unparsable numeric fields are
// rejected with ErrMalformedMessage.
func DecodeRequest(payload []byte) (*Request, error) {
	parts := strings.SplitN(string(payload), fieldDelimiter, 5)
	if len(parts) < 5 {
		return nil, errors.Wrapf(ErrMalformedMessage, "request has %d fields, want 5", len(parts))
	}

	opType, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedMessage, "request type %q", parts[0])
	}
	if opType < int(Deposit) || opType > int(Quit) {
		return nil, errors.Wrapf(ErrMalformedMessage, "unknown request type %d", opType)
	}

	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedMessage, "user id %q", parts[1])
	}

	amount, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedMessage, "amount %q", parts[2])
	}

	return &Request{
		Type:     OpType(opType),
		UserID:   userID,
		Amount:   amount,
		Filename: parts[3],
		Data:     parts[4],
	}, nil
}

// EncodeResponse renders a Response as "success|balance|data|message" with
// success written as 1 or 0.
func EncodeResponse(resp *Response) ([]byte, error) {
	if strings.Contains(resp.Data, fieldDelimiter) {
		return nil, errors.Wrapf(ErrDelimiterInField, "data %q", resp.Data)
	}

	success := "0"
	if resp.Success {
		success = "1"
	}

	fields := []string{
		success,
		strconv.FormatFloat(resp.Balance, 'g', -1, 64),
		resp.Data,
		resp.Message,
	}
	return []byte(strings.Join(fields, fieldDelimiter)), nil
}

// DecodeResponse parses the wire text form produced by EncodeResponse.
func DecodeResponse(payload []byte) (*Response, error) {
	parts := strings.SplitN(string(payload), fieldDelimiter, 4)
	if len(parts) < 4 {
		return nil, errors.Wrapf(ErrMalformedMessage, "response has %d fields, want 4", len(parts))
	}

	var success bool
	switch parts[0] {
	case "1":
		success = true
	case "0":
		success = false
	default:
		return nil, errors.Wrapf(ErrMalformedMessage, "success flag %q", parts[0])
	}

	balance, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedMessage, "balance %q", parts[1])
	}

	return &Response{
		Success: success,
		Balance: balance,
		Data:    parts[2],
		Message: parts[3],
	}, nil
}
