package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	HeaderDeadLetterReason = "x-dead-letter-reason"
	HeaderDeadLetterKind   = "x-dead-letter-kind"

	DeadLetterKindDecode     = "decode"
	DeadLetterKindValidation = "validation"
)

// DeadLetter builds the dead-letter message for a rejected order.placed body.
//
// Validation failures carry the original fields plus "error". Bodies that
// could not be decoded carry "error" and the "raw" payload; when the payload
// is not valid UTF-8 its exact bytes are also kept in "raw_base64".
func DeadLetter(key string, rejection error) (Message, error) {
	var (
		body []byte
		kind string
		err  error
	)

	var decodeErr *DecodeError
	var validationErr *ValidationError
	switch {
	case errors.As(rejection, &validationErr):
		kind = DeadLetterKindValidation
		envelope := make(map[string]json.RawMessage, len(validationErr.Fields)+1)
		for k, v := range validationErr.Fields {
			envelope[k] = v
		}
		reason, _ := json.Marshal(validationErr.Reason)
		envelope["error"] = reason
		body, err = json.Marshal(envelope)
	case errors.As(rejection, &decodeErr):
		kind = DeadLetterKindDecode
		envelope := struct {
			Error     string `json:"error"`
			Raw       string `json:"raw"`
			RawBase64 []byte `json:"raw_base64,omitempty"`
		}{Error: decodeErr.Error(), Raw: string(decodeErr.Raw)}
		// JSON strings cannot carry invalid UTF-8; keep the exact bytes too.
		if !utf8.Valid(decodeErr.Raw) {
			envelope.RawBase64 = decodeErr.Raw
		}
		body, err = json.Marshal(envelope)
	default:
		return Message{}, fmt.Errorf("not a dead-letter rejection: %w", rejection)
	}
	if err != nil {
		return Message{}, fmt.Errorf("marshal dead letter: %w", err)
	}

	return Message{
		Key:  key,
		Body: body,
		Headers: map[string]string{
			HeaderDeadLetterReason: rejection.Error(),
			HeaderDeadLetterKind:   kind,
		},
	}, nil
}
